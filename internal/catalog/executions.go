package catalog

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// InsertExecution records the start of a tracked unit of work. The row is
// created in the running state with no finish time.
func (c *Catalog) InsertExecution(ctx context.Context, id, description string) error {
	e := Execution{
		ID:          id,
		Description: description,
		StartedAt:   now(),
		Status:      StatusRunning,
	}
	if err := c.db.WithContext(ctx).Create(&e).Error; err != nil {
		return fmt.Errorf("failed to insert execution: %w", err)
	}
	return nil
}

// FinishExecution marks an execution terminal exactly once. status must be
// StatusCommitted or StatusFailed; errText carries the failure cause. A
// second call fails with ErrAlreadyTerminal and mutates nothing.
func (c *Catalog) FinishExecution(ctx context.Context, id, status, errText string) error {
	if status != StatusCommitted && status != StatusFailed {
		return fmt.Errorf("invalid terminal status %q", status)
	}

	finished := now()
	res := c.db.WithContext(ctx).
		Model(&Execution{}).
		Where("id = ? AND finished_at IS NULL", id).
		Updates(map[string]any{
			"finished_at": finished,
			"status":      status,
			"error_text":  errText,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to finish execution %s: %w", id, res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	// Zero rows: either the execution is unknown or it already finished.
	var e Execution
	if err := c.db.WithContext(ctx).First(&e, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: execution %s", ErrNotFound, id)
		}
		return fmt.Errorf("failed to load execution %s: %w", id, err)
	}
	return fmt.Errorf("%w: execution %s is %s", ErrAlreadyTerminal, id, e.Status)
}

// AddInput records that an execution consumed an artifact. Recording the
// same pair twice is a no-op.
func (c *Catalog) AddInput(ctx context.Context, executionID, artifactID string) error {
	in := InputFile{ExecutionID: executionID, ArtifactID: artifactID}
	err := c.db.WithContext(ctx).
		Where(&in).
		FirstOrCreate(&in).Error
	if err != nil {
		return fmt.Errorf("failed to record input %s for execution %s: %w", artifactID, executionID, err)
	}
	return nil
}

// AddProgramRun appends a program report to an execution's history.
func (c *Catalog) AddProgramRun(ctx context.Context, run *ProgramRun) error {
	if err := c.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("failed to record program run: %w", err)
	}
	return nil
}

// GetExecution returns the execution row with inputs and program reports
// populated. ErrNotFound when the ID is unknown.
func (c *Catalog) GetExecution(ctx context.Context, id string) (*Execution, error) {
	var e Execution
	err := c.db.WithContext(ctx).
		Preload("Inputs").
		Preload("Programs", func(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") }).
		First(&e, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: execution %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to load execution %s: %w", id, err)
	}
	return &e, nil
}

// ListExecutions returns all executions ordered by start time, oldest first.
func (c *Catalog) ListExecutions(ctx context.Context) ([]Execution, error) {
	var execs []Execution
	if err := c.db.WithContext(ctx).Order("started_at ASC").Find(&execs).Error; err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	return execs, nil
}
