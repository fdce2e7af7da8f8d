package lims

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/benchlab/benchtop/internal/catalog"
)

// Execution is a tracked unit of work against a repository. It owns a
// private working directory for its lifetime; files fetched with Use are
// recorded as inputs, files marked with MarkOutput are imported on Commit
// with this execution as producer, and everything else in the directory is
// swept away when the execution reaches a terminal state.
//
// The lifecycle is Running → Committed or Running → Failed, decided exactly
// once. A second Commit or Fail reports ALREADY_TERMINAL and changes
// nothing.
//
// An Execution must not be shared across goroutines except through Go,
// which synchronizes its own reporting.
type Execution struct {
	id     ExecutionID
	repo   *Repository
	logger *zap.Logger

	mu      sync.Mutex
	state   ExecutionStatus
	workDir string

	// keep holds working-directory paths that must survive garbage
	// collection: files materialized by Use and, after a successful commit,
	// the committed outputs.
	keep map[string]struct{}

	// outputs are the files marked for import at commit, in marking order.
	outputs []markedOutput

	programSeq int
}

type markedOutput struct {
	path string
	spec OutputSpec
}

// Begin allocates an execution: a fresh ID, a catalog row in the running
// state, and an empty private working directory.
func Begin(ctx context.Context, repo *Repository, description string) (*Execution, error) {
	id := newID()

	workDir, err := os.MkdirTemp("", "benchtop-")
	if err != nil {
		return nil, fmt.Errorf("failed to create working directory: %w", err)
	}

	if err := repo.beginExecution(ctx, id, description); err != nil {
		os.RemoveAll(workDir)
		return nil, err
	}

	logger := repo.logger.With(zap.String("execution_id", id))
	logger.Info("execution started", zap.String("description", description))

	return &Execution{
		id:      ExecutionID(id),
		repo:    repo,
		logger:  logger,
		state:   StatusRunning,
		workDir: workDir,
		keep:    make(map[string]struct{}),
	}, nil
}

// beginExecution inserts the catalog row under the repository lock.
func (r *Repository) beginExecution(ctx context.Context, id, description string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("repository is closed")
	}
	if err := r.catalog.InsertExecution(ctx, id, description); err != nil {
		return fmt.Errorf("failed to record execution: %w", err)
	}
	return nil
}

// ID returns the execution identifier.
func (e *Execution) ID() ExecutionID {
	return e.id
}

// WorkDir returns the execution's private working directory. It exists only
// until the execution reaches a terminal state.
func (e *Execution) WorkDir() string {
	return e.workDir
}

// Status returns the current lifecycle state.
func (e *Execution) Status() ExecutionStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Use fetches an artifact from the repository into the working directory
// under a fresh unique filename, records it as a consumed input of this
// execution, and returns the new path. The copy is exempt from garbage
// collection.
func (e *Execution) Use(ctx context.Context, idOrAlias string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StatusRunning {
		return "", newError(ErrAlreadyTerminal, "execution %s is %s", e.id, e.state)
	}

	art, err := e.repo.Artifact(ctx, idOrAlias)
	if err != nil {
		return "", err
	}

	dest := filepath.Join(e.workDir, uniqueName(e.workDir))
	if err := e.repo.Export(ctx, string(art.ID), dest); err != nil {
		return "", err
	}

	if err := e.repo.recordInput(ctx, string(e.id), string(art.ID)); err != nil {
		os.Remove(dest)
		return "", err
	}

	e.keep[dest] = struct{}{}
	e.logger.Info("input fetched",
		zap.String("artifact_id", string(art.ID)),
		zap.String("path", dest),
	)
	return dest, nil
}

// recordInput writes the consumed-input row under the repository lock.
func (r *Repository) recordInput(ctx context.Context, executionID, artifactID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("repository is closed")
	}
	if err := r.catalog.AddInput(ctx, executionID, artifactID); err != nil {
		return fmt.Errorf("failed to record input: %w", err)
	}
	return nil
}

// MarkOutput declares a working-directory file as an intended output. The
// file must exist inside this execution's working directory. Nothing is
// imported until Commit; marking the same path again replaces its spec.
func (e *Execution) MarkOutput(path string, spec OutputSpec) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StatusRunning {
		return newError(ErrAlreadyTerminal, "execution %s is %s", e.id, e.state)
	}

	abs, err := e.resolveInWorkDir(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(abs); err != nil {
		return newError(ErrNotFound, "no such file to mark as output: %s", path).withCause(err)
	}

	for i := range e.outputs {
		if e.outputs[i].path == abs {
			e.outputs[i].spec = spec
			return nil
		}
	}
	e.outputs = append(e.outputs, markedOutput{path: abs, spec: spec})
	return nil
}

// resolveInWorkDir turns path (relative to the working directory, or
// absolute) into an absolute path and rejects anything outside the
// directory.
func (e *Execution) resolveInWorkDir(path string) (string, error) {
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(e.workDir, abs)
	}
	abs = filepath.Clean(abs)
	if abs != e.workDir && !strings.HasPrefix(abs, e.workDir+string(os.PathSeparator)) {
		return "", fmt.Errorf("path %s is outside the working directory", path)
	}
	return abs, nil
}

// Commit finishes the execution successfully: every marked output is
// imported with this execution recorded as producer, the catalog row is
// closed, and the working directory is garbage-collected and removed.
//
// The output batch is all-or-nothing: if any import fails, outputs already
// imported by this commit are deleted again, the execution is recorded as
// failed, and the import error is returned. Calling Commit on a terminal
// execution fails with ALREADY_TERMINAL.
func (e *Execution) Commit(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StatusRunning {
		return newError(ErrAlreadyTerminal, "execution %s is %s", e.id, e.state)
	}

	err := e.repo.commitExecution(ctx, e)
	if err != nil {
		e.state = StatusFailed
	} else {
		e.state = StatusCommitted
	}

	// Cleanup happens on both paths: the terminal decision is made, so the
	// keep set is final.
	e.cleanupLocked()
	return err
}

// commitExecution runs the whole commit batch under the repository lock so
// no other mutation interleaves with it.
func (r *Repository) commitExecution(ctx context.Context, e *Execution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("repository is closed")
	}

	producer := string(e.id)
	imported := make([]ArtifactID, 0, len(e.outputs))

	for _, out := range e.outputs {
		id, err := r.importLocked(ctx, out.path, ImportSpec(out.spec), &producer)
		if err != nil {
			// Roll the batch back: this execution's outputs appear all
			// together or not at all.
			for _, done := range imported {
				if delErr := r.deleteLocked(ctx, done); delErr != nil {
					r.logger.Error("failed to roll back committed output",
						zap.String("artifact_id", string(done)), zap.Error(delErr))
				}
			}
			failMsg := fmt.Sprintf("output import failed for %s: %v", filepath.Base(out.path), err)
			if finErr := r.catalog.FinishExecution(ctx, string(e.id), catalog.StatusFailed, failMsg); finErr != nil {
				r.logger.Error("failed to record execution failure", zap.Error(finErr))
			}
			e.logger.Warn("commit aborted", zap.Error(err))
			return err
		}
		imported = append(imported, id)
		e.keep[out.path] = struct{}{}
	}

	if err := r.catalog.FinishExecution(ctx, string(e.id), catalog.StatusCommitted, ""); err != nil {
		return mapCatalogErr(err, string(e.id))
	}

	e.logger.Info("execution committed", zap.Int("outputs", len(imported)))
	return nil
}

// Fail finishes the execution as failed. No outputs are imported regardless
// of markings; the cause is recorded on the execution row; the working
// directory is still garbage-collected. Calling Fail on a terminal
// execution fails with ALREADY_TERMINAL.
func (e *Execution) Fail(ctx context.Context, cause error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StatusRunning {
		return newError(ErrAlreadyTerminal, "execution %s is %s", e.id, e.state)
	}

	text := ""
	if cause != nil {
		text = cause.Error()
	}
	err := e.repo.failExecution(ctx, string(e.id), text)

	e.state = StatusFailed
	e.cleanupLocked()

	if err != nil {
		return err
	}
	e.logger.Info("execution failed", zap.String("cause", text))
	return nil
}

// failExecution closes the catalog row as failed under the repository lock.
func (r *Repository) failExecution(ctx context.Context, id, errText string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("repository is closed")
	}
	if err := r.catalog.FinishExecution(ctx, id, catalog.StatusFailed, errText); err != nil {
		return mapCatalogErr(err, id)
	}
	return nil
}

// cleanupLocked garbage-collects and tears down the working directory.
// Runs exactly once, strictly after the terminal decision, so the keep set
// cannot change underneath it. Caller holds e.mu.
func (e *Execution) cleanupLocked() {
	if e.workDir == "" {
		return
	}
	if err := sweep(e.workDir, e.keep); err != nil {
		e.logger.Warn("garbage collection incomplete", zap.Error(err))
	}
	if err := os.RemoveAll(e.workDir); err != nil {
		e.logger.Warn("failed to remove working directory",
			zap.String("dir", e.workDir), zap.Error(err))
	}
	e.workDir = ""
}

// WithExecution runs fn inside a fresh execution and guarantees a terminal
// transition on every exit path. A nil return from fn commits the marked
// outputs; an error (or panic) fails the execution, skips all imports, and
// re-signals the original failure after cleanup.
func WithExecution(ctx context.Context, repo *Repository, description string, fn func(ex *Execution) error) error {
	ex, err := Begin(ctx, repo, description)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			if failErr := ex.Fail(ctx, fmt.Errorf("panic: %v", p)); failErr != nil && !IsAlreadyTerminal(failErr) {
				ex.logger.Error("failed to record panicking execution", zap.Error(failErr))
			}
			panic(p)
		}
	}()

	if err := fn(ex); err != nil {
		if failErr := ex.Fail(ctx, err); failErr != nil && !IsAlreadyTerminal(failErr) {
			return fmt.Errorf("work failed (%v) and so did cleanup: %w", err, failErr)
		}
		return err
	}
	return ex.Commit(ctx)
}
