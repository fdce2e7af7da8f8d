package lims

import (
	"encoding/json"
	"time"

	"github.com/benchlab/benchtop/internal/catalog"
)

// ArtifactID is the stable identity of a managed file. It is deliberately a
// distinct type from filesystem paths and aliases: paths name scratch files
// in a working directory, aliases are rebindable labels, an ArtifactID is
// forever.
type ArtifactID string

// ExecutionID identifies one tracked unit of work.
type ExecutionID string

// ExecutionStatus is the lifecycle state of an execution.
type ExecutionStatus string

const (
	// StatusRunning: the execution's work is still in progress.
	StatusRunning ExecutionStatus = "running"

	// StatusCommitted: the execution finished and its marked outputs were
	// imported.
	StatusCommitted ExecutionStatus = "committed"

	// StatusFailed: the execution finished without importing any outputs.
	StatusFailed ExecutionStatus = "failed"
)

// Artifact is the metadata view of one managed file.
type Artifact struct {
	ID          ArtifactID `json:"id"`
	Description string     `json:"description"`
	Aliases     []string   `json:"aliases"`
	Tags        []string   `json:"tags"`
	Size        int64      `json:"size"`
	SHA256      string     `json:"sha256"`
	CreatedAt   time.Time  `json:"created_at"`
	// ProducedBy is the execution that produced this artifact, or "" for
	// externally imported files.
	ProducedBy ExecutionID `json:"produced_by,omitempty"`
}

// ExecutionInfo is the recorded view of one execution: timing, status,
// consumed inputs, and every program it ran.
type ExecutionInfo struct {
	ID          ExecutionID     `json:"id"`
	Description string          `json:"description"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  *time.Time      `json:"finished_at,omitempty"`
	Status      ExecutionStatus `json:"status"`
	Error       string          `json:"error,omitempty"`
	Inputs      []ArtifactID    `json:"inputs"`
	Programs    []ProgramReport `json:"programs"`
}

// ProgramReport is the stored record of one external program invocation.
type ProgramReport struct {
	Seq        int      `json:"seq"`
	Arguments  []string `json:"arguments"`
	Pid        int      `json:"pid"`
	ReturnCode int      `json:"return_code"`
	Stdout     string   `json:"stdout"`
	Stderr     string   `json:"stderr"`
}

// ImportSpec describes the metadata attached to a file at import time.
type ImportSpec struct {
	Description string
	Tags        []string
	// Alias optionally binds a unique name to the new artifact. Import fails
	// with ALIAS_CONFLICT, mutating nothing, if the name is taken.
	Alias string
}

// OutputSpec describes a working-directory file an execution intends to keep.
// The import happens at commit, not at marking time.
type OutputSpec struct {
	Description string
	Tags        []string
	Alias       string
}

// Query filters artifacts in Search. Zero-value fields are ignored; set
// fields are ANDed.
type Query struct {
	Tag string
	// AliasPattern is a glob (filepath.Match syntax) tested against each
	// alias of an artifact.
	AliasPattern string
	ProducedBy   ExecutionID
}

// artifactView converts a catalog row to the public metadata view.
func artifactView(row *catalog.Artifact) *Artifact {
	a := &Artifact{
		ID:          ArtifactID(row.ID),
		Description: row.Description,
		Size:        row.Size,
		SHA256:      row.SHA256,
		CreatedAt:   row.CreatedAt,
	}
	if row.ProducedBy != nil {
		a.ProducedBy = ExecutionID(*row.ProducedBy)
	}
	for _, al := range row.Aliases {
		a.Aliases = append(a.Aliases, al.Name)
	}
	for _, tg := range row.Tags {
		a.Tags = append(a.Tags, tg.Name)
	}
	return a
}

// executionView converts a catalog row to the public execution view.
func executionView(row *catalog.Execution) *ExecutionInfo {
	info := &ExecutionInfo{
		ID:          ExecutionID(row.ID),
		Description: row.Description,
		StartedAt:   row.StartedAt,
		FinishedAt:  row.FinishedAt,
		Status:      ExecutionStatus(row.Status),
		Error:       row.ErrorText,
	}
	for _, in := range row.Inputs {
		info.Inputs = append(info.Inputs, ArtifactID(in.ArtifactID))
	}
	for _, p := range row.Programs {
		var args []string
		// Arguments were marshaled by us; a decode failure means a hand-edited
		// catalog, surface the raw string rather than dropping the report.
		if err := json.Unmarshal([]byte(p.Arguments), &args); err != nil {
			args = []string{p.Arguments}
		}
		info.Programs = append(info.Programs, ProgramReport{
			Seq:        p.Seq,
			Arguments:  args,
			Pid:        p.Pid,
			ReturnCode: p.ReturnCode,
			Stdout:     p.Stdout,
			Stderr:     p.Stderr,
		})
	}
	return info
}
