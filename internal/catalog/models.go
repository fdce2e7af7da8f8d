package catalog

import (
	"time"
)

// Execution status values. An execution row is terminal once FinishedAt is
// set; Status then records how it ended.
const (
	StatusRunning   = "running"
	StatusCommitted = "committed"
	StatusFailed    = "failed"
)

// Artifact is the catalog row for one managed file. StoreName is the opaque
// content-store blob name; it is never shown to users and never derived from
// an alias.
type Artifact struct {
	ID          string `gorm:"primaryKey"`
	StoreName   string `gorm:"uniqueIndex;not null"`
	Description string
	Size        int64
	SHA256      string
	CreatedAt   time.Time
	// ProducedBy references the execution that produced this artifact.
	// Nil for externally imported files.
	ProducedBy *string `gorm:"index"`

	Aliases []Alias `gorm:"foreignKey:ArtifactID"`
	Tags    []Tag   `gorm:"foreignKey:ArtifactID"`
}

// Alias binds a unique human-readable name to exactly one artifact.
type Alias struct {
	Name       string `gorm:"primaryKey"`
	ArtifactID string `gorm:"index;not null"`
}

// Tag attaches a free-form label to an artifact. An artifact may carry any
// number of tags; the pair is the key.
type Tag struct {
	ArtifactID string `gorm:"primaryKey"`
	Name       string `gorm:"primaryKey;index"`
}

// Execution is the catalog row for one tracked unit of work.
type Execution struct {
	ID          string `gorm:"primaryKey"`
	Description string
	StartedAt   time.Time
	FinishedAt  *time.Time
	Status      string `gorm:"index;not null"`
	// ErrorText holds the failure cause for failed executions.
	ErrorText string

	Inputs   []InputFile  `gorm:"foreignKey:ExecutionID"`
	Programs []ProgramRun `gorm:"foreignKey:ExecutionID"`
}

// InputFile records that an execution consumed an artifact from the
// repository. Kept even after the artifact itself is deleted, so provenance
// queries still show what an execution read.
type InputFile struct {
	ExecutionID string `gorm:"primaryKey"`
	ArtifactID  string `gorm:"primaryKey"`
}

// ProgramRun records one external program invocation inside an execution:
// the argument vector, exit information, and captured output streams.
type ProgramRun struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	ExecutionID string `gorm:"index;not null"`
	Seq         int
	Arguments   string // JSON-encoded argv
	Pid         int
	ReturnCode  int
	Stdout      string
	Stderr      string
}

// allModels lists every table the catalog migrates on creation.
func allModels() []any {
	return []any{
		&Artifact{},
		&Alias{},
		&Tag{},
		&Execution{},
		&InputFile{},
		&ProgramRun{},
	}
}
