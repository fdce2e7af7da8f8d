package lims

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// newID mints an artifact or execution identifier. UUIDs are never reused,
// which is the whole identity contract.
func newID() string {
	return uuid.New().String()
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

// uniqueName returns a filename that does not collide with anything in dir.
// Used when materializing repository files into a working directory, so a
// fetched file can never clobber scratch state.
func uniqueName(dir string) string {
	for {
		name := strings.ReplaceAll(uuid.New().String(), "-", "")[:20]
		matches, err := filepath.Glob(filepath.Join(dir, name+"*"))
		if err == nil && len(matches) == 0 {
			return name
		}
	}
}
