package lims

import (
	"fmt"
	"os"
	"path/filepath"
)

// sweep is the garbage collector: it removes every top-level file and
// subdirectory of dir whose path is not in keep. It runs exactly once per
// execution, after the commit/fail decision, so the keep set is already
// final and collection can never race with output marking.
func sweep(dir string, keep map[string]struct{}) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read working directory: %w", err)
	}

	var firstErr error
	for _, entry := range entries {
		p := filepath.Join(dir, entry.Name())
		if _, kept := keep[p]; kept {
			continue
		}
		if err := os.RemoveAll(p); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to collect %s: %w", p, err)
		}
	}
	return firstErr
}
