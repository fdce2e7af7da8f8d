// Package store implements the content-addressed file area of a benchtop
// repository. Each managed artifact has exactly one immutable copy here,
// named by an opaque identifier that is never derived from any user-facing
// alias. Writes go through a temporary name in the same directory and are
// moved into place with an atomic rename, so a crash can never leave partial
// content under a final name.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// tmpPrefix marks in-flight writes. Anything carrying this prefix is not yet
// part of the store and is safe to remove at any time.
const tmpPrefix = ".tmp-"

// Store is a directory of immutable blobs keyed by opaque names.
// It is safe for concurrent use: Put never touches an existing blob, and
// blobs are never modified after the rename that publishes them.
type Store struct {
	dir string
}

// Open returns a Store rooted at dir, creating the directory if needed.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the store's root directory.
func (s *Store) Dir() string {
	return s.dir
}

// NewName allocates a fresh opaque blob name. The name is reserved only by
// convention (UUID collision is not a practical concern); nothing is written
// until Put is called with it.
func (s *Store) NewName() string {
	return uuid.New().String()
}

// Put copies the file at sourcePath into the store under name.
// The bytes are written to a temporary file in the store directory, synced,
// and then renamed into place, so the store either ends up with the complete
// blob or with no trace of it. Returns the byte count and hex SHA-256 of the
// stored content.
func (s *Store) Put(name, sourcePath string) (size int64, sum string, err error) {
	src, err := os.Open(sourcePath)
	if err != nil {
		return 0, "", fmt.Errorf("failed to open source %s: %w", sourcePath, err)
	}
	defer src.Close()

	tmpPath := filepath.Join(s.dir, tmpPrefix+name)
	tmp, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, "", fmt.Errorf("failed to create temporary file: %w", err)
	}

	// Any failure from here on removes the temporary file.
	cleanup := func(cause error) (int64, string, error) {
		tmp.Close()
		os.Remove(tmpPath)
		return 0, "", cause
	}

	hasher := sha256.New()
	size, err = io.Copy(io.MultiWriter(tmp, hasher), src)
	if err != nil {
		return cleanup(fmt.Errorf("failed to copy %s into store: %w", sourcePath, err))
	}

	// Sync before rename: the rename must only publish fully durable bytes.
	if err := tmp.Sync(); err != nil {
		return cleanup(fmt.Errorf("failed to sync blob: %w", err))
	}
	if err := tmp.Close(); err != nil {
		return cleanup(fmt.Errorf("failed to close blob: %w", err))
	}

	if err := os.Rename(tmpPath, filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmpPath)
		return 0, "", fmt.Errorf("failed to publish blob %s: %w", name, err)
	}

	return size, hex.EncodeToString(hasher.Sum(nil)), nil
}

// Path returns the filesystem path of the blob named name.
// Returns an error if the blob does not exist.
func (s *Store) Path(name string) (string, error) {
	p := filepath.Join(s.dir, name)
	if _, err := os.Stat(p); err != nil {
		return "", fmt.Errorf("blob %s not in store: %w", name, err)
	}
	return p, nil
}

// Exists reports whether a blob named name is present.
func (s *Store) Exists(name string) bool {
	_, err := os.Stat(filepath.Join(s.dir, name))
	return err == nil
}

// Open returns a reader over the blob named name. The caller must close it.
func (s *Store) Open(name string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		return nil, fmt.Errorf("failed to open blob %s: %w", name, err)
	}
	return f, nil
}

// Delete removes the blob named name. Deleting a blob that is already gone
// is not an error.
func (s *Store) Delete(name string) error {
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete blob %s: %w", name, err)
	}
	return nil
}

// Sweep removes leftover temporary files from interrupted Puts.
// Called once at repository open; in-flight writes cannot exist then because
// the repository is single-process.
func (s *Store) Sweep() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to read store directory: %w", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), tmpPrefix) {
			if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil {
				return fmt.Errorf("failed to remove stale temp file %s: %w", e.Name(), err)
			}
		}
	}
	return nil
}
