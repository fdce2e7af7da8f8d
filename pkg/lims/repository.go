package lims

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/benchlab/benchtop/internal/catalog"
	"github.com/benchlab/benchtop/internal/store"
)

// storeDirName is the content-store directory inside a repository.
const storeDirName = "files"

// Options controls how a repository is opened.
type Options struct {
	// Create makes Open build a fresh empty repository when the path does
	// not hold one. Without it, opening a nonexistent location fails with
	// NOT_FOUND.
	Create bool

	// Logger receives structured operational logs. Defaults to a no-op
	// logger.
	Logger *zap.Logger
}

// Repository is a provenance-tracked file store: a content-store directory
// plus a transactional catalog, rooted at one location on disk.
//
// All mutating operations are serialized by an internal lock, so concurrent
// executions in one process never interleave a partial import or delete.
// Reads only ever observe committed catalog state and may run concurrently.
type Repository struct {
	dir     string
	catalog *catalog.Catalog
	store   *store.Store
	logger  *zap.Logger

	// mu serializes mutations against each other and against Close. Reads
	// take the read side so Close cannot pull the catalog out from under
	// them.
	mu     sync.RWMutex
	closed bool
}

// Open opens the repository rooted at dir. See Options for the semantics of
// a nonexistent location. A location that exists but holds an unreadable or
// foreign catalog fails with CORRUPT_REPOSITORY; data is never truncated.
func Open(dir string, opts Options) (*Repository, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	dbPath := catalog.DatabaseFile(dir)
	_, statErr := os.Stat(dbPath)
	exists := statErr == nil

	if !exists {
		if !opts.Create {
			return nil, newError(ErrNotFound, "no repository at %s", dir)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create repository directory: %w", err)
		}
	}

	cat, err := catalog.Open(dbPath, !exists)
	if err != nil {
		if errors.Is(err, catalog.ErrCorrupt) {
			return nil, newError(ErrCorruptRepository, "catalog at %s is not usable", dbPath).withCause(err)
		}
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	st, err := store.Open(filepath.Join(dir, storeDirName))
	if err != nil {
		cat.Close()
		return nil, fmt.Errorf("failed to open content store: %w", err)
	}
	// Clear temp files from a previous crash before handing the store out.
	if err := st.Sweep(); err != nil {
		cat.Close()
		return nil, fmt.Errorf("failed to sweep content store: %w", err)
	}

	logger.Info("repository opened",
		zap.String("dir", dir),
		zap.Bool("created", !exists),
	)

	return &Repository{
		dir:     dir,
		catalog: cat,
		store:   st,
		logger:  logger,
	}, nil
}

// Dir returns the repository root directory.
func (r *Repository) Dir() string {
	return r.dir
}

// Close releases the repository. Any in-flight mutation finishes first;
// after Close every operation fails.
func (r *Repository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	r.logger.Info("repository closed", zap.String("dir", r.dir))
	return r.catalog.Close()
}

// Import copies the file at sourcePath into the repository and records its
// metadata, atomically: on any failure neither bytes nor a catalog row
// remain. Fails with ALIAS_CONFLICT (before anything moves) if spec.Alias is
// taken, and with IMPORT_FAILED if the source is unreadable or either half
// of the two-phase write fails.
func (r *Repository) Import(ctx context.Context, sourcePath string, spec ImportSpec) (ArtifactID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.importLocked(ctx, sourcePath, spec, nil)
}

// importLocked is the shared import path; producedBy is non-nil when an
// execution commit is importing one of its outputs. Caller holds mu.
func (r *Repository) importLocked(ctx context.Context, sourcePath string, spec ImportSpec, producedBy *string) (ArtifactID, error) {
	if r.closed {
		return "", fmt.Errorf("repository is closed")
	}

	// Alias pre-check: a conflicting alias must fail before the content
	// store is touched at all.
	if spec.Alias != "" {
		inUse, err := r.catalog.AliasInUse(ctx, spec.Alias)
		if err != nil {
			return "", fmt.Errorf("failed to check alias: %w", err)
		}
		if inUse {
			return "", newError(ErrAliasConflict, "alias %q is already bound", spec.Alias)
		}
	}

	// Phase one: physical write, atomic within the store.
	name := r.store.NewName()
	size, sum, err := r.store.Put(name, sourcePath)
	if err != nil {
		return "", newError(ErrImportFailed, "cannot import %s", sourcePath).withCause(err)
	}

	// Phase two: logical commit. If it fails the blob is compensated away,
	// leaving the repository as if the import was never attempted.
	row := &catalog.Artifact{
		ID:          newID(),
		StoreName:   name,
		Description: spec.Description,
		Size:        size,
		SHA256:      sum,
		CreatedAt:   nowUTC(),
		ProducedBy:  producedBy,
	}
	if spec.Alias != "" {
		row.Aliases = []catalog.Alias{{Name: spec.Alias}}
	}
	for _, tg := range spec.Tags {
		row.Tags = append(row.Tags, catalog.Tag{Name: tg})
	}

	if err := r.catalog.InsertArtifact(ctx, row); err != nil {
		if delErr := r.store.Delete(name); delErr != nil {
			r.logger.Error("failed to roll back store write after catalog failure",
				zap.String("blob", name), zap.Error(delErr))
		}
		if errors.Is(err, catalog.ErrAliasConflict) {
			return "", newError(ErrAliasConflict, "alias %q is already bound", spec.Alias).withCause(err)
		}
		return "", newError(ErrImportFailed, "cannot record %s in catalog", sourcePath).withCause(err)
	}

	r.logger.Info("artifact imported",
		zap.String("artifact_id", row.ID),
		zap.String("source", sourcePath),
		zap.Int64("size", size),
	)
	return ArtifactID(row.ID), nil
}

// Export copies the bytes of an artifact to destPath. Read-only: repository
// state is never mutated, and a failed export leaves no managed state
// behind. Fails with NOT_FOUND if idOrAlias resolves to nothing.
func (r *Repository) Export(ctx context.Context, idOrAlias, destPath string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("repository is closed")
	}

	row, err := r.catalog.Resolve(ctx, idOrAlias)
	if err != nil {
		return mapCatalogErr(err, idOrAlias)
	}

	src, err := r.store.Open(row.StoreName)
	if err != nil {
		return fmt.Errorf("failed to open stored bytes of %s: %w", row.ID, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", destPath, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(destPath)
		return fmt.Errorf("failed to copy artifact %s to %s: %w", row.ID, destPath, err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", destPath, err)
	}
	return nil
}

// Delete removes an artifact: catalog row first, in one transaction, then
// the stored bytes. The ordering means a crash in between leaves at worst
// an orphaned blob on disk, never a catalog row pointing at missing
// content. A failed byte removal is logged and not reported as an error.
func (r *Repository) Delete(ctx context.Context, id ArtifactID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deleteLocked(ctx, id)
}

// deleteLocked is the shared delete path. Caller holds mu.
func (r *Repository) deleteLocked(ctx context.Context, id ArtifactID) error {
	if r.closed {
		return fmt.Errorf("repository is closed")
	}

	storeName, err := r.catalog.DeleteArtifact(ctx, string(id))
	if err != nil {
		return mapCatalogErr(err, string(id))
	}

	if err := r.store.Delete(storeName); err != nil {
		// Accepted residual: the row is gone, the orphaned blob is harmless.
		r.logger.Warn("catalog row deleted but stored bytes remain",
			zap.String("artifact_id", string(id)),
			zap.String("blob", storeName),
			zap.Error(err),
		)
	}

	r.logger.Info("artifact deleted", zap.String("artifact_id", string(id)))
	return nil
}

// AddAlias binds a new unique name to an artifact. Pure catalog mutation;
// fails with ALIAS_CONFLICT if the name is bound to a different artifact.
func (r *Repository) AddAlias(ctx context.Context, id ArtifactID, alias string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("repository is closed")
	}
	if err := r.catalog.AddAlias(ctx, string(id), alias); err != nil {
		return mapCatalogErr(err, alias)
	}
	return nil
}

// RemoveAlias unbinds an alias. The artifact keeps its identity and any
// other aliases.
func (r *Repository) RemoveAlias(ctx context.Context, alias string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("repository is closed")
	}
	if err := r.catalog.RemoveAlias(ctx, alias); err != nil {
		return mapCatalogErr(err, alias)
	}
	return nil
}

// Artifact returns the metadata of one artifact by ID or alias.
func (r *Repository) Artifact(ctx context.Context, idOrAlias string) (*Artifact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("repository is closed")
	}
	row, err := r.catalog.Resolve(ctx, idOrAlias)
	if err != nil {
		return nil, mapCatalogErr(err, idOrAlias)
	}
	return artifactView(row), nil
}

// Search returns the artifacts matching q, in no guaranteed order. Every
// call re-executes the query against current catalog state.
func (r *Repository) Search(ctx context.Context, q Query) ([]*Artifact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("repository is closed")
	}
	rows, err := r.catalog.Search(ctx, catalog.Query{
		Tag:          q.Tag,
		AliasPattern: q.AliasPattern,
		ProducedBy:   string(q.ProducedBy),
	})
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	out := make([]*Artifact, 0, len(rows))
	for i := range rows {
		out = append(out, artifactView(&rows[i]))
	}
	return out, nil
}

// ExecutionInfo returns the recorded view of one execution.
func (r *Repository) ExecutionInfo(ctx context.Context, id ExecutionID) (*ExecutionInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("repository is closed")
	}
	row, err := r.catalog.GetExecution(ctx, string(id))
	if err != nil {
		return nil, mapCatalogErr(err, string(id))
	}
	return executionView(row), nil
}

// Executions lists all recorded executions, oldest first. Program reports
// and inputs are not populated; use ExecutionInfo for one execution's full
// history.
func (r *Repository) Executions(ctx context.Context) ([]*ExecutionInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("repository is closed")
	}
	rows, err := r.catalog.ListExecutions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	out := make([]*ExecutionInfo, 0, len(rows))
	for i := range rows {
		out = append(out, executionView(&rows[i]))
	}
	return out, nil
}

// mapCatalogErr translates catalog sentinels into the public taxonomy.
func mapCatalogErr(err error, subject string) error {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return newError(ErrNotFound, "%q does not resolve to an artifact or execution", subject).withCause(err)
	case errors.Is(err, catalog.ErrAliasConflict):
		return newError(ErrAliasConflict, "alias %q is already bound", subject).withCause(err)
	case errors.Is(err, catalog.ErrAlreadyTerminal):
		return newError(ErrAlreadyTerminal, "execution %s is already terminal", subject).withCause(err)
	default:
		return err
	}
}
