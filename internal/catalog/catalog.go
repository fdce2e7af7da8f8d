// Package catalog implements the durable metadata side of a benchtop
// repository: one SQLite database holding artifact rows, aliases, tags, and
// the execution history. Every mutation runs inside a database transaction,
// so the catalog is always observed in a consistent state even if the
// process dies mid-operation.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Sentinel errors. Callers map these onto their own error taxonomy; use
// errors.Is to test for them.
var (
	// ErrNotFound indicates an identifier or alias that resolves to nothing.
	ErrNotFound = errors.New("catalog: not found")

	// ErrAliasConflict indicates an alias already bound to a different artifact.
	ErrAliasConflict = errors.New("catalog: alias already bound")

	// ErrAlreadyTerminal indicates a second finish attempt on an execution.
	ErrAlreadyTerminal = errors.New("catalog: execution already terminal")

	// ErrCorrupt indicates the catalog file is unreadable or missing its schema.
	ErrCorrupt = errors.New("catalog: corrupt or unrecognized catalog")
)

// Catalog wraps the repository's SQLite database. It is safe for concurrent
// use; SQLite serializes writers through the single pooled connection.
type Catalog struct {
	db *gorm.DB
}

// Open opens the catalog database at path. When create is true a fresh
// schema is migrated into a new database; otherwise the file must already
// contain the benchtop schema, and anything else fails with ErrCorrupt.
func Open(path string, create bool) (*Catalog, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	// One connection: the repository is single-process single-writer, and a
	// lone connection gives SQLite serialized transactions for free.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	c := &Catalog{db: db}

	if create {
		if err := db.AutoMigrate(allModels()...); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to migrate catalog schema: %w", err)
		}
		return c, nil
	}

	if err := c.verifySchema(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return c, nil
}

// verifySchema checks that the expected tables exist and the database file is
// internally consistent. A truncated or foreign file fails here rather than
// being silently re-migrated.
func (c *Catalog) verifySchema() error {
	var result string
	if err := c.db.Raw("PRAGMA integrity_check").Scan(&result).Error; err != nil {
		return fmt.Errorf("%w: integrity check failed: %v", ErrCorrupt, err)
	}
	if result != "ok" {
		return fmt.Errorf("%w: integrity check reported %q", ErrCorrupt, result)
	}
	for _, m := range allModels() {
		if !c.db.Migrator().HasTable(m) {
			return fmt.Errorf("%w: missing table for %T", ErrCorrupt, m)
		}
	}
	return nil
}

// Close closes the underlying database. The single-connection pool drains
// in-flight statements first, so no transaction is left pending.
func (c *Catalog) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// InsertArtifact creates the artifact row together with its aliases and tags
// in one transaction. Fails with ErrAliasConflict (and inserts nothing) if
// any alias is already bound to a different artifact.
func (c *Catalog) InsertArtifact(ctx context.Context, a *Artifact) error {
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range a.Aliases {
			if err := checkAliasFree(tx, a.Aliases[i].Name, a.ID); err != nil {
				return err
			}
			a.Aliases[i].ArtifactID = a.ID
		}
		for i := range a.Tags {
			a.Tags[i].ArtifactID = a.ID
		}
		if err := tx.Create(a).Error; err != nil {
			return fmt.Errorf("failed to insert artifact: %w", err)
		}
		return nil
	})
}

// DeleteArtifact removes the artifact row, its aliases, and its tags in one
// transaction, returning the store name of the bytes that should follow.
// Input records referencing the artifact are kept for provenance.
func (c *Catalog) DeleteArtifact(ctx context.Context, id string) (storeName string, err error) {
	err = c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a Artifact
		if err := tx.First(&a, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: artifact %s", ErrNotFound, id)
			}
			return fmt.Errorf("failed to load artifact %s: %w", id, err)
		}
		storeName = a.StoreName

		if err := tx.Where("artifact_id = ?", id).Delete(&Alias{}).Error; err != nil {
			return fmt.Errorf("failed to delete aliases of %s: %w", id, err)
		}
		if err := tx.Where("artifact_id = ?", id).Delete(&Tag{}).Error; err != nil {
			return fmt.Errorf("failed to delete tags of %s: %w", id, err)
		}
		if err := tx.Delete(&Artifact{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to delete artifact %s: %w", id, err)
		}
		return nil
	})
	return storeName, err
}

// AddAlias binds name to the artifact. ErrAliasConflict if the name is
// already bound to a different artifact; binding the same name to the same
// artifact twice is a no-op.
func (c *Catalog) AddAlias(ctx context.Context, artifactID, name string) error {
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a Artifact
		if err := tx.First(&a, "id = ?", artifactID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: artifact %s", ErrNotFound, artifactID)
			}
			return fmt.Errorf("failed to load artifact %s: %w", artifactID, err)
		}
		if err := checkAliasFree(tx, name, artifactID); err != nil {
			return err
		}
		var existing Alias
		err := tx.First(&existing, "name = ?", name).Error
		if err == nil {
			return nil // already bound to this artifact
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to look up alias %q: %w", name, err)
		}
		if err := tx.Create(&Alias{Name: name, ArtifactID: artifactID}).Error; err != nil {
			return fmt.Errorf("failed to create alias %q: %w", name, err)
		}
		return nil
	})
}

// AliasInUse reports whether name is currently bound to any artifact.
// Used by import to refuse a conflicting alias before any bytes move.
func (c *Catalog) AliasInUse(ctx context.Context, name string) (bool, error) {
	var al Alias
	err := c.db.WithContext(ctx).First(&al, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up alias %q: %w", name, err)
	}
	return true, nil
}

// RemoveAlias unbinds name. ErrNotFound if the alias does not exist.
func (c *Catalog) RemoveAlias(ctx context.Context, name string) error {
	res := c.db.WithContext(ctx).Delete(&Alias{}, "name = ?", name)
	if res.Error != nil {
		return fmt.Errorf("failed to remove alias %q: %w", name, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: alias %q", ErrNotFound, name)
	}
	return nil
}

// Resolve looks up an artifact by ID first, then by alias, returning the row
// with aliases and tags populated. ErrNotFound when neither matches.
func (c *Catalog) Resolve(ctx context.Context, idOrAlias string) (*Artifact, error) {
	var a Artifact
	err := c.preloaded(ctx).First(&a, "id = ?", idOrAlias).Error
	if err == nil {
		return &a, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up artifact %s: %w", idOrAlias, err)
	}

	var al Alias
	if err := c.db.WithContext(ctx).First(&al, "name = ?", idOrAlias).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, idOrAlias)
		}
		return nil, fmt.Errorf("failed to look up alias %q: %w", idOrAlias, err)
	}
	if err := c.preloaded(ctx).First(&a, "id = ?", al.ArtifactID).Error; err != nil {
		return nil, fmt.Errorf("failed to load artifact %s for alias %q: %w", al.ArtifactID, idOrAlias, err)
	}
	return &a, nil
}

func (c *Catalog) preloaded(ctx context.Context) *gorm.DB {
	return c.db.WithContext(ctx).Preload("Aliases").Preload("Tags")
}

// checkAliasFree fails with ErrAliasConflict when name is bound to an
// artifact other than artifactID.
func checkAliasFree(tx *gorm.DB, name, artifactID string) error {
	var existing Alias
	err := tx.First(&existing, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up alias %q: %w", name, err)
	}
	if existing.ArtifactID != artifactID {
		return fmt.Errorf("%w: %q -> artifact %s", ErrAliasConflict, name, existing.ArtifactID)
	}
	return nil
}

// now is separated for clarity at call sites that stamp rows.
func now() time.Time {
	return time.Now().UTC()
}

// DatabaseFile returns the conventional catalog filename inside a repository
// directory.
func DatabaseFile(repoDir string) string {
	return filepath.Join(repoDir, "catalog.db")
}
