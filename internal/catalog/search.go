package catalog

import (
	"context"
	"fmt"
	"path/filepath"
)

// Query filters artifacts. Zero-value fields are ignored; set fields are
// ANDed together.
type Query struct {
	// Tag matches artifacts carrying this exact tag.
	Tag string
	// AliasPattern is a glob matched against each alias of an artifact
	// (filepath.Match syntax). An artifact matches if any alias matches.
	AliasPattern string
	// ProducedBy matches artifacts produced by this execution ID.
	ProducedBy string
}

// Search returns the artifacts matching q, aliases and tags populated, in no
// guaranteed order. The query runs fresh on every call; there is no cached
// result to go stale.
func (c *Catalog) Search(ctx context.Context, q Query) ([]Artifact, error) {
	db := c.preloaded(ctx)

	if q.Tag != "" {
		db = db.Where("id IN (?)",
			c.db.Model(&Tag{}).Select("artifact_id").Where("name = ?", q.Tag))
	}
	if q.ProducedBy != "" {
		db = db.Where("produced_by = ?", q.ProducedBy)
	}

	var artifacts []Artifact
	if err := db.Find(&artifacts).Error; err != nil {
		return nil, fmt.Errorf("failed to search artifacts: %w", err)
	}

	// Glob matching happens here rather than in SQL so the pattern syntax
	// stays identical to the rest of the tool's glob flags.
	if q.AliasPattern == "" {
		return artifacts, nil
	}
	matched := artifacts[:0]
	for _, a := range artifacts {
		if aliasMatches(&a, q.AliasPattern) {
			matched = append(matched, a)
		}
	}
	return matched, nil
}

func aliasMatches(a *Artifact, pattern string) bool {
	for _, al := range a.Aliases {
		ok, err := filepath.Match(pattern, al.Name)
		if err == nil && ok {
			return true
		}
	}
	return false
}
