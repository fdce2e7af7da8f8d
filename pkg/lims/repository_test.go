package lims

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(filepath.Join(t.TempDir(), "repo"), Options{Create: true})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func writeSource(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "source.txt")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestOpenRepository(t *testing.T) {
	t.Run("nonexistent location without Create is NotFound", func(t *testing.T) {
		_, err := Open(filepath.Join(t.TempDir(), "missing"), Options{})
		require.Error(t, err)
		assert.True(t, IsNotFound(err))
	})

	t.Run("create then reopen", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "repo")

		repo, err := Open(dir, Options{Create: true})
		require.NoError(t, err)
		id, err := repo.Import(context.Background(), writeSource(t, "persisted"), ImportSpec{Alias: "keeper"})
		require.NoError(t, err)
		require.NoError(t, repo.Close())

		repo, err = Open(dir, Options{})
		require.NoError(t, err)
		defer repo.Close()

		art, err := repo.Artifact(context.Background(), "keeper")
		require.NoError(t, err)
		assert.Equal(t, id, art.ID)
	})

	t.Run("corrupted catalog is refused, not truncated", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "repo")
		require.NoError(t, os.MkdirAll(dir, 0o755))
		dbPath := filepath.Join(dir, "catalog.db")
		require.NoError(t, os.WriteFile(dbPath, []byte("junk"), 0o644))

		_, err := Open(dir, Options{Create: true})
		require.Error(t, err)
		assert.Equal(t, ErrCorruptRepository, CodeOf(err))

		data, err := os.ReadFile(dbPath)
		require.NoError(t, err)
		assert.Equal(t, "junk", string(data))
	})
}

func TestImportExportRoundTrip(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	content := "chromosome 7, 159 Mbp"
	id, err := repo.Import(ctx, writeSource(t, content), ImportSpec{
		Description: "reference sequence",
		Tags:        []string{"reference"},
		Alias:       "chr7",
	})
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "exported")
	require.NoError(t, repo.Export(ctx, string(id), dest))
	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, content, string(got), "export must reproduce imported bytes exactly")

	// Export by alias resolves to the same bytes.
	dest2 := filepath.Join(t.TempDir(), "exported-by-alias")
	require.NoError(t, repo.Export(ctx, "chr7", dest2))
	got2, err := os.ReadFile(dest2)
	require.NoError(t, err)
	assert.Equal(t, content, string(got2))

	art, err := repo.Artifact(ctx, "chr7")
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), art.Size)
	assert.Equal(t, []string{"reference"}, art.Tags)
	assert.Empty(t, art.ProducedBy, "externally imported artifact has no producer")
}

func TestImportAliasConflict(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	first, err := repo.Import(ctx, writeSource(t, "original"), ImportSpec{Alias: "greeting"})
	require.NoError(t, err)

	_, err = repo.Import(ctx, writeSource(t, "impostor"), ImportSpec{Alias: "greeting"})
	require.Error(t, err)
	assert.True(t, IsAliasConflict(err))

	// The first artifact is unaffected and still resolvable; the failed
	// import left nothing behind.
	art, err := repo.Artifact(ctx, "greeting")
	require.NoError(t, err)
	assert.Equal(t, first, art.ID)

	all, err := repo.Search(ctx, Query{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestImportUnreadableSource(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	_, err := repo.Import(ctx, filepath.Join(t.TempDir(), "nope"), ImportSpec{Alias: "ghost"})
	require.Error(t, err)
	assert.Equal(t, ErrImportFailed, CodeOf(err))

	// No partial state in either half of the repository.
	all, err := repo.Search(ctx, Query{})
	require.NoError(t, err)
	assert.Empty(t, all)
	_, err = repo.Artifact(ctx, "ghost")
	assert.True(t, IsNotFound(err))
}

func TestDelete(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	id, err := repo.Import(ctx, writeSource(t, "doomed"), ImportSpec{Alias: "victim"})
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, id))

	_, err = repo.Artifact(ctx, "victim")
	assert.True(t, IsNotFound(err), "deleted alias must not resolve")
	_, err = repo.Artifact(ctx, string(id))
	assert.True(t, IsNotFound(err))

	// Bytes are gone from the store directory too.
	entries, err := os.ReadDir(filepath.Join(repo.Dir(), storeDirName))
	require.NoError(t, err)
	assert.Empty(t, entries)

	assert.True(t, IsNotFound(repo.Delete(ctx, id)), "double delete is NotFound")
}

func TestAliasOperations(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	a, err := repo.Import(ctx, writeSource(t, "a"), ImportSpec{})
	require.NoError(t, err)
	b, err := repo.Import(ctx, writeSource(t, "b"), ImportSpec{})
	require.NoError(t, err)

	require.NoError(t, repo.AddAlias(ctx, a, "primary"))

	err = repo.AddAlias(ctx, b, "primary")
	assert.True(t, IsAliasConflict(err))

	// Aliases can move without the artifact changing identity.
	require.NoError(t, repo.RemoveAlias(ctx, "primary"))
	require.NoError(t, repo.AddAlias(ctx, b, "primary"))
	art, err := repo.Artifact(ctx, "primary")
	require.NoError(t, err)
	assert.Equal(t, b, art.ID)

	assert.True(t, IsNotFound(repo.RemoveAlias(ctx, "never-bound")))
}

func TestSearch(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	_, err := repo.Import(ctx, writeSource(t, "x"), ImportSpec{Alias: "sample1.bam", Tags: []string{"alignment"}})
	require.NoError(t, err)
	_, err = repo.Import(ctx, writeSource(t, "y"), ImportSpec{Alias: "sample2.bam", Tags: []string{"alignment"}})
	require.NoError(t, err)
	_, err = repo.Import(ctx, writeSource(t, "z"), ImportSpec{Alias: "notes.txt"})
	require.NoError(t, err)

	byTag, err := repo.Search(ctx, Query{Tag: "alignment"})
	require.NoError(t, err)
	assert.Len(t, byTag, 2)

	byGlob, err := repo.Search(ctx, Query{AliasPattern: "*.bam"})
	require.NoError(t, err)
	assert.Len(t, byGlob, 2)

	// Re-running the query re-executes it against current state.
	require.NoError(t, repo.RemoveAlias(ctx, "sample2.bam"))
	byGlob, err = repo.Search(ctx, Query{AliasPattern: "*.bam"})
	require.NoError(t, err)
	assert.Len(t, byGlob, 1)
}

func TestClosedRepository(t *testing.T) {
	repo := openTestRepo(t)
	require.NoError(t, repo.Close())
	require.NoError(t, repo.Close(), "double close is a no-op")

	_, err := repo.Import(context.Background(), writeSource(t, "late"), ImportSpec{})
	assert.Error(t, err)
	_, err = repo.Search(context.Background(), Query{})
	assert.Error(t, err)
}
