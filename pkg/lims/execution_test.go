package lims

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeWorkFile drops a scratch file into an execution's working directory.
func writeWorkFile(t *testing.T, ex *Execution, name, content string) string {
	t.Helper()
	p := filepath.Join(ex.WorkDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestCommitImportsMarkedOutputs(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	ex, err := Begin(ctx, repo, "produce two results")
	require.NoError(t, err)
	workDir := ex.WorkDir()

	writeWorkFile(t, ex, "result1.txt", "first result")
	writeWorkFile(t, ex, "result2.txt", "second result")
	writeWorkFile(t, ex, "scratch.tmp", "intermediate junk")

	require.NoError(t, ex.MarkOutput("result1.txt", OutputSpec{Alias: "r1"}))
	require.NoError(t, ex.MarkOutput("result2.txt", OutputSpec{Alias: "r2", Tags: []string{"result"}}))

	require.NoError(t, ex.Commit(ctx))
	assert.Equal(t, StatusCommitted, ex.Status())

	// Exactly two new artifacts, both referencing this execution as producer.
	produced, err := repo.Search(ctx, Query{ProducedBy: ex.ID()})
	require.NoError(t, err)
	require.Len(t, produced, 2)
	for _, a := range produced {
		assert.Equal(t, ex.ID(), a.ProducedBy)
	}

	// Scratch files and the working directory itself are gone.
	_, err = os.Stat(workDir)
	assert.True(t, os.IsNotExist(err), "working directory must be torn down after commit")

	// The committed bytes round-trip.
	dest := filepath.Join(t.TempDir(), "r1")
	require.NoError(t, repo.Export(ctx, "r1", dest))
	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "first result", string(got))

	info, err := repo.ExecutionInfo(ctx, ex.ID())
	require.NoError(t, err)
	assert.Equal(t, StatusCommitted, info.Status)
	require.NotNil(t, info.FinishedAt)
}

func TestFailImportsNothing(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	ex, err := Begin(ctx, repo, "doomed work")
	require.NoError(t, err)
	workDir := ex.WorkDir()

	writeWorkFile(t, ex, "almost.txt", "so close")
	require.NoError(t, ex.MarkOutput("almost.txt", OutputSpec{Alias: "almost"}))

	require.NoError(t, ex.Fail(ctx, errors.New("aligner segfaulted")))
	assert.Equal(t, StatusFailed, ex.Status())

	// Marked or not, nothing was imported.
	all, err := repo.Search(ctx, Query{})
	require.NoError(t, err)
	assert.Empty(t, all)
	_, err = repo.Artifact(ctx, "almost")
	assert.True(t, IsNotFound(err))

	// Cleanup is not skipped because the work failed.
	_, err = os.Stat(workDir)
	assert.True(t, os.IsNotExist(err))

	info, err := repo.ExecutionInfo(ctx, ex.ID())
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, info.Status)
	assert.Contains(t, info.Error, "segfaulted")
}

func TestCommitIsAllOrNothing(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	// Occupy an alias so the second output import must fail.
	_, err := repo.Import(ctx, writeSource(t, "squatter"), ImportSpec{Alias: "taken"})
	require.NoError(t, err)

	ex, err := Begin(ctx, repo, "partial failure")
	require.NoError(t, err)
	writeWorkFile(t, ex, "ok.txt", "fine")
	writeWorkFile(t, ex, "clash.txt", "conflicting")
	require.NoError(t, ex.MarkOutput("ok.txt", OutputSpec{Alias: "fresh"}))
	require.NoError(t, ex.MarkOutput("clash.txt", OutputSpec{Alias: "taken"}))

	err = ex.Commit(ctx)
	require.Error(t, err)
	assert.True(t, IsAliasConflict(err))
	assert.Equal(t, StatusFailed, ex.Status())

	// The already-imported first output was rolled back: no artifact from
	// this execution survives.
	produced, err := repo.Search(ctx, Query{ProducedBy: ex.ID()})
	require.NoError(t, err)
	assert.Empty(t, produced)
	_, err = repo.Artifact(ctx, "fresh")
	assert.True(t, IsNotFound(err))

	// The squatter is untouched.
	_, err = repo.Artifact(ctx, "taken")
	assert.NoError(t, err)

	info, err := repo.ExecutionInfo(ctx, ex.ID())
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, info.Status)
}

func TestAlreadyTerminal(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	ex, err := Begin(ctx, repo, "finishes once")
	require.NoError(t, err)
	require.NoError(t, ex.Commit(ctx))

	assert.True(t, IsAlreadyTerminal(ex.Commit(ctx)))
	assert.True(t, IsAlreadyTerminal(ex.Fail(ctx, errors.New("late"))))

	// No additional catalog mutation happened.
	info, err := repo.ExecutionInfo(ctx, ex.ID())
	require.NoError(t, err)
	assert.Equal(t, StatusCommitted, info.Status)
	assert.Empty(t, info.Error)

	// Marking or fetching after the terminal transition is rejected too.
	assert.True(t, IsAlreadyTerminal(ex.MarkOutput("x", OutputSpec{})))
	_, err = ex.Use(ctx, "anything")
	assert.True(t, IsAlreadyTerminal(err))
}

func TestUseRecordsInputs(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	id, err := repo.Import(ctx, writeSource(t, "reference data"), ImportSpec{Alias: "ref"})
	require.NoError(t, err)

	ex, err := Begin(ctx, repo, "consume the reference")
	require.NoError(t, err)

	path, err := ex.Use(ctx, "ref")
	require.NoError(t, err)
	assert.Equal(t, ex.WorkDir(), filepath.Dir(path))
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "reference data", string(got))

	_, err = ex.Use(ctx, "no-such-alias")
	assert.True(t, IsNotFound(err))

	require.NoError(t, ex.Commit(ctx))

	// The input is part of the execution's provenance even though it
	// produced nothing.
	info, err := repo.ExecutionInfo(ctx, ex.ID())
	require.NoError(t, err)
	assert.Equal(t, []ArtifactID{id}, info.Inputs)
}

func TestMarkOutputValidation(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	ex, err := Begin(ctx, repo, "validation")
	require.NoError(t, err)
	defer ex.Fail(ctx, nil)

	err = ex.MarkOutput("missing.txt", OutputSpec{})
	assert.True(t, IsNotFound(err), "marking a nonexistent file must fail")

	err = ex.MarkOutput("../outside.txt", OutputSpec{})
	assert.Error(t, err, "paths outside the working directory are rejected")

	// Re-marking the same path replaces the spec instead of importing twice.
	writeWorkFile(t, ex, "once.txt", "once")
	require.NoError(t, ex.MarkOutput("once.txt", OutputSpec{Alias: "draft"}))
	require.NoError(t, ex.MarkOutput("once.txt", OutputSpec{Alias: "final"}))
}

func TestWithExecution(t *testing.T) {
	t.Run("error path imports nothing and re-signals", func(t *testing.T) {
		repo := openTestRepo(t)
		ctx := context.Background()
		boom := errors.New("boom")

		err := WithExecution(ctx, repo, "failing work", func(ex *Execution) error {
			writeWorkFile(t, ex, "out.txt", "tempting")
			require.NoError(t, ex.MarkOutput("out.txt", OutputSpec{Alias: "tempting"}))
			return boom
		})
		assert.ErrorIs(t, err, boom)

		all, err := repo.Search(ctx, Query{})
		require.NoError(t, err)
		assert.Empty(t, all, "an execution whose work errored must never create artifacts")
	})

	t.Run("end to end scenario", func(t *testing.T) {
		// Open empty repository, run an execution invoking a no-op command,
		// mark out.txt (content "hello") with alias greeting; afterwards the
		// export reproduces "hello" and the provenance search finds exactly
		// that artifact.
		repo := openTestRepo(t)
		ctx := context.Background()

		var execID ExecutionID
		err := WithExecution(ctx, repo, "say hello", func(ex *Execution) error {
			execID = ex.ID()
			if _, err := ex.Run(ctx, []string{"true"}); err != nil {
				return err
			}
			writeWorkFile(t, ex, "out.txt", "hello")
			return ex.MarkOutput("out.txt", OutputSpec{Description: "a greeting", Alias: "greeting"})
		})
		require.NoError(t, err)

		dest := filepath.Join(t.TempDir(), "x")
		require.NoError(t, repo.Export(ctx, "greeting", dest))
		got, err := os.ReadFile(dest)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(got))

		produced, err := repo.Search(ctx, Query{ProducedBy: execID})
		require.NoError(t, err)
		require.Len(t, produced, 1)
		assert.Contains(t, produced[0].Aliases, "greeting")
	})
}
