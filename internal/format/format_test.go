package format

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benchlab/benchtop/pkg/lims"
)

func sampleArtifact() *lims.Artifact {
	return &lims.Artifact{
		ID:          "0199a1b2-c3d4-7e5f-8a9b-0c1d2e3f4a5b",
		Description: "aligned reads\nsecond line ignored",
		Size:        2 * 1024 * 1024,
		CreatedAt:   time.Now().Add(-90 * time.Second),
		Aliases:     []string{"sample1.bam"},
		Tags:        []string{"alignment", "hg38"},
	}
}

func TestArtifactTable(t *testing.T) {
	t.Run("empty list", func(t *testing.T) {
		var buf bytes.Buffer
		n := ArtifactTable(&buf, nil)
		assert.Zero(t, n)
		assert.Contains(t, buf.String(), "No artifacts found")
	})

	t.Run("renders truncated row", func(t *testing.T) {
		var buf bytes.Buffer
		n := ArtifactTable(&buf, []*lims.Artifact{sampleArtifact()})
		require.Equal(t, 1, n)

		out := buf.String()
		assert.Contains(t, out, "0199a1b2")
		assert.NotContains(t, out, "0199a1b2-c3d4", "IDs are truncated to 8 chars")
		assert.Contains(t, out, "2.0MiB")
		assert.Contains(t, out, "sample1.bam")
		assert.Contains(t, out, "aligned reads")
		assert.NotContains(t, out, "second line", "only the first description line is shown")
		assert.Contains(t, out, "1m ago")
		assert.Contains(t, out, "1 artifact found")
	})
}

func TestExecutionTable(t *testing.T) {
	finished := time.Now().Add(-time.Minute)
	execs := []*lims.ExecutionInfo{
		{ID: "e1e1e1e1-aaaa", Description: "align sample 1", Status: lims.StatusCommitted,
			StartedAt: time.Now().Add(-2 * time.Minute), FinishedAt: &finished},
		{ID: "e2e2e2e2-bbbb", Description: "still going", Status: lims.StatusRunning,
			StartedAt: time.Now()},
	}

	var buf bytes.Buffer
	n := ExecutionTable(&buf, execs)
	require.Equal(t, 2, n)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[2], "committed")
	assert.Contains(t, lines[3], "running")
	assert.Contains(t, lines[3], "-", "unfinished execution has no end time")
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSON(&buf, sampleArtifact()))
	assert.Contains(t, buf.String(), `"aliases"`)
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512B", formatSize(512))
	assert.Equal(t, "1.5KiB", formatSize(1536))
	assert.Equal(t, "1.0GiB", formatSize(1<<30))
}
