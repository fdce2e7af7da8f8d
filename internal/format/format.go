// Package format renders catalog records for the CLI, as fixed-width
// tables for humans and as JSON for scripting.
package format

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/benchlab/benchtop/pkg/lims"
)

// ArtifactTable writes artifacts as a formatted table to the provided writer.
// Columns: ID (truncated), SIZE, ALIASES, TAGS, PRODUCED BY, AGE, DESCRIPTION.
// Returns the number of artifacts formatted.
func ArtifactTable(w io.Writer, artifacts []*lims.Artifact) int {
	if len(artifacts) == 0 {
		fmt.Fprintln(w, "No artifacts found")
		return 0
	}

	fmt.Fprintf(w, "%-10s %-9s %-20s %-14s %-10s %-8s %s\n",
		"ID", "SIZE", "ALIASES", "TAGS", "BY", "AGE", "DESCRIPTION")
	fmt.Fprintf(w, "%-10s %-9s %-20s %-14s %-10s %-8s %s\n",
		"----------", "---------", "--------------------", "--------------", "----------", "--------", "------------------------------")

	for _, a := range artifacts {
		fmt.Fprintf(w, "%-10s %-9s %-20s %-14s %-10s %-8s %s\n",
			truncID(string(a.ID)),
			formatSize(a.Size),
			formatList(a.Aliases, 20),
			formatList(a.Tags, 14),
			truncID(string(a.ProducedBy)),
			formatAge(a.CreatedAt),
			truncate(firstLine(a.Description), 30),
		)
	}

	countMsg := "artifact"
	if len(artifacts) != 1 {
		countMsg = "artifacts"
	}
	fmt.Fprintf(w, "\n%d %s found\n", len(artifacts), countMsg)

	return len(artifacts)
}

// ExecutionTable writes executions as a formatted table to the provided
// writer. Columns: ID (truncated), STATUS, STARTED, FINISHED, DESCRIPTION.
func ExecutionTable(w io.Writer, execs []*lims.ExecutionInfo) int {
	if len(execs) == 0 {
		fmt.Fprintln(w, "No executions found")
		return 0
	}

	fmt.Fprintf(w, "%-10s %-10s %-8s %-8s %s\n",
		"ID", "STATUS", "STARTED", "ENDED", "DESCRIPTION")
	fmt.Fprintf(w, "%-10s %-10s %-8s %-8s %s\n",
		"----------", "----------", "--------", "--------", "------------------------------")

	for _, e := range execs {
		finished := "-"
		if e.FinishedAt != nil {
			finished = formatAge(*e.FinishedAt)
		}
		fmt.Fprintf(w, "%-10s %-10s %-8s %-8s %s\n",
			truncID(string(e.ID)),
			string(e.Status),
			formatAge(e.StartedAt),
			finished,
			truncate(firstLine(e.Description), 30),
		)
	}

	return len(execs)
}

// JSON writes any record as pretty-printed JSON followed by a newline.
// Used by the --json flag on ls, show and execs.
func JSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal to JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	fmt.Fprintln(w)
	return nil
}

// truncID shortens a UUID to its first 8 characters for compact display.
func truncID(id string) string {
	if id == "" {
		return "-"
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatSize renders a byte count with a binary unit suffix.
func formatSize(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.1fGiB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1fMiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1fKiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%dB", n)
	}
}

// formatList joins names with commas, truncated to fit a column.
func formatList(names []string, width int) string {
	if len(names) == 0 {
		return "-"
	}
	return truncate(strings.Join(names, ","), width)
}

// firstLine returns the first non-empty line, or "-" if there is none.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return "-"
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max-3] + "..."
	}
	return s
}

// formatAge renders a timestamp as relative time like "2m ago".
func formatAge(t time.Time) string {
	if t.IsZero() {
		return "-"
	}

	diff := time.Since(t)
	switch {
	case diff < time.Minute:
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
}
