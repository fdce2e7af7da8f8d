// Package printer renders benchtop's human-facing CLI output: colored
// status lines, labeled detail fields, and structured error messages.
package printer

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

func init() {
	// Force color output even when not connected to TTY
	// Users can disable with NO_COLOR environment variable
	if os.Getenv("NO_COLOR") == "" {
		color.NoColor = false
	}
}

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
)

// Success prints a success message in green with a checkmark prefix.
func Success(format string, a ...any) {
	green.Printf("✓ %s", fmt.Sprintf(format, a...))
}

// Warning prints a warning message in yellow to stderr. Used for the
// degraded-but-continuing cases, like catalog rows deleted while the
// stored bytes could not be removed.
func Warning(format string, a ...any) {
	yellow.Fprintf(os.Stderr, "⚠️  %s", fmt.Sprintf(format, a...))
}

// Field prints a labeled value line, aligned for `show` style output.
func Field(label string, value any) {
	cyan.Printf("%-14s", label+":")
	fmt.Printf(" %v\n", value)
}

// Error prints a formatted error with an optional suggestion to stderr
// and returns a simple error for Cobra (which won't re-print it because
// the root command sets SilenceErrors).
func Error(title string, explanation string, suggestions ...string) error {
	red.Fprintf(os.Stderr, "%s\n", title)

	if explanation != "" {
		fmt.Fprintf(os.Stderr, "\n%s\n", explanation)
	}

	if len(suggestions) > 0 {
		fmt.Fprintf(os.Stderr, "\n")
		for _, suggestion := range suggestions {
			fmt.Fprintf(os.Stderr, "  %s\n", suggestion)
		}
	}

	return fmt.Errorf("%s", title)
}

// Println prints a plain message (for output that doesn't need coloring)
func Println(a ...any) {
	fmt.Println(a...)
}

// Printf prints a plain formatted message (for output that doesn't need coloring)
func Printf(format string, a ...any) {
	fmt.Printf(format, a...)
}
