package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/benchlab/benchtop/internal/printer"
	"github.com/benchlab/benchtop/pkg/lims"
)

var exportCmd = &cobra.Command{
	Use:   "export <id-or-alias> <dest>",
	Short: "Copy an artifact's bytes out of the repository",
	Long: `Copy an artifact's bytes to a destination path outside the repository.

The artifact may be named by its ID or by any of its aliases. The
repository copy is untouched; the destination receives exactly the
bytes that were imported.`,
	Args: cobra.ExactArgs(2),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	repo, err := openRepository()
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := repo.Export(context.Background(), args[0], args[1]); err != nil {
		if lims.IsNotFound(err) {
			return printer.Error(
				fmt.Sprintf("No artifact named '%s'", args[0]),
				"Neither an artifact ID nor an alias matches that name.",
				"Run 'benchtop ls' to see what the repository holds.")
		}
		return exitError(err, fmt.Sprintf("Failed to export %s", args[0]))
	}

	printer.Success("Exported %s to %s\n", args[0], args[1])
	return nil
}
