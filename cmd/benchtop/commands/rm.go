package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/benchlab/benchtop/internal/printer"
	"github.com/benchlab/benchtop/pkg/lims"
)

var rmCmd = &cobra.Command{
	Use:   "rm <artifact-id>",
	Short: "Delete an artifact",
	Long: `Delete an artifact: its catalog record, aliases, tags, and stored
bytes. Provenance records of executions that consumed it are kept.

The catalog record is removed first; if the stored bytes cannot be
removed afterwards a warning is printed and the file is left behind,
but the artifact is gone from the catalog either way.`,
	Args: cobra.ExactArgs(1),
	RunE: runRm,
}

func init() {
	rootCmd.AddCommand(rmCmd)
}

func runRm(cmd *cobra.Command, args []string) error {
	repo, err := openRepository()
	if err != nil {
		return err
	}
	defer repo.Close()

	id := lims.ArtifactID(args[0])
	if err := repo.Delete(context.Background(), id); err != nil {
		if lims.IsNotFound(err) {
			return printer.Error(
				fmt.Sprintf("No artifact with ID '%s'", id),
				"Deletion is by artifact ID, not alias.",
				"Run 'benchtop show <alias>' to find the ID.")
		}
		return exitError(err, fmt.Sprintf("Failed to delete %s", id))
	}

	printer.Success("Deleted %s\n", id)
	return nil
}
