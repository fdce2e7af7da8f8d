package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/benchlab/benchtop/internal/printer"
	"github.com/benchlab/benchtop/pkg/lims"
)

var (
	importDescription string
	importAlias       string
	importTags        []string
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Copy a file into the repository",
	Long: `Copy a file into the repository as a new artifact.

The source file is untouched; the repository keeps its own copy under a
fresh artifact ID. Import is atomic: on any failure (including an alias
that is already bound) the repository is left exactly as it was.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVarP(&importDescription, "description", "d", "", "Human-readable description")
	importCmd.Flags().StringVarP(&importAlias, "alias", "a", "", "Bind a unique alias to the new artifact")
	importCmd.Flags().StringSliceVarP(&importTags, "tag", "t", nil, "Attach a tag (repeatable)")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	repo, err := openRepository()
	if err != nil {
		return err
	}
	defer repo.Close()

	id, err := repo.Import(context.Background(), args[0], lims.ImportSpec{
		Description: importDescription,
		Tags:        importTags,
		Alias:       importAlias,
	})
	if err != nil {
		if lims.IsAliasConflict(err) {
			return printer.Error(
				fmt.Sprintf("Alias '%s' is already bound", importAlias),
				"Nothing was imported.",
				"Pick another alias, or 'benchtop unalias' the current holder first.")
		}
		return exitError(err, fmt.Sprintf("Failed to import %s", args[0]))
	}

	printer.Success("Imported %s as %s\n", args[0], id)
	return nil
}
