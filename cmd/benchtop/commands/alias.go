package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/benchlab/benchtop/internal/printer"
	"github.com/benchlab/benchtop/pkg/lims"
)

var aliasCmd = &cobra.Command{
	Use:   "alias <artifact-id> <name>",
	Short: "Bind a unique alias to an artifact",
	Long: `Bind a unique alias to an existing artifact.

An alias names exactly one artifact. Binding fails if the name is
already taken; rebinding the same artifact to the same name is a no-op.`,
	Args: cobra.ExactArgs(2),
	RunE: runAlias,
}

var unaliasCmd = &cobra.Command{
	Use:   "unalias <name>",
	Short: "Remove an alias",
	Long: `Remove an alias. The artifact it named is untouched and stays
reachable by its ID and any other aliases.`,
	Args: cobra.ExactArgs(1),
	RunE: runUnalias,
}

func init() {
	rootCmd.AddCommand(aliasCmd)
	rootCmd.AddCommand(unaliasCmd)
}

func runAlias(cmd *cobra.Command, args []string) error {
	repo, err := openRepository()
	if err != nil {
		return err
	}
	defer repo.Close()

	id, name := lims.ArtifactID(args[0]), args[1]
	if err := repo.AddAlias(context.Background(), id, name); err != nil {
		switch {
		case lims.IsNotFound(err):
			return printer.Error(
				fmt.Sprintf("No artifact with ID '%s'", id),
				"The alias target must be named by its artifact ID.")
		case lims.IsAliasConflict(err):
			return printer.Error(
				fmt.Sprintf("Alias '%s' is already bound to a different artifact", name),
				"An alias names exactly one artifact.",
				fmt.Sprintf("Run 'benchtop unalias %s' first to rebind it.", name))
		default:
			return exitError(err, "Failed to add alias")
		}
	}

	printer.Success("Alias '%s' now names %s\n", name, id)
	return nil
}

func runUnalias(cmd *cobra.Command, args []string) error {
	repo, err := openRepository()
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := repo.RemoveAlias(context.Background(), args[0]); err != nil {
		if lims.IsNotFound(err) {
			return printer.Error(fmt.Sprintf("Alias '%s' is not bound", args[0]), "")
		}
		return exitError(err, "Failed to remove alias")
	}

	printer.Success("Removed alias '%s'\n", args[0])
	return nil
}
