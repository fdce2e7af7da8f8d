package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/benchlab/benchtop/internal/format"
	"github.com/benchlab/benchtop/internal/printer"
	"github.com/benchlab/benchtop/pkg/lims"
)

var showJSON bool

var showCmd = &cobra.Command{
	Use:   "show <id-or-alias>",
	Short: "Show one artifact's full metadata",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	showCmd.Flags().BoolVar(&showJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	repo, err := openRepository()
	if err != nil {
		return err
	}
	defer repo.Close()

	art, err := repo.Artifact(context.Background(), args[0])
	if err != nil {
		if lims.IsNotFound(err) {
			return printer.Error(
				fmt.Sprintf("No artifact named '%s'", args[0]),
				"Neither an artifact ID nor an alias matches that name.")
		}
		return exitError(err, fmt.Sprintf("Failed to look up %s", args[0]))
	}

	if showJSON {
		return format.JSON(os.Stdout, art)
	}

	printer.Field("ID", art.ID)
	printer.Field("Description", art.Description)
	printer.Field("Size", fmt.Sprintf("%d bytes", art.Size))
	printer.Field("SHA-256", art.SHA256)
	printer.Field("Created", art.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	printer.Field("Aliases", strings.Join(art.Aliases, ", "))
	printer.Field("Tags", strings.Join(art.Tags, ", "))
	if art.ProducedBy != "" {
		printer.Field("Produced by", art.ProducedBy)
	}
	return nil
}
