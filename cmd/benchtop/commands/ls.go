package commands

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/benchlab/benchtop/internal/format"
	"github.com/benchlab/benchtop/pkg/lims"
)

var (
	lsTag      string
	lsAlias    string
	lsProducer string
	lsJSON     bool
)

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List artifacts",
	Long: `List artifacts in the repository, newest last.

Filters are ANDed together:
  • --tag            exact tag match
  • --alias          glob pattern tested against each alias (e.g. '*.bam')
  • --produced-by    execution ID that produced the artifact

Use --json for machine-readable output.`,
	RunE: runLs,
}

func init() {
	lsCmd.Flags().StringVar(&lsTag, "tag", "", "Only artifacts carrying this tag")
	lsCmd.Flags().StringVar(&lsAlias, "alias", "", "Only artifacts with an alias matching this glob")
	lsCmd.Flags().StringVar(&lsProducer, "produced-by", "", "Only artifacts produced by this execution")
	lsCmd.Flags().BoolVar(&lsJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(lsCmd)
}

func runLs(cmd *cobra.Command, args []string) error {
	repo, err := openRepository()
	if err != nil {
		return err
	}
	defer repo.Close()

	artifacts, err := repo.Search(context.Background(), lims.Query{
		Tag:          lsTag,
		AliasPattern: lsAlias,
		ProducedBy:   lims.ExecutionID(lsProducer),
	})
	if err != nil {
		return exitError(err, "Failed to list artifacts")
	}

	if lsJSON {
		return format.JSON(os.Stdout, artifacts)
	}
	format.ArtifactTable(os.Stdout, artifacts)
	return nil
}
