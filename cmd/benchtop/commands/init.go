package commands

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/benchlab/benchtop/internal/config"
	"github.com/benchlab/benchtop/internal/printer"
	"github.com/benchlab/benchtop/pkg/lims"
)

var initNoConfig bool

var initCmd = &cobra.Command{
	Use:   "init <path>",
	Short: "Create a new repository",
	Long: `Create a new benchtop repository at the given path.

Creates:
  • <path>/catalog.db - SQLite metadata catalog
  • <path>/files/     - content store for artifact bytes
  • ./benchtop.yml    - project configuration pointing at the repository

An existing repository at the path is reopened, never overwritten.
Use --no-config to skip writing benchtop.yml.`,
	Args: cobra.ExactArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initNoConfig, "no-config", false, "Do not write a benchtop.yml in the current directory")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := args[0]

	repo, err := lims.Open(dir, lims.Options{Create: true, Logger: newLogger()})
	if err != nil {
		return exitError(err, "Failed to create repository")
	}
	defer repo.Close()

	printer.Success("Repository ready at %s\n", repo.Dir())

	if initNoConfig {
		return nil
	}
	if _, err := os.Stat(config.FileName); err == nil {
		printer.Warning("%s already exists, leaving it untouched\n", config.FileName)
		return nil
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	if err := config.Default(abs).Write(config.FileName); err != nil {
		return exitError(err, "Failed to write configuration")
	}
	printer.Success("Wrote %s\n", config.FileName)
	return nil
}
