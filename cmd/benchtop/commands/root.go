package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/benchlab/benchtop/internal/config"
	"github.com/benchlab/benchtop/internal/printer"
	"github.com/benchlab/benchtop/pkg/lims"
)

var (
	version string
	commit  string
	date    string

	// repoFlag overrides the benchtop.yml lookup.
	repoFlag string

	// verbose raises the CLI logger from warnings-only to full detail.
	verbose bool
)

// defaultRepoDir is the conventional repository directory used when there
// is neither a --repo flag nor a benchtop.yml.
const defaultRepoDir = ".benchtop"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "benchtop",
	Short: "Benchtop - provenance-tracked file repository",
	Long: `Benchtop is a minimal laboratory information management system: a
file repository that remembers where every file came from.

Imported files become artifacts with stable IDs, optional aliases and
tags. Work happens inside tracked executions with private working
directories; only outputs explicitly marked for keeping are imported
when the execution commits, and a failed execution imports nothing.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&repoFlag, "repo", "", "Repository path (overrides benchtop.yml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every repository operation")
}

// repositoryDir resolves which repository a command operates on: the
// --repo flag when given, otherwise the benchtop.yml in the current
// directory, otherwise an existing ./.benchtop directory.
func repositoryDir() (string, error) {
	if repoFlag != "" {
		return repoFlag, nil
	}

	if _, err := os.Stat(config.FileName); err == nil {
		cfg, err := config.Load(config.FileName)
		if err != nil {
			return "", printer.Error("Invalid configuration", err.Error())
		}
		return cfg.Repository, nil
	}

	if info, err := os.Stat(defaultRepoDir); err == nil && info.IsDir() {
		return defaultRepoDir, nil
	}

	return "", printer.Error(
		"No repository specified",
		fmt.Sprintf("There is no %s or %s/ in the current directory and no --repo flag was given.", config.FileName, defaultRepoDir),
		"Run 'benchtop init <path>' to create a repository here, or pass --repo <path>.")
}

// openRepository opens the resolved repository for an existing-repo command.
func openRepository() (*lims.Repository, error) {
	dir, err := repositoryDir()
	if err != nil {
		return nil, err
	}

	repo, err := lims.Open(dir, lims.Options{Logger: newLogger()})
	if err != nil {
		switch lims.CodeOf(err) {
		case lims.ErrNotFound:
			return nil, printer.Error(
				fmt.Sprintf("No repository at %s", dir),
				"The directory does not contain a benchtop catalog.",
				fmt.Sprintf("Run 'benchtop init %s' to create one.", dir))
		case lims.ErrCorruptRepository:
			return nil, printer.Error(
				fmt.Sprintf("Repository at %s is corrupt", dir),
				"The catalog database failed its integrity check. Nothing was modified.",
				"Restore the repository from a backup before retrying.")
		default:
			return nil, err
		}
	}
	return repo, nil
}

// newLogger builds the CLI logger: human-readable, warnings and above
// only unless --verbose asks for everything.
func newLogger() *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// exitError unwraps a lims error into a printed CLI error.
func exitError(err error, context string) error {
	var lerr *lims.Error
	if errors.As(err, &lerr) {
		return printer.Error(context, lerr.Message)
	}
	return printer.Error(context, err.Error())
}
