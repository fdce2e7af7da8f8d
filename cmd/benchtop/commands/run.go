package commands

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/benchlab/benchtop/internal/printer"
	"github.com/benchlab/benchtop/pkg/lims"
)

var (
	runDescription string
	runUses        []string
	runKeeps       []string
)

var runCmd = &cobra.Command{
	Use:   "run [flags] -- <program> [args...]",
	Short: "Run a program inside a tracked execution",
	Long: `Run a program inside a tracked execution with a private working
directory.

Each --use materializes an artifact (by ID or alias) into the working
directory before the program starts; the path it was given is printed.
Each --keep marks a file the program is expected to produce, as 'path'
or 'path=alias'.

If the program exits zero, every kept file is imported and the execution
commits; the artifacts record this execution as their producer. If the
program fails or a kept file is missing, nothing is imported. The
working directory is removed either way.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runDescription, "description", "d", "", "What this execution is for")
	runCmd.Flags().StringSliceVar(&runUses, "use", nil, "Artifact to materialize into the working directory (repeatable)")
	runCmd.Flags().StringSliceVar(&runKeeps, "keep", nil, "Output file to keep, as 'path' or 'path=alias' (repeatable)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	repo, err := openRepository()
	if err != nil {
		return err
	}
	defer repo.Close()

	ctx := context.Background()
	description := runDescription
	if description == "" {
		description = strings.Join(args, " ")
	}

	var execID lims.ExecutionID
	err = lims.WithExecution(ctx, repo, description, func(ex *lims.Execution) error {
		execID = ex.ID()

		for _, ref := range runUses {
			path, err := ex.Use(ctx, ref)
			if err != nil {
				return err
			}
			printer.Printf("using %s as %s\n", ref, path)
		}

		out, err := ex.Run(ctx, args)
		if out != nil {
			printer.Printf("%s", out.Stdout)
			if out.Stderr != "" {
				printer.Printf("%s", out.Stderr)
			}
		}
		if err != nil {
			return err
		}

		for _, keep := range runKeeps {
			path, alias, _ := strings.Cut(keep, "=")
			if err := ex.MarkOutput(path, lims.OutputSpec{Alias: alias}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		printer.Warning("execution %s failed, nothing was imported\n", execID)
		return exitError(err, "Execution failed")
	}

	printer.Success("Execution %s committed\n", execID)
	for _, keep := range runKeeps {
		path, alias, hasAlias := strings.Cut(keep, "=")
		if hasAlias {
			printer.Printf("  kept %s as '%s'\n", path, alias)
		} else {
			printer.Printf("  kept %s\n", path)
		}
	}
	if len(runKeeps) > 0 {
		printer.Printf("Run 'benchtop ls --produced-by %s' to see the new artifacts.\n", execID)
	}
	return nil
}
