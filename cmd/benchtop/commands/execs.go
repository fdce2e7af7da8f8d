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

var execsJSON bool

var execsCmd = &cobra.Command{
	Use:   "execs [execution-id]",
	Short: "List executions, or show one in full",
	Long: `Without arguments, list every recorded execution oldest first.

With an execution ID, show the full record: status, timing, consumed
inputs, and the report of every program the execution ran (arguments,
pid, exit code, captured output).`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExecs,
}

func init() {
	execsCmd.Flags().BoolVar(&execsJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(execsCmd)
}

func runExecs(cmd *cobra.Command, args []string) error {
	repo, err := openRepository()
	if err != nil {
		return err
	}
	defer repo.Close()

	ctx := context.Background()

	if len(args) == 0 {
		execs, err := repo.Executions(ctx)
		if err != nil {
			return exitError(err, "Failed to list executions")
		}
		if execsJSON {
			return format.JSON(os.Stdout, execs)
		}
		format.ExecutionTable(os.Stdout, execs)
		return nil
	}

	info, err := repo.ExecutionInfo(ctx, lims.ExecutionID(args[0]))
	if err != nil {
		if lims.IsNotFound(err) {
			return printer.Error(fmt.Sprintf("No execution with ID '%s'", args[0]), "")
		}
		return exitError(err, fmt.Sprintf("Failed to look up execution %s", args[0]))
	}

	if execsJSON {
		return format.JSON(os.Stdout, info)
	}

	printer.Field("ID", info.ID)
	printer.Field("Description", info.Description)
	printer.Field("Status", info.Status)
	printer.Field("Started", info.StartedAt.Format("2006-01-02 15:04:05 MST"))
	if info.FinishedAt != nil {
		printer.Field("Finished", info.FinishedAt.Format("2006-01-02 15:04:05 MST"))
	}
	if info.Error != "" {
		printer.Field("Error", info.Error)
	}
	if len(info.Inputs) > 0 {
		ids := make([]string, len(info.Inputs))
		for i, id := range info.Inputs {
			ids[i] = string(id)
		}
		printer.Field("Inputs", strings.Join(ids, ", "))
	}
	for _, p := range info.Programs {
		printer.Println()
		printer.Field("Program", strings.Join(p.Arguments, " "))
		printer.Field("Exit code", p.ReturnCode)
		if p.Stdout != "" {
			printer.Field("Stdout", strings.TrimRight(p.Stdout, "\n"))
		}
		if p.Stderr != "" {
			printer.Field("Stderr", strings.TrimRight(p.Stderr, "\n"))
		}
	}
	return nil
}
