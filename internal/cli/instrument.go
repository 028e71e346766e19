package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/thruflo/loom/internal/logging"
	"github.com/thruflo/loom/internal/pipeline"
)

var (
	instrumentInline   bool
	instrumentCPP      bool
	instrumentLinkArgs string
	instrumentLinkArg  []string
	instrumentDryRun   bool
)

// instrumentExecutor runs the stages. It can be overridden in tests.
var instrumentExecutor pipeline.Executor

var instrumentCmd = &cobra.Command{
	Use:   "instrument <input.bc> <output>",
	Short: "Instrument bitcode into a live-patchable executable",
	Long: `Runs the instrumentation stages over a bitcode module and links the result
into an executable:

  1. clone every function
  2. inject hook functions
  3. merge the runtime stub (only with --inline)
  4. generate assembly
  5. link against the loom runtime

Intermediate files are written next to the input (input1, input2, input3,
input4.s) and kept. The run stops at the first stage that fails.

Examples:
  loom instrument mysqld.bc mysqld.loom --cpp --linkargs "-lpthread -lcrypt -ldl -lz"
  loom instrument httpd.bc httpd.loom --link-arg -lpthread --link-arg -lexpat`,
	Args: cobra.ExactArgs(2),
	RunE: runInstrument,
}

func init() {
	instrumentCmd.Flags().BoolVar(&instrumentInline, "inline", false, "inline the padding functions from the runtime stub")
	instrumentCmd.Flags().BoolVar(&instrumentCPP, "cpp", false, "link with the C++ compiler driver")
	instrumentCmd.Flags().StringVar(&instrumentLinkArgs, "linkargs", "", "whitespace-separated arguments passed to the linker")
	instrumentCmd.Flags().StringArrayVar(&instrumentLinkArg, "link-arg", nil, "single argument passed to the linker (repeatable)")
	instrumentCmd.Flags().BoolVar(&instrumentDryRun, "dry-run", false, "print the stage commands without running them")
	rootCmd.AddCommand(instrumentCmd)
}

func runInstrument(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	opts := pipeline.Options{
		Inline:   instrumentInline,
		LinkArgs: instrumentLinkArgsList(),
		Tools:    pipeline.ToolchainFromConfig(cfg.Pipeline),
		Executor: instrumentExecutor,
		Progress: cmd.ErrOrStderr(),
		Logger:   logging.Default(),
	}
	if instrumentCPP {
		opts.Language = pipeline.LanguageCPP
	}

	run, err := pipeline.NewRun(args[0], args[1], opts)
	if err != nil {
		return err
	}

	if instrumentDryRun {
		out := cmd.OutOrStdout()
		for i, inv := range run.Plan() {
			fmt.Fprintf(out, "%d %-12s %s\n", i+1, inv.Stage, inv.CommandLine())
		}
		return nil
	}

	result, err := run.Execute(commandContext(cmd))
	if err != nil {
		var stageErr *pipeline.StageError
		if errors.As(err, &stageErr) {
			return fmt.Errorf("instrumentation aborted: %w", err)
		}
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Built %s in %s\n", result.Output.Path, result.Duration.Round(time.Millisecond))
	return nil
}

// instrumentLinkArgsList joins --linkargs (split on whitespace) and each
// --link-arg, in that order.
func instrumentLinkArgsList() []string {
	args := strings.Fields(instrumentLinkArgs)
	return append(args, instrumentLinkArg...)
}
