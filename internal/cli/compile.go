package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thruflo/loom/internal/logging"
	"github.com/thruflo/loom/internal/pipeline"
)

// compileExecutor runs the analysis stage. It can be overridden in tests.
var compileExecutor pipeline.Executor

var compileCmd = &cobra.Command{
	Use:   "compile <bitcode> <fix.lm>",
	Short: "Compile a fix description into a filter",
	Long: `Analyses the program's bitcode against a .lm fix description and writes
the resulting filter next to it (hotfix.lm becomes hotfix.filter). The
filter is what "add <fix ID> <extension>" installs in the running program.`,
	Args: cobra.ExactArgs(2),
	RunE: runCompile,
}

func init() {
	rootCmd.AddCommand(compileCmd)
}

func runCompile(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	filter, err := pipeline.CompileFix(commandContext(cmd), args[0], args[1], pipeline.CompileOptions{
		Tools:    pipeline.ToolchainFromConfig(cfg.Pipeline),
		Executor: compileExecutor,
		Logger:   logging.Default(),
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", filter.Path)
	return nil
}
