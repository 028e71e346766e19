package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/thruflo/loom/internal/config"
	"github.com/thruflo/loom/internal/logging"
)

// Version is set at build time via ldflags.
var Version = "dev"

var (
	rootConfigDir string
	rootLogLevel  string
)

var rootCmd = &cobra.Command{
	Use:   "loom",
	Short: "Build and operate live-patchable programs",
	Long: `Loom instruments a program's bitcode with hook points so fixes can be
switched on and off while it runs, compiles fix descriptions, and talks to
the running program over its control port.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("loom version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&rootConfigDir, "config", "", "directory containing .loom/config.yaml (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&rootLogLevel, "log-level", "", "log level: debug, info, warn, error (default: from config)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads the config file, overlays the environment and applies
// the log level.
func loadConfig() (*config.Config, error) {
	base := rootConfigDir
	if base == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		base = cwd
	}

	cfg, err := config.LoadConfig(base)
	if err != nil {
		return nil, err
	}
	if err := config.ApplyEnv(cfg, os.Getenv); err != nil {
		return nil, err
	}

	levelName := cfg.Log.Level
	if rootLogLevel != "" {
		levelName = rootLogLevel
	}
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return nil, err
	}
	logging.SetLevel(level)

	return cfg, nil
}

// commandContext returns the command's context, or a background context
// when the command is run outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
