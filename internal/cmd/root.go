// Package cmd implements the orc command-line surface: run, validate,
// resume, watch, usage, and cluster status.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/orc-run/orc/internal/settings"
)

var (
	settingsPath string
	logLevel     string

	cfg settings.Settings
	log *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "orc",
	Short:         "Run, inspect, and resume multi-agent clusters",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := settings.Load(settingsPath)
		if err != nil {
			return err
		}
		cfg = loaded
		if logLevel == "" {
			logLevel = cfg.Defaults.LogLevel
		}
		log = newLogger(logLevel)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", settings.DefaultPath(), "path to orc.toml")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn, or error (default from orc.toml)")
}

// Execute runs the root command; cmd/orc/main.go's only job is to call
// this and translate a non-nil error into an exit code.
func Execute() error {
	return rootCmd.Execute()
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: lvl}))
}

// requireSubcommand is RunE for a parent command whose only job is to
// group subcommands; invoking it bare is a usage error.
func requireSubcommand(cmd *cobra.Command, args []string) error {
	return fmt.Errorf("%s requires a subcommand; see --help", cmd.Name())
}
