package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/use-agent/namecrawl/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "namecrawl",
	Short: "Harvest Dutch name listings into JSON datasets",
	Long: "Crawls the Dutch first-name and surname registries letter by letter, " +
		"keeps a snapshot per letter while it runs, and merges them into one sorted, " +
		"deduplicated dataset per listing.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cfg = config.Load()

		if cmd.Flags().Changed("out-dir") {
			cfg.Crawl.OutDir, _ = cmd.Flags().GetString("out-dir")
		}
		if cmd.Flags().Changed("log-level") {
			cfg.Log.Level, _ = cmd.Flags().GetString("log-level")
		}

		initLogger(cfg.Log)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("out-dir", ".", "directory for snapshots and merged datasets (env NAMECRAWL_OUT_DIR)")
	rootCmd.PersistentFlags().String("log-level", "info", "debug, info, warn or error (env NAMECRAWL_LOG_LEVEL)")
}

// exitError carries a process exit code other than 1.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func main() {
	if err := rootCmd.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		os.Exit(1)
	}
}

// initLogger configures slog based on the LogConfig. Logs go to stderr so
// command output on stdout stays machine-readable.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}
