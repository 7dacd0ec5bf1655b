package commands

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"welth/internal/buildinfo"
	"welth/internal/config"
	"welth/internal/log"
)

type rootOptions struct {
	dbPath   string
	logLevel string
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:     "welthctl",
		Short:   "Administer a welth installation",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.dbPath, "db", "", "SQLite database path (default $SQLITE_DB_PATH)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (default $LOG_LEVEL)")

	rootCmd.AddCommand(
		newMigrateCommand(opts),
		newRecurringCommand(opts),
		newScanCommand(opts),
	)

	return rootCmd
}

// load reads the environment and applies flag overrides. Logs go to stderr
// so command output stays machine-readable.
func (o *rootOptions) load() (*config.Config, *log.Logger) {
	cfg := config.Load()
	if o.dbPath != "" {
		cfg.SQLiteDBPath = o.dbPath
	}
	level := cfg.LogLevel
	if o.logLevel != "" {
		level = o.logLevel
	}
	lvl := log.ParseLevel(level)
	logger := log.New(log.Config{
		Level:     lvl,
		Component: log.ComponentApp,
		Handler:   slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}),
	})
	return cfg, logger
}
