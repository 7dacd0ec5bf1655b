package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"welth/internal/log"
	"welth/internal/storage"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger := opts.load()

			if err := os.MkdirAll(filepath.Dir(cfg.SQLiteDBPath), 0o755); err != nil {
				return fmt.Errorf("creating database directory: %w", err)
			}
			if err := storage.RunMigrations(cfg.SQLiteDBPath); err != nil {
				return err
			}
			version, dirty, err := storage.MigrationVersion(cfg.SQLiteDBPath)
			if err != nil {
				return err
			}
			logger.Info("Migrations applied", log.FieldOperation, log.OpMigrate, "path", cfg.SQLiteDBPath, "version", version)

			state := "clean"
			if dirty {
				state = "dirty"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: schema version %d (%s)\n", cfg.SQLiteDBPath, version, state)
			return nil
		},
	}
}
