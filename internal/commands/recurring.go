package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"welth/internal/cli"
	"welth/internal/log"
	"welth/internal/services"
	"welth/internal/storage"
)

func newRecurringCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recurring",
		Short: "Recurring transaction maintenance",
	}
	cmd.AddCommand(newRecurringRunCommand(opts))
	return cmd
}

func newRecurringRunCommand(opts *rootOptions) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process recurring transactions that are due once, then exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now().UTC()
			if at != "" {
				t, err := parseWhen(at)
				if err != nil {
					return err
				}
				now = t
			}

			cfg, logger := opts.load()
			repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer repo.Close()

			publisher, _, closePublisher := cli.InitPublisher(logger, cfg)
			defer closePublisher()

			processor := services.NewRecurringProcessor(repo, publisher)
			count, err := processor.ProcessDue(cmd.Context(), now)
			if err != nil {
				return fmt.Errorf("processing recurring transactions: %w", err)
			}
			logger.Info("Recurring run complete", log.FieldOperation, log.OpProcess, log.FieldCount, count)
			fmt.Fprintf(cmd.OutOrStdout(), "processed %d recurring transaction(s)\n", count)
			return nil
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "treat this instant as now (RFC 3339 or YYYY-MM-DD)")
	return cmd
}

func parseWhen(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid --at value %q: want RFC 3339 or YYYY-MM-DD", s)
}
