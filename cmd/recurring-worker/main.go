package main

import (
	"context"
	"errors"
	"os"
	"time"

	"welth/internal/buildinfo"
	"welth/internal/cli"
	"welth/internal/log"
	"welth/internal/services"
)

func main() {
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("Starting recurring-worker", "version", buildinfo.String())

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	publisher, _, closePublisher := cli.InitPublisher(logger, cfg)
	defer closePublisher()

	processor := services.NewRecurringProcessor(repo, publisher)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	interval := cfg.RecurringInterval
	logger.Info("Recurring processor configured", "interval", interval, "sqlite_db", cfg.SQLiteDBPath)

	run := func(now time.Time) {
		count, err := processor.ProcessDue(ctx, now.UTC())
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Recurring processing failed", log.FieldOperation, log.OpProcess, log.FieldError, err)
			return
		}
		logger.Info("Recurring processing complete",
			log.FieldCount, count,
			"next_check", now.Add(interval).Format(time.TimeOnly))
	}

	run(time.Now())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			cli.WaitForShutdown(ctx, done)
			return
		case now := <-ticker.C:
			run(now)
		}
	}
}
