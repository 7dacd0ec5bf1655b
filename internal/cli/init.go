// Package cli provides common startup utilities shared by cmd/welth,
// cmd/welth-worker, cmd/recurring-worker and cmd/welthctl.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"welth/internal/amqp"
	"welth/internal/config"
	"welth/internal/log"
	"welth/internal/middleware/ratelimit"
	"welth/internal/receipt"
	"welth/internal/services"
	"welth/internal/sheets"
	gsheet "welth/internal/sheets/google"
	"welth/internal/sheets/memory"
	"welth/internal/storage"
)

// SetupLogger builds the process logger at the given level and installs it
// as the slog default.
func SetupLogger(level string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(level)
	cfg.Handler = nil
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration and validates it.
// Exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// InitSQLite opens and migrates the database. Exits the process on failure.
func InitSQLite(logger *log.Logger, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", dbPath)
		os.Exit(1)
	}
	return repo
}

// InitPublisher connects to RabbitMQ when AMQP_URL is set. The returned
// publisher is a nil interface when events are disabled or the broker is
// unreachable; closeFn is always safe to call.
func InitPublisher(logger *log.Logger, cfg *config.Config) (publisher services.EventPublisher, client *amqp.Client, closeFn func()) {
	closeFn = func() {}
	if cfg.AMQPURL == "" {
		logger.Info("AMQP disabled - transaction events will not be published")
		return nil, nil, closeFn
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Warn("Failed to initialize AMQP client, continuing without events", log.FieldError, err)
		return nil, nil, closeFn
	}
	logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client, client, func() { _ = client.Close() }
}

// InitExporter returns the Google Sheets exporter when a spreadsheet is
// configured, and an in-memory exporter otherwise.
func InitExporter(ctx context.Context, logger *log.Logger, cfg *config.Config) (sheets.Exporter, error) {
	if !cfg.SheetsEnabled() {
		logger.Info("Google Sheets disabled - exporting activity to memory")
		return memory.New(), nil
	}
	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, err
	}
	if err := client.EnsureHeader(ctx); err != nil {
		logger.Warn("Could not write activity sheet header", log.FieldError, err)
	}
	logger.Info("Google Sheets exporter initialized",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", cfg.GoogleSheetName)
	return client, nil
}

// InitScanner returns nil when no API key is configured.
func InitScanner(logger *log.Logger, cfg *config.Config) receipt.Scanner {
	if cfg.GeminiAPIKey == "" {
		logger.Info("Receipt scanning disabled - no GEMINI_API_KEY provided")
		return nil
	}
	logger.Info("Receipt scanning enabled", "model", cfg.ReceiptModel)
	return receipt.NewOpenAIScanner(receipt.Options{
		APIKey:  cfg.GeminiAPIKey,
		BaseURL: cfg.ReceiptBaseURL,
		Model:   cfg.ReceiptModel,
	})
}

// InitTransactionLimiter builds the per-user limiter guarding transaction
// creation.
func InitTransactionLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.NewLimiter(ratelimit.Config{
		Limit:  cfg.TransactionRateLimit,
		Window: cfg.TransactionRateWindow,
	})
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup ran.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
