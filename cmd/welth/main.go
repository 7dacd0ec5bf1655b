package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"welth/internal/buildinfo"
	"welth/internal/cli"
	apphttp "welth/internal/http"
	"welth/internal/log"
	"welth/internal/services"
)

func main() {
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("Starting welth", "version", buildinfo.String())

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	publisher, _, closePublisher := cli.InitPublisher(logger, cfg)
	defer closePublisher()

	limiter := cli.InitTransactionLimiter(cfg)
	defer limiter.Stop()

	budgets := services.NewBudgetService(repo)
	svc := apphttp.Services{
		Users:        services.NewUserService(repo),
		Accounts:     services.NewAccountService(repo),
		Transactions: services.NewTransactionService(repo, publisher, limiter, logger.WithComponent(log.ComponentTransaction)),
		Budgets:      budgets,
		Dashboard:    services.NewDashboard(repo, repo, budgets),
		Scanner:      cli.InitScanner(logger, cfg),
	}

	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		SignInURL:          cfg.SignInURL,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
		Store:              repo,
		TrustedProxies:     cfg.TrustedProxies,
	})

	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	logger.Info("Listening", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
