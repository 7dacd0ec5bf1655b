package main

import (
	"context"
	"errors"
	"os"
	"time"

	"welth/internal/amqp"
	"welth/internal/buildinfo"
	"welth/internal/cli"
	"welth/internal/log"
	"welth/internal/worker"
)

func main() {
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("Starting welth-worker", "version", buildinfo.String())

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the export worker")
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	exporter, err := cli.InitExporter(ctx, logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize exporter", log.FieldError, err)
		os.Exit(1)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	w := worker.NewExportWorker(exporter, logger.WithComponent(log.ComponentWorker))
	if err := w.Run(ctx, client); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
}
