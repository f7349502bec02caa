package main

import (
	"context"
	"errors"
	"os"
	"time"

	"kobo/internal/amqp"
	"kobo/internal/cli"
	"kobo/internal/config"
	klog "kobo/internal/log"
	"kobo/internal/sheets"
	gsheet "kobo/internal/sheets/google"
	memsheet "kobo/internal/sheets/memory"
	"kobo/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"), klog.ComponentWorker)
	logger.Info("Starting kobo-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}
	if cfg.DataBackend == "memory" {
		logger.Warn("Memory backend does not share data with the API process, mirrored rows will be missing")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	res := cli.InitBackend(ctx, logger, cfg)
	mirror := newMirror(ctx, cfg)

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}

	mw := worker.NewMirrorWorker(res.Store, mirror)

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		cancel()
		if err := client.Close(); err != nil {
			logger.Warn("AMQP close error", "error", err)
		}
		if res.Cleanup != nil {
			if err := res.Cleanup(); err != nil {
				logger.Warn("Backend cleanup error", "error", err)
			}
		}
	})

	go func() {
		if err := client.Consume(ctx, mw.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", "error", err)
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Worker stopped")
}

// newMirror returns the Google Sheets mirror when a spreadsheet is
// configured and an in-memory one otherwise.
func newMirror(ctx context.Context, cfg *config.Config) sheets.Mirror {
	logger := klog.FromContext(ctx)
	if cfg.GoogleSpreadsheetID == "" {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, using memory mirror")
		return memsheet.New()
	}
	if err := cfg.ValidateMirror(); err != nil {
		logger.Error("Mirror configuration invalid", "error", err)
		os.Exit(1)
	}
	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		TransactionsSheet:  cfg.GoogleSheetName,
		AlertsSheet:        cfg.GoogleAlertsSheetName,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	return client
}
