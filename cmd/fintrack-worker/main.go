package main

import (
	"context"
	"errors"
	"os"
	"time"

	"fintrack/internal/cache"
	"fintrack/internal/cli"
	"fintrack/internal/log"
	"fintrack/internal/sheets"
	"fintrack/internal/sheets/google"
	sheetsmemory "fintrack/internal/sheets/memory"
	"fintrack/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentWorker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	res := cli.OpenBackend(ctx, cfg, logger)
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	caches := cache.NewManager(logger)
	defer caches.Stop()

	var exporter sheets.TransactionExporter
	if cfg.SheetsEnabled() {
		client, err := google.NewClient(ctx, google.Options{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
			Logger:          logger,
		})
		if err != nil {
			logger.Error("Failed to create Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		if err := client.EnsureHeader(ctx); err != nil {
			logger.Error("Failed to prepare export sheet", log.FieldError, err)
			os.Exit(1)
		}
		caches.Register(client.RowCache())
		exporter = client
		logger.Info("Exporting to Google Sheets",
			"spreadsheet_id", cfg.GoogleSpreadsheetID,
			"sheet", cfg.GoogleSheetName)
	} else {
		exporter = sheetsmemory.New()
		logger.Warn("GOOGLE_SPREADSHEET_ID not set, exporting to an in-memory sheet")
	}
	caches.StartCleanup(5 * time.Minute)

	w := worker.NewExportWorker(res.Store, exporter, cfg.SyncBatchSize, logger)

	if _, err := w.StartupSyncCheck(ctx); err != nil {
		logger.Error("Startup sync check failed", log.FieldError, err)
	}

	scheduler := worker.NewScheduler(logger)
	if err := scheduler.AddJob("@every "+cfg.SyncInterval.String(), w.SweepJob()); err != nil {
		logger.Error("Failed to schedule export sweep", log.FieldError, err)
		os.Exit(1)
	}
	if err := scheduler.Start(); err != nil {
		logger.Error("Failed to start scheduler", log.FieldError, err)
		os.Exit(1)
	}

	if res.AMQP != nil {
		go func() {
			logger.Info("Starting AMQP consumer")
			if err := res.AMQP.Consume(ctx, w.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("AMQP consumer stopped", log.FieldError, err)
				cancel()
			}
		}()
	} else {
		logger.Info("AMQP disabled, relying on periodic sweeps")
	}

	logger.Info("Worker started",
		"backend", cfg.DataBackend,
		"batch_size", cfg.SyncBatchSize,
		"sync_interval", cfg.SyncInterval.String())

	if sig := cli.WaitForSignal(ctx); sig != nil {
		logger.Info("Received shutdown signal", "signal", sig.String())
	}
	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := scheduler.Stop(stopCtx); err != nil {
		logger.Error("Scheduler shutdown error", log.FieldError, err)
	}
	logger.Info("Worker stopped")
}
