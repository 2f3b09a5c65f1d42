package main

import (
	"os"

	"activitylog/internal/cli"
	"activitylog/internal/log"
	"activitylog/internal/sheets"
	gsheet "activitylog/internal/sheets/google"
	sheetsmem "activitylog/internal/sheets/memory"
	"activitylog/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentWorker)

	logger.Info("Starting activitylog-worker")

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	be := cli.InitBackend(ctx, logger, cfg)
	defer func() {
		if err := be.Close(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err.Error())
		}
	}()
	if cfg.DataBackend == "memory" {
		logger.Warn("Worker is using its own in-memory store; API writes will not be visible to it")
	}

	var exporter sheets.Exporter
	if cfg.ExportEnabled() {
		client, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			ActivitiesSheet: cfg.GoogleActivitiesSheet,
			SummarySheet:    cfg.GoogleSummarySheet,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		}, logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err.Error())
			os.Exit(1)
		}
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
		exporter = client
	} else {
		logger.Warn("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, exporting to memory")
		exporter = sheetsmem.New()
	}

	var consumer worker.Consumer
	if client := cli.InitAMQP(logger, cfg); client != nil {
		defer client.Close()
		consumer = client
	}

	w := worker.NewExportWorker(be.Store, exporter, logger)
	if err := w.Run(ctx, consumer, cfg.ExportSchedule); err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
