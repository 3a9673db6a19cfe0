package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"spendlog/internal/amqp"
	"spendlog/internal/cli"
	"spendlog/internal/log"
	"spendlog/internal/metrics"
	gsheet "spendlog/internal/sheets/google"
	"spendlog/internal/worker"
)

func main() {
	cfg, logger := cli.MustLoad()
	logger.Info("Starting ledger-worker",
		log.FieldOperation, log.OpStartup,
		"backend", cfg.DataBackend, "queue", cfg.AMQPQueue)

	if !cfg.AMQPEnabled() && !cfg.SheetsEnabled() {
		logger.Error("Nothing to do: set AMQP_URL and/or GOOGLE_SPREADSHEET_ID")
		os.Exit(1)
	}

	ctx, stop := cli.GracefulShutdown(context.Background(), logger)
	defer stop()

	m := metrics.New()
	stack, err := cli.BuildStack(ctx, cfg, logger, m)
	if err != nil {
		logger.Error("Failed to initialize ledger", log.FieldError, err.Error())
		os.Exit(1)
	}
	defer stack.Close()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err.Error())
			os.Exit(1)
		}
		defer client.Close()

		cw := worker.NewCommandWorker(stack.Commands, logger)
		g.Go(func() error {
			err := client.ConsumeCommands(gctx, cw.HandleMessage)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	if cfg.SheetsEnabled() {
		sheetsClient, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			CredentialsFile: cfg.GoogleServiceAccountFile,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			Location:        cfg.Location,
			Logger:          logger,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err.Error())
			os.Exit(1)
		}
		job := worker.NewExportJob(stack.Queries, sheetsClient, cfg.Location, logger)
		g.Go(func() error { return job.Run(gctx, cfg.ExportInterval) })
	} else {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	g.Go(func() error { return stack.Caches.Run(gctx, cfg.CacheCleanInterval) })

	// Metrics and probes for the worker.
	probe := http.NewServeMux()
	probe.Handle("GET /metrics", m.Handler())
	probe.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := stack.Ping(r.Context()); err != nil {
			http.Error(w, "backend unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	probeSrv := &http.Server{Addr: ":" + cfg.Port, Handler: probe, ReadHeaderTimeout: 10 * time.Second}
	g.Go(func() error {
		if err := probeSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return probeSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
