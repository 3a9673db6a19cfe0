package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"spendlog/internal/cli"
	apphttp "spendlog/internal/http"
	"spendlog/internal/log"
	"spendlog/internal/metrics"
	"spendlog/internal/services"
)

func main() {
	cfg, logger := cli.MustLoad()
	logger.Info("Starting ledger-server",
		log.FieldOperation, log.OpStartup,
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"timezone", cfg.Location.String())

	ctx, stop := cli.GracefulShutdown(context.Background(), logger)
	defer stop()

	m := metrics.New()
	stack, err := cli.BuildStack(ctx, cfg, logger, m)
	if err != nil {
		logger.Error("Failed to initialize ledger", log.FieldError, err.Error())
		os.Exit(1)
	}
	defer func() {
		if err := stack.Close(); err != nil {
			logger.Error("Backend close error", log.FieldError, err.Error())
		}
	}()

	srv := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		Location:           cfg.Location,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Interpreter:        services.ShorthandInterpreter{},
		Ready:              stack.Ping,
		Logger:             logger,
		Metrics:            m,
	}, stack.Ledger, stack.Queries, stack.Commands)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return stack.Caches.Run(gctx, cfg.CacheCleanInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
