// Package cli provides common CLI initialization utilities.
// This package consolidates the start-up shared by cmd/ledger-server,
// cmd/ledger-worker and cmd/ledgerctl.
package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"spendlog/internal/config"
	"spendlog/internal/log"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from level and format names and
// makes it the slog default.
func SetupLogger(level, format string, w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stdout
	}
	logger := log.New(log.Config{
		Level:     log.ParseLevel(level),
		Format:    format,
		Component: log.ComponentApp,
		Writer:    w,
	})
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration from defaults, the optional
// config file and the environment, then validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoad loads the env file, config and logger for a long-running
// process, exiting when the configuration is unusable.
func MustLoad() (*config.Config, *log.Logger) {
	LoadEnvFile()
	cfg, err := LoadAndValidateConfig()
	if err != nil {
		logger := SetupLogger("info", log.FormatText, os.Stderr)
		logger.Error("Configuration validation failed", log.FieldError, err.Error())
		os.Exit(1)
	}
	return cfg, SetupLogger(cfg.LogLevel, cfg.LogFormat, os.Stdout)
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. The
// received signal is logged; call stop to release the handler.
func GracefulShutdown(parent context.Context, logger *log.Logger) (ctx context.Context, stop context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received",
				log.FieldOperation, log.OpShutdown,
				"signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}
