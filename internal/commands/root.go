// Package commands implements the ledgerctl command tree.
package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"spendlog/internal/amqp"
	"spendlog/internal/cli"
	"spendlog/internal/config"
	"spendlog/internal/log"
	"spendlog/internal/sheets"
	"spendlog/internal/sheets/google"
)

// Publisher sends commands to the worker queue.
type Publisher interface {
	PublishCommand(ctx context.Context, msg *amqp.CommandMessage) error
	Close() error
}

// app holds what the subcommands share. The open* hooks are swapped in tests.
type app struct {
	loadConfig   func() (*config.Config, error)
	openStack    func(ctx context.Context, cfg *config.Config, logger *log.Logger) (*cli.Stack, error)
	openQueue    func(cfg *config.Config, logger *log.Logger) (Publisher, error)
	openExporter func(ctx context.Context, cfg *config.Config, logger *log.Logger) (sheets.ReportWriter, error)
	now          func() time.Time

	jsonOut bool

	cfg    *config.Config
	logger *log.Logger
	stack  *cli.Stack
}

func defaultApp() *app {
	return &app{
		loadConfig: func() (*config.Config, error) {
			cli.LoadEnvFile()
			return cli.LoadAndValidateConfig()
		},
		openStack: func(ctx context.Context, cfg *config.Config, logger *log.Logger) (*cli.Stack, error) {
			return cli.BuildStack(ctx, cfg, logger, nil)
		},
		openQueue: func(cfg *config.Config, logger *log.Logger) (Publisher, error) {
			c, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
		openExporter: func(ctx context.Context, cfg *config.Config, logger *log.Logger) (sheets.ReportWriter, error) {
			c, err := google.New(ctx, google.Config{
				SpreadsheetID:   cfg.GoogleSpreadsheetID,
				CredentialsFile: cfg.GoogleServiceAccountFile,
				CredentialsJSON: cfg.GoogleServiceAccountJSON,
				Location:        cfg.Location,
				Logger:          logger,
			})
			if err != nil {
				return nil, err
			}
			return c, nil
		},
		now: time.Now,
	}
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	return newRootCommand(defaultApp())
}

func newRootCommand(a *app) *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Query and edit the expense ledger",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if configFile != "" {
				if err := os.Setenv(config.ConfigFileEnv, configFile); err != nil {
					return err
				}
			}
			return a.init()
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.close()
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (toml, yaml or json)")
	rootCmd.PersistentFlags().BoolVar(&a.jsonOut, "json", false, "print JSON instead of tables")

	rootCmd.AddCommand(
		newSpentCommand(a),
		newTotalsCommand(a),
		newDailyCommand(a),
		newListCommand(a),
		newAddCommand(a),
		newUpdateCommand(a),
		newDeleteCommand(a),
		newCategoriesCommand(a),
		newEnqueueCommand(a),
		newExportCommand(a),
	)

	return rootCmd
}

func (a *app) init() error {
	if a.cfg == nil {
		cfg, err := a.loadConfig()
		if err != nil {
			return err
		}
		a.cfg = cfg
	}
	if a.logger == nil {
		a.logger = cli.SetupLogger(a.cfg.LogLevel, a.cfg.LogFormat, os.Stderr).WithComponent(log.ComponentCLI)
	}
	return nil
}

// open builds the ledger stack on first use.
func (a *app) open(ctx context.Context) (*cli.Stack, error) {
	if a.stack != nil {
		return a.stack, nil
	}
	st, err := a.openStack(ctx, a.cfg, a.logger)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	a.stack = st
	return st, nil
}

func (a *app) close() error {
	if a.stack == nil {
		return nil
	}
	err := a.stack.Close()
	a.stack = nil
	return err
}

func (a *app) location() *time.Location {
	if a.cfg == nil || a.cfg.Location == nil {
		return time.Local
	}
	return a.cfg.Location
}

var errNotConfigured = errors.New("not configured")
