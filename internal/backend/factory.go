package backend

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"spendlog/internal/log"
	"spendlog/internal/persist"
	"spendlog/internal/persist/memory"
	"spendlog/internal/persist/sqlite"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Nop()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	store, err := sqlite.New(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
	}

	if err := f.seedMissing(ctx, store, config.SeedDir); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to seed SQLite store: %w", err)
	}

	f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Provider: store,
		Ping:     store.Ping,
		Cleanup:  store.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(ctx context.Context, config Config) (*BackendResult, error) {
	var store *memory.Store
	if config.SeedDir != "" {
		store = memory.NewFromDir(config.SeedDir)
	} else {
		store = memory.New()
	}

	f.logger.InfoContext(ctx, "Initialized memory backend", "seed_dir", config.SeedDir)

	return &BackendResult{
		Provider: store,
		Ping:     func(context.Context) error { return nil },
		Cleanup:  func() error { return nil },
	}, nil
}

// seedMissing copies <dir>/category.json into p when p has no directory yet.
func (f *DefaultFactory) seedMissing(ctx context.Context, p persist.Provider, dir string) error {
	if dir == "" {
		return nil
	}
	_, ok, err := p.Load(ctx, persist.KeyCategory)
	if err != nil || ok {
		return err
	}
	path := filepath.Join(dir, persist.KeyCategory+".json")
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := p.Save(ctx, persist.KeyCategory, data); err != nil {
		return err
	}
	f.logger.WithComponent(log.ComponentStorage).InfoContext(ctx, "Seeded missing document",
		log.FieldKey, persist.KeyCategory,
		"path", path)
	return nil
}
