package cli

import (
	"context"
	"fmt"

	"spendlog/internal/backend"
	"spendlog/internal/cache"
	"spendlog/internal/config"
	"spendlog/internal/core"
	"spendlog/internal/ledger"
	"spendlog/internal/log"
	"spendlog/internal/metrics"
	"spendlog/internal/query"
	"spendlog/internal/services"
	"spendlog/internal/timerange"
)

// Stack is the ledger wired onto the configured backend.
type Stack struct {
	Ledger   *ledger.Store
	Queries  *query.Service
	Commands *services.CommandService
	Caches   *cache.Manager
	Ping     backend.PingFunc

	cleanup backend.CleanupFunc
}

// BuildStack creates the backend selected by cfg and the services on top of
// it. m may be nil.
func BuildStack(ctx context.Context, cfg *config.Config, logger *log.Logger, m *metrics.Metrics) (*Stack, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("create %s backend: %w", bcfg.Type, err)
	}

	store := ledger.New(res.Provider,
		ledger.WithLocation(cfg.Location),
		ledger.WithLogger(logger),
		ledger.WithMetrics(m))
	resolver := timerange.NewResolver(timerange.WithLocation(cfg.Location))

	totals := cache.NewLRUCache[[]core.CategoryTotal](cfg.QueryCacheSize, cfg.QueryCacheTTL)
	caches := cache.NewManager(logger)
	caches.Register(totals)

	queries := query.NewService(store, resolver,
		query.WithCache(totals),
		query.WithLogger(logger),
		query.WithMetrics(m))
	commands := services.NewCommandService(store, queries,
		services.WithLocation(cfg.Location),
		services.WithLogger(logger),
		services.WithMetrics(m))

	return &Stack{
		Ledger:   store,
		Queries:  queries,
		Commands: commands,
		Caches:   caches,
		Ping:     res.Ping,
		cleanup:  res.Cleanup,
	}, nil
}

// Close releases the backend.
func (s *Stack) Close() error {
	if s.cleanup == nil {
		return nil
	}
	return s.cleanup()
}
