package cmd

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"psp-ffi/config"
	"psp-ffi/pkg/cache"
	"psp-ffi/pkg/cache/postgres"
	"psp-ffi/pkg/cache/sqlite"
	"psp-ffi/pkg/client"
	"psp-ffi/pkg/route"
)

// openStore opens the configured cache backend. The returned func releases it.
func openStore(ctx context.Context, cfg *config.Config) (cache.Store, func(), error) {
	noop := func() {}

	switch cfg.CacheBackend {
	case config.BackendFile, "":
		return cache.NewFileStore(cfg.CacheDir), noop, nil
	case config.BackendMemory:
		return cache.NewMemoryStore(), noop, nil
	case config.BackendSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, noop, err
		}
		return store, func() {
			if err := store.Close(); err != nil {
				zerolog.Ctx(ctx).Warn().Err(err).Msg("Failed to close sqlite cache")
			}
		}, nil
	case config.BackendPostgres:
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, noop, err
		}
		return store, store.Close, nil
	default:
		return nil, noop, errors.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}

func newClient(cfg *config.Config) *client.ParaSwapClient {
	return client.NewParaSwapClient(client.Options{
		BaseURL:    cfg.BaseURL,
		APIVersion: cfg.APIVersion,
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
		RateLimit:  cfg.RateLimit,
	})
}

// newOrchestrator wires the aggregator client and, if withCache is set, the configured cache
func newOrchestrator(ctx context.Context, cfg *config.Config, withCache bool) (*route.Orchestrator, func(), error) {
	apiClient := newClient(cfg)

	if !withCache {
		return route.NewOrchestrator(apiClient, apiClient, nil, cfg.Partner), func() {}, nil
	}

	store, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to open cache")
	}

	return route.NewOrchestrator(apiClient, apiClient, cache.New(store), cfg.Partner), cleanup, nil
}
