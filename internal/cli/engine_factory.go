package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/barter"
	"github.com/aretw0/barter/internal/config"
	"github.com/aretw0/barter/pkg/adapters/memory"
	"github.com/aretw0/barter/pkg/adapters/redis"
	"github.com/aretw0/barter/pkg/adapters/sqlite"
	"github.com/aretw0/barter/pkg/domain"
	"github.com/aretw0/barter/pkg/ports"
)

// OpenStore connects to the backend named by cfg.Store.
func OpenStore(ctx context.Context, cfg config.Config) (ports.Store, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return memory.NewStore(), nil
	case config.StoreSQLite:
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return store, nil
	case config.StoreRedis:
		store := redis.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, redis.WithPrefix(cfg.RedisPrefix))
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.RedisAddr, err)
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown store %q", cfg.Store)
}

// newExchange initializes an Exchange with standard CLI conventions.
func newExchange(cfg config.Config, store ports.Store, logger *slog.Logger, hooks domain.Hooks) *barter.Exchange {
	opts := []barter.Option{
		barter.WithLogger(logger),
		barter.WithLifecycleHooks(hooks),
		barter.WithRollbackPolicy(cfg.RollbackPolicy()),
	}
	if cfg.DisableTransactions {
		opts = append(opts, barter.WithoutTransactions())
	}
	return barter.New(store, opts...)
}
