package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/invoicer/internal/platform/db"
	"github.com/odyssey-erp/invoicer/internal/platform/kv"
)

// OpenStore opens the persistence backend named by STORE_BACKEND. The
// returned func releases it.
func OpenStore(ctx context.Context, cfg *Config, redisClient *redis.Client, logger *slog.Logger) (kv.Store, func(), error) {
	noop := func() {}
	switch cfg.StoreBackend {
	case StoreMemory:
		logger.Warn("using in-memory store, invoices are lost on restart")
		return kv.NewMemory(), noop, nil
	case StoreSQLite:
		store, err := kv.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {
			if err := store.Close(); err != nil {
				logger.Warn("sqlite close", slog.Any("error", err))
			}
		}, nil
	case StorePostgres:
		pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
		if err != nil {
			return nil, nil, err
		}
		store, err := kv.NewPostgres(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, pool.Close, nil
	case StoreRedis:
		if redisClient == nil {
			return nil, nil, errors.New("redis store backend needs a redis client")
		}
		return kv.NewRedis(redisClient, "invoicer:kv:"), noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
