package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const (
	cacheVersionKey = "invoicer:document:version"
	bumpChannel     = "invoicer.document.bump"
)

// Cache stores encoded documents in Redis behind a global version that is
// bumped whenever invoices or settings change.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

// NewCache constructs the cache. A nil client disables storage but keeps
// concurrent builds collapsed.
func NewCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{client: client, ttl: ttl, logger: logger}
}

// Version returns the current cache version, initialising it when missing.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	if c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, cacheVersionKey).Int64()
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// Key composes a versioned cache key.
func (c *Cache) Key(ctx context.Context, parts ...string) (string, error) {
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("invoicer:document:%s:%d", strings.Join(parts, ":"), ver), nil
}

// Fetch returns the cached bytes under key or builds and stores them. The
// boolean reports a cache hit. Redis failures degrade to building.
func (c *Cache) Fetch(ctx context.Context, key string, build func(context.Context) ([]byte, error)) ([]byte, bool, error) {
	if c.client != nil {
		payload, err := c.client.Get(ctx, key).Bytes()
		if err == nil {
			return payload, true, nil
		}
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("document cache read failed", slog.String("key", key), slog.Any("error", err))
		}
	}

	// The build is shared by every waiter, so one caller leaving must not cancel it.
	buildCtx := context.WithoutCancel(ctx)
	resultChan := c.group.DoChan(key, func() (any, error) {
		payload, err := build(buildCtx)
		if err != nil {
			return nil, err
		}
		if c.client != nil {
			if err := c.client.Set(buildCtx, key, payload, c.ttl).Err(); err != nil {
				c.logger.Warn("document cache write failed", slog.String("key", key), slog.Any("error", err))
			}
		}
		return payload, nil
	})
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.([]byte), false, nil
	}
}

// Bump invalidates every cached document and announces the new version.
func (c *Cache) Bump(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	ver, err := c.client.Incr(ctx, cacheVersionKey).Result()
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, bumpChannel, strconv.FormatInt(ver, 10)).Err()
}

// BumpAsync bumps with its own deadline; used from store callbacks.
func (c *Cache) BumpAsync() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := c.Bump(ctx); err != nil {
			c.logger.Warn("document cache bump failed", slog.Any("error", err))
		}
	}()
}
