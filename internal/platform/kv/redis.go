package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const maxUpdateAttempts = 64

// Redis stores values as plain Redis strings under a key prefix.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis wraps a Redis client. Values never expire.
func NewRedis(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

// Get returns the stored value and whether it exists.
func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kv/redis: get %s: %w", key, err)
	}
	return value, true, nil
}

// Set replaces the value stored under key.
func (r *Redis) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("kv/redis: set %s: %w", key, err)
	}
	return nil
}

// Update is optimistic: the key is WATCHed and the write retried when another
// client changes it first.
func (r *Redis) Update(ctx context.Context, key string, fn UpdateFunc) error {
	full := r.prefix + key
	for range maxUpdateAttempts {
		var fnErr error
		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			current, err := tx.Get(ctx, full).Result()
			exists := true
			if errors.Is(err, redis.Nil) {
				exists = false
			} else if err != nil {
				return err
			}
			next, err := fn(current, exists)
			if err != nil {
				fnErr = err
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, full, next, 0)
				return nil
			})
			return err
		}, full)
		switch {
		case fnErr != nil:
			if errors.Is(fnErr, ErrUnchanged) {
				return nil
			}
			return fnErr
		case errors.Is(err, redis.TxFailedErr):
			continue
		case err != nil:
			return fmt.Errorf("kv/redis: update %s: %w", key, err)
		}
		return nil
	}
	return fmt.Errorf("kv/redis: update %s: %w", key, ErrConflict)
}
