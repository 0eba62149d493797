// Package redisstore persists store collections as plain Redis string keys.
package redisstore

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/examiner/internal/store"
)

type Config struct {
	Redis redis.UniversalClient
}

type Backend struct {
	redis redis.UniversalClient
}

func New(c Config) *Backend {
	return &Backend{redis: c.Redis}
}

func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := b.redis.Get(ctx, key).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, store.ErrNoValue
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: get: %w", err)
	}

	return v, nil
}

func (b *Backend) Set(ctx context.Context, key string, value []byte) error {
	if err := b.redis.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("redisstore: set: %w", err)
	}

	return nil
}

func (b *Backend) Del(ctx context.Context, key string) error {
	if err := b.redis.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redisstore: del: %w", err)
	}

	return nil
}
