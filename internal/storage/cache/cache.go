package cache

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/jeovahfialho/portfolio-analyzer/pkg/logger"
	"github.com/jeovahfialho/portfolio-analyzer/pkg/metrics"
)

var ErrMiss = errors.New("chave não encontrada no cache")

// Store is a JSON value cache with per-entry expiration.
type Store interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeletePattern(ctx context.Context, pattern string) error
	HealthCheck(ctx context.Context) error
	Close() error
}

// GetOrFetch returns the cached value under key or calls fetch and stores its result.
// The bool reports a cache hit. A nil store always fetches. Cache write failures are
// logged and never fail the call.
func GetOrFetch[T any](ctx context.Context, store Store, key string, ttl time.Duration, fetch func(context.Context) (T, error)) (T, bool, error) {
	var value T

	if store != nil {
		err := store.Get(ctx, key, &value)
		if err == nil {
			metrics.RecordCacheHit()
			return value, true, nil
		}
		if !errors.Is(err, ErrMiss) {
			logger.WithContext(ctx).Warn("erro ao ler cache", zap.String("key", key), zap.Error(err))
		}
		metrics.RecordCacheMiss()
	}

	value, err := fetch(ctx)
	if err != nil {
		var zero T
		return zero, false, err
	}

	if store != nil {
		if err := store.Set(ctx, key, value, ttl); err != nil {
			logger.WithContext(ctx).Warn("erro ao gravar cache", zap.String("key", key), zap.Error(err))
		}
	}

	return value, false, nil
}
