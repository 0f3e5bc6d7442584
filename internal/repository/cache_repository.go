package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/creche-api/pkg/errors"
)

const scanBatch = 100

// CacheRepository keeps JSON snapshots of list pages and dashboard summaries
// in Redis. Every key is stored under "<prefix>:".
type CacheRepository struct {
	rdb    redis.UniversalClient
	prefix string
	logger *zap.Logger
}

// NewCacheRepository wraps rdb. With a nil client every read misses and every
// write is dropped.
func NewCacheRepository(rdb redis.UniversalClient, prefix string, logger *zap.Logger) *CacheRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prefix != "" {
		prefix += ":"
	}
	return &CacheRepository{rdb: rdb, prefix: prefix, logger: logger}
}

func (r *CacheRepository) key(k string) string { return r.prefix + k }

// Get decodes the snapshot under key into dest. Entries that no longer decode
// (a model changed shape between releases) are deleted and reported as misses.
func (r *CacheRepository) Get(ctx context.Context, key string, dest interface{}) error {
	if r.rdb == nil {
		return appErrors.ErrCacheMiss
	}
	full := r.key(key)
	raw, err := r.rdb.Get(ctx, full).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return appErrors.ErrCacheMiss
	case err != nil:
		return fmt.Errorf("redis get %s: %w", full, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		r.logger.Debug("dropping undecodable cache entry", zap.String("key", full), zap.Error(err))
		_ = r.rdb.Unlink(ctx, full).Err()
		return appErrors.ErrCacheMiss
	}
	return nil
}

func (r *CacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if r.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}
	if err := r.rdb.Set(ctx, r.key(key), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", r.key(key), err)
	}
	return nil
}

// DeleteByPattern unlinks every key matching the glob, scanning in batches so
// a large keyspace never blocks Redis.
func (r *CacheRepository) DeleteByPattern(ctx context.Context, pattern string) error {
	if r.rdb == nil {
		return nil
	}
	match := r.key(pattern)
	var cursor uint64
	for {
		keys, next, err := r.rdb.Scan(ctx, cursor, match, scanBatch).Result()
		if err != nil {
			return fmt.Errorf("redis scan %s: %w", match, err)
		}
		if len(keys) > 0 {
			if err := r.rdb.Unlink(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis unlink %d keys: %w", len(keys), err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (r *CacheRepository) Ping(ctx context.Context) error {
	if r.rdb == nil {
		return nil
	}
	return r.rdb.Ping(ctx).Err()
}

func (r *CacheRepository) Close() error {
	if r.rdb == nil {
		return nil
	}
	return r.rdb.Close()
}
