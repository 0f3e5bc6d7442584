package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/creche-api/pkg/errors"
)

// CacheRepository is the key/value backend, Redis in production.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService is the read-through cache used for table lists and the admin
// dashboard. A nil or disabled service never hits and never fails, so callers
// do not branch on whether Redis is configured.
type CacheService struct {
	backend CacheRepository
	metrics *MetricsService
	ttl     time.Duration
	log     *zap.Logger
	on      bool
}

func NewCacheService(backend CacheRepository, metrics *MetricsService, ttl time.Duration, log *zap.Logger, enabled bool) *CacheService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CacheService{backend: backend, metrics: metrics, ttl: ttl, log: log.Named("cache"), on: enabled}
}

// CacheKey joins non-empty parts with ':'.
func CacheKey(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ":")
}

func (s *CacheService) Enabled() bool {
	return s != nil && s.on && s.backend != nil
}

// Get decodes the entry for key into dest. A miss is (false, nil); only
// backend failures come back as errors.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	start := time.Now()
	err := s.backend.Get(ctx, key, dest)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, appErrors.ErrCacheMiss):
		return false, nil
	}
	s.log.Warn("read failed", zap.String("key", key), zap.Error(err))
	return false, err
}

// Set stores value under key; ttl <= 0 uses the service default.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.ttl
	}
	start := time.Now()
	err := s.backend.Set(ctx, key, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.log.Warn("write failed", zap.String("key", key), zap.Error(err))
	}
	return err
}

// Remember fills dest from key, or runs load to fill it and stores the
// result. A failed store write still returns the loaded value.
func (s *CacheService) Remember(ctx context.Context, key string, ttl time.Duration, dest interface{}, load func(context.Context) error) (bool, error) {
	if hit, _ := s.Get(ctx, key, dest); hit {
		return true, nil
	}
	if err := load(ctx); err != nil {
		return false, err
	}
	_ = s.Set(ctx, key, dest, ttl)
	return false, nil
}

// Invalidate drops every key matching pattern. Entries that survive a failed
// delete age out with their ttl.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) error {
	if !s.Enabled() {
		return nil
	}
	err := s.backend.DeleteByPattern(ctx, pattern)
	if err != nil {
		s.log.Warn("invalidate failed", zap.String("pattern", pattern), zap.Error(err))
	}
	return err
}
