package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	cfg := fromViper(v)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, StoreDriverPostgres, cfg.Store.Driver)
	assert.Equal(t, 15*time.Minute, cfg.Media.SignedURLTTL)
	assert.Equal(t, int64(50*1024*1024), cfg.Media.MaxFileSizeBytes)
	assert.Contains(t, cfg.Media.AllowedMIMEs, "video/mp4")
	assert.Equal(t, 5*time.Minute, cfg.Payments.WebhookTolerance)
	assert.Equal(t, time.Hour, cfg.Media.SweepEvery)
	assert.Equal(t, 10, cfg.Redis.PoolSize)
	assert.Equal(t, 5*time.Second, cfg.Redis.DialTimeout)
	assert.Empty(t, cfg.Redis.URL)
}

func TestOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("STORE_DRIVER", "PostgREST")
	v.Set("POSTGREST_URL", "https://example.supabase.co/")
	v.Set("CACHE_TTL", "not-a-duration")
	v.Set("ALLOWED_ORIGINS", " https://a.test , ,https://b.test")
	v.Set("REDIS_URL", "redis://cache:6379/1")
	v.Set("MEDIA_SWEEP_INTERVAL", "0s")
	cfg := fromViper(v)

	assert.Equal(t, StoreDriverPostgREST, cfg.Store.Driver)
	assert.Equal(t, "https://example.supabase.co", cfg.Store.PostgRESTURL)
	assert.Equal(t, time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "creche", cfg.Cache.Prefix)
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "redis://cache:6379/1", cfg.Redis.URL)
	assert.Zero(t, cfg.Media.SweepEvery)
}
