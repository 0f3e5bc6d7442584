package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/creche-api/internal/models"
	appErrors "github.com/noah-isme/creche-api/pkg/errors"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *CacheRepository) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewCacheRepository(client, "creche", nil)
}

func TestCacheRepositoryRoundTrip(t *testing.T) {
	mr, repo := newRedis(t)
	ctx := context.Background()

	children := []models.Child{{ID: "c1", FirstName: "Ada", ParentID: "p1"}}
	require.NoError(t, repo.Set(ctx, "list:children:a", children, time.Minute))

	var out []models.Child
	require.NoError(t, repo.Get(ctx, "list:children:a", &out))
	assert.Equal(t, "Ada", out[0].FirstName)

	assert.True(t, mr.Exists("creche:list:children:a"))
	mr.FastForward(2 * time.Minute)
	err := repo.Get(ctx, "list:children:a", &out)
	assert.True(t, errors.Is(err, appErrors.ErrCacheMiss))
}

func TestCacheRepositoryDeleteByPattern(t *testing.T) {
	mr, repo := newRedis(t)
	ctx := context.Background()

	for _, key := range []string{"list:children:1", "list:children:2", "list:payments:1"} {
		require.NoError(t, repo.Set(ctx, key, []string{"x"}, time.Minute))
	}
	require.NoError(t, repo.DeleteByPattern(ctx, "list:children:*"))

	assert.False(t, mr.Exists("creche:list:children:1"))
	assert.False(t, mr.Exists("creche:list:children:2"))
	assert.True(t, mr.Exists("creche:list:payments:1"))
}

func TestCacheRepositoryCorruptEntryIsMiss(t *testing.T) {
	mr, repo := newRedis(t)
	require.NoError(t, mr.Set("creche:dashboard:summary", "{not json"))

	var out models.DashboardSummary
	err := repo.Get(context.Background(), "dashboard:summary", &out)
	assert.True(t, errors.Is(err, appErrors.ErrCacheMiss))
	assert.False(t, mr.Exists("creche:dashboard:summary"))
}

func TestCacheRepositoryNilClient(t *testing.T) {
	repo := NewCacheRepository(nil, "", nil)
	var out []string
	assert.True(t, errors.Is(repo.Get(context.Background(), "k", &out), appErrors.ErrCacheMiss))
	assert.NoError(t, repo.Set(context.Background(), "k", out, time.Second))
	assert.NoError(t, repo.DeleteByPattern(context.Background(), "*"))
}
