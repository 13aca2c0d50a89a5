package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/classroom-attendance-api/pkg/errors"
)

type cachedItem struct {
	Name string `json:"name"`
}

func TestCacheRepositoryRoundTrip(t *testing.T) {
	mr, client := newRedisClient(t)
	repo := NewCacheRepository(client)
	ctx := context.Background()

	var out cachedItem
	err := repo.Get(ctx, "students:all", &out)
	assert.True(t, errors.Is(err, appErrors.ErrCacheMiss))

	require.NoError(t, repo.Set(ctx, "students:all", cachedItem{Name: "Ana"}, time.Minute))
	require.NoError(t, repo.Get(ctx, "students:all", &out))
	assert.Equal(t, "Ana", out.Name)

	mr.FastForward(2 * time.Minute)
	err = repo.Get(ctx, "students:all", &out)
	assert.True(t, errors.Is(err, appErrors.ErrCacheMiss))
}

func TestCacheRepositoryDelete(t *testing.T) {
	mr, client := newRedisClient(t)
	repo := NewCacheRepository(client)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "a", cachedItem{Name: "x"}, time.Minute))
	require.NoError(t, repo.Delete(ctx, "a"))
	assert.False(t, mr.Exists("a"))
	assert.NoError(t, repo.Delete(ctx))
}

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil)
	ctx := context.Background()

	assert.NoError(t, repo.Set(ctx, "a", cachedItem{}, time.Minute))
	var out cachedItem
	assert.True(t, errors.Is(repo.Get(ctx, "a", &out), appErrors.ErrCacheMiss))
	assert.NoError(t, repo.Delete(ctx, "a"))
}
