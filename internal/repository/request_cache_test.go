package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devmatch/request-service/internal/domain"
)

// fakeCacheBackend keeps entries in a map. Expirations are ignored; tests
// control staleness by mutating the inner store directly.
type fakeCacheBackend struct {
	mu      sync.Mutex
	entries map[string]string
}

func newFakeCacheBackend() *fakeCacheBackend {
	return &fakeCacheBackend{entries: make(map[string]string)}
}

func (f *fakeCacheBackend) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.entries[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(raw, nil)
}

func (f *fakeCacheBackend) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		f.entries[key] = string(v)
	case string:
		f.entries[key] = v
	}
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeCacheBackend) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var removed int64
	for _, key := range keys {
		if _, ok := f.entries[key]; ok {
			delete(f.entries, key)
			removed++
		}
	}
	return redis.NewIntResult(removed, nil)
}

func newCacheFixture(t *testing.T) (*CachedRequestRepository, *MemoryRequestRepository, *fakeCacheBackend) {
	t.Helper()
	inner := NewMemoryRequestRepository()
	backend := newFakeCacheBackend()
	cache := NewCachedRequestRepository(inner, nil, time.Minute, nil)
	cache.client = backend
	return cache, inner, backend
}

func seedCachedRequest(t *testing.T, inner *MemoryRequestRepository, status domain.RequestStatus) *domain.Request {
	t.Helper()
	request := &domain.Request{
		ClientID: "client-1",
		Title:    "Cache warm-up",
		Status:   status,
	}
	require.NoError(t, inner.Create(context.Background(), request))
	return request
}

func TestCachedGetServesSnapshotUntilRefreshed(t *testing.T) {
	cache, inner, _ := newCacheFixture(t)
	ctx := context.Background()
	request := seedCachedRequest(t, inner, domain.StatusPendingMatch)

	first, err := cache.GetByID(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingMatch, first.Status)

	// Another instance commits a transition directly against the store.
	_, err = inner.CompareAndUpdate(ctx, request.ID, domain.StatusPendingMatch,
		domain.RequestPatch{Status: domain.StatusDevRequested})
	require.NoError(t, err)

	// The cached read lags until the entry is refreshed.
	stale, err := cache.GetByID(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingMatch, stale.Status)
}

func TestAuthoritativeReadBypassesStaleEntry(t *testing.T) {
	cache, inner, backend := newCacheFixture(t)
	ctx := context.Background()
	request := seedCachedRequest(t, inner, domain.StatusPendingMatch)

	_, err := cache.GetByID(ctx, request.ID)
	require.NoError(t, err)

	_, err = inner.CompareAndUpdate(ctx, request.ID, domain.StatusPendingMatch,
		domain.RequestPatch{Status: domain.StatusDevRequested})
	require.NoError(t, err)

	fresh, err := cache.Authoritative().GetByID(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDevRequested, fresh.Status)

	// The authoritative read also refreshes the cached entry.
	assert.Contains(t, backend.entries, requestCacheKey(request.ID))
	cachedAgain, err := cache.GetByID(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDevRequested, cachedAgain.Status)
}

func TestCompareAndUpdateRefreshesCache(t *testing.T) {
	cache, inner, _ := newCacheFixture(t)
	ctx := context.Background()
	request := seedCachedRequest(t, inner, domain.StatusPendingMatch)

	_, err := cache.GetByID(ctx, request.ID)
	require.NoError(t, err)

	updated, err := cache.CompareAndUpdate(ctx, request.ID, domain.StatusPendingMatch,
		domain.RequestPatch{Status: domain.StatusDevRequested})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDevRequested, updated.Status)

	cached, err := cache.GetByID(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDevRequested, cached.Status)
}

func TestLostRaceDropsCachedEntry(t *testing.T) {
	cache, inner, backend := newCacheFixture(t)
	ctx := context.Background()
	request := seedCachedRequest(t, inner, domain.StatusDevRequested)

	_, err := cache.GetByID(ctx, request.ID)
	require.NoError(t, err)
	require.Contains(t, backend.entries, requestCacheKey(request.ID))

	_, err = cache.CompareAndUpdate(ctx, request.ID, domain.StatusPendingMatch,
		domain.RequestPatch{Status: domain.StatusAwaitingClientApproval})
	require.Error(t, err)
	assert.NotContains(t, backend.entries, requestCacheKey(request.ID))
}
