package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/devmatch/request-service/internal/domain"
)

// cacheBackend is the slice of the Redis API the cache needs. *redis.Client
// satisfies it.
type cacheBackend interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// CachedRequestRepository is a read-through cache decorating a
// RequestRepository. Reads hit Redis first and may return a snapshot up to
// TTL behind the source of truth; every write through the repository
// refreshes or drops the cached entry. Status transitions must not act on a
// stale snapshot, so the engine reads via Authoritative instead. Cache
// failures degrade to the inner repository, never to an error.
type CachedRequestRepository struct {
	inner  RequestRepository
	client cacheBackend
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedRequestRepository wraps the inner repository with a Redis cache.
func NewCachedRequestRepository(inner RequestRepository, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedRequestRepository {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cache := &CachedRequestRepository{inner: inner, ttl: ttl, logger: logger}
	if client != nil {
		cache.client = client
	}
	return cache
}

func requestCacheKey(id string) string {
	return "request:" + id
}

func (c *CachedRequestRepository) Create(ctx context.Context, request *domain.Request) error {
	if err := c.inner.Create(ctx, request); err != nil {
		return err
	}
	c.store(ctx, request)
	return nil
}

func (c *CachedRequestRepository) GetByID(ctx context.Context, id string) (*domain.Request, error) {
	if c.client != nil {
		raw, err := c.client.Get(ctx, requestCacheKey(id)).Bytes()
		if err == nil {
			var request domain.Request
			if unmarshalErr := json.Unmarshal(raw, &request); unmarshalErr == nil {
				return &request, nil
			}
			// fall through to the source of truth on a corrupt entry
			c.client.Del(ctx, requestCacheKey(id))
		} else if !errors.Is(err, redis.Nil) {
			c.logger.Debug("request cache read failed", zap.String("request_id", id), zap.Error(err))
		}
	}

	request, err := c.inner.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, request)
	return request, nil
}

func (c *CachedRequestRepository) CompareAndUpdate(ctx context.Context, id string, expectedStatus domain.RequestStatus, patch domain.RequestPatch) (*domain.Request, error) {
	updated, err := c.inner.CompareAndUpdate(ctx, id, expectedStatus, patch)
	if err != nil {
		// A lost race means our cached snapshot is stale too.
		if c.client != nil {
			c.client.Del(ctx, requestCacheKey(id))
		}
		return nil, err
	}
	c.store(ctx, updated)
	return updated, nil
}

func (c *CachedRequestRepository) ListWithFilter(ctx context.Context, filter RequestFilter) ([]domain.Request, error) {
	return c.inner.ListWithFilter(ctx, filter)
}

// Authoritative returns a view whose reads always consult the inner
// repository, refreshing the cache as a side effect. The transition engine
// reads through this view so a TTL-stale snapshot can never satisfy its
// idempotence check or seed a compare-and-update.
func (c *CachedRequestRepository) Authoritative() RequestRepository {
	return authoritativeRequestView{cache: c}
}

type authoritativeRequestView struct {
	cache *CachedRequestRepository
}

func (v authoritativeRequestView) Create(ctx context.Context, request *domain.Request) error {
	return v.cache.Create(ctx, request)
}

func (v authoritativeRequestView) GetByID(ctx context.Context, id string) (*domain.Request, error) {
	request, err := v.cache.inner.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	v.cache.store(ctx, request)
	return request, nil
}

func (v authoritativeRequestView) CompareAndUpdate(ctx context.Context, id string, expectedStatus domain.RequestStatus, patch domain.RequestPatch) (*domain.Request, error) {
	return v.cache.CompareAndUpdate(ctx, id, expectedStatus, patch)
}

func (v authoritativeRequestView) ListWithFilter(ctx context.Context, filter RequestFilter) ([]domain.Request, error) {
	return v.cache.inner.ListWithFilter(ctx, filter)
}

func (c *CachedRequestRepository) store(ctx context.Context, request *domain.Request) {
	if c.client == nil || request == nil {
		return
	}
	raw, err := json.Marshal(request)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, requestCacheKey(request.ID), raw, c.ttl).Err(); err != nil {
		c.logger.Debug("request cache write failed", zap.String("request_id", request.ID), zap.Error(err))
	}
}
