package media

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// CachedSigner memoizes signed URLs for half their lifetime so a refresh
// storm does not re-sign every image.
type CachedSigner struct {
	Service
	urls *cache.Cache
}

// WithURLCache wraps svc. The cache has no janitor goroutine; expired
// entries are dropped on write.
func WithURLCache(svc Service) *CachedSigner {
	return &CachedSigner{Service: svc, urls: cache.New(cache.NoExpiration, 0)}
}

func (c *CachedSigner) SignedURL(ctx context.Context, cid string, ttl time.Duration) (string, error) {
	key := cid + "|" + ttl.String()
	if v, ok := c.urls.Get(key); ok {
		return v.(string), nil
	}

	u, err := c.Service.SignedURL(ctx, cid, ttl)
	if err != nil {
		return "", err
	}
	if ttl >= 2*time.Second {
		c.urls.DeleteExpired()
		c.urls.Set(key, u, ttl/2)
	}
	return u, nil
}

// Unwrap returns the wrapped service.
func (c *CachedSigner) Unwrap() Service {
	return c.Service
}
