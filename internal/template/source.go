package template

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTemplateNotFound is returned by a Source that has no body for a key.
var ErrTemplateNotFound = errors.New("template not found")

// Source loads raw template bodies by key.
type Source interface {
	Load(ctx context.Context, key string) (string, error)
}

// CachedSource keeps loaded bodies for ttl so a burst of dispatches does not
// hit the backing store once per dispatch. Misses are not cached.
type CachedSource struct {
	src Source
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]cachedBody
}

type cachedBody struct {
	body    string
	expires time.Time
}

// NewCachedSource wraps src. A ttl of zero or less disables caching.
func NewCachedSource(src Source, ttl time.Duration) *CachedSource {
	return &CachedSource{src: src, ttl: ttl, now: time.Now, entries: make(map[string]cachedBody)}
}

// Load returns the cached body for key or loads it from the wrapped source.
func (c *CachedSource) Load(ctx context.Context, key string) (string, error) {
	if c.ttl <= 0 {
		return c.src.Load(ctx, key)
	}
	now := c.now()
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && now.Before(e.expires) {
		return e.body, nil
	}

	body, err := c.src.Load(ctx, key)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.entries[key] = cachedBody{body: body, expires: now.Add(c.ttl)}
	c.mu.Unlock()
	return body, nil
}

// Invalidate drops key from the cache.
func (c *CachedSource) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}
