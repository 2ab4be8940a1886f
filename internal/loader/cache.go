package loader

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/rendis/verdict/internal/capability"
	"github.com/rendis/verdict/pkg/schema"
)

// Cache memoizes successful loads of an inner loader. Failures are never
// cached. Concurrent loads of the same missing key share one inner call.
type Cache struct {
	inner capability.Loader
	group singleflight.Group

	mu      sync.Mutex
	entries map[string]*schema.DecisionContent
}

// NewCache wraps inner.
func NewCache(inner capability.Loader) *Cache {
	return &Cache{
		inner:   inner,
		entries: make(map[string]*schema.DecisionContent),
	}
}

// Load implements capability.Loader. A caller whose ctx ends stops waiting;
// the shared inner load keeps running for the other callers.
func (c *Cache) Load(ctx context.Context, key string) (*schema.DecisionContent, error) {
	if content, ok := c.lookup(key); ok {
		return content, nil
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		if content, ok := c.lookup(key); ok {
			return content, nil
		}
		content, err := c.inner.Load(loadCtx, key)
		if err == nil && content != nil {
			c.mu.Lock()
			c.entries[key] = content
			c.mu.Unlock()
		}
		return content, err
	})

	select {
	case res := <-ch:
		content, _ := res.Val.(*schema.DecisionContent)
		return content, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Cache) lookup(key string) (*schema.DecisionContent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	content, ok := c.entries[key]
	return content, ok
}

// Invalidate drops the cached entry for key. A load already in flight is
// not joined by later callers.
func (c *Cache) Invalidate(key string) {
	c.group.Forget(key)
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Reset drops every cached entry.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.entries = make(map[string]*schema.DecisionContent)
	c.mu.Unlock()
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
