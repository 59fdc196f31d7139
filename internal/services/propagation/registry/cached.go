package registry

import (
	"context"
	"sync"

	"tariffsync/internal/services/propagation/domain"
)

// Cached remembers the first successful, non-empty answer of inner for the process lifetime.
// Targets are provisioned out of band, so a restart (or Invalidate) is how new ones are picked up
type Cached struct {
	inner domain.Registry

	mu  sync.Mutex
	ids []string
}

var _ domain.Registry = (*Cached)(nil)

// NewCached wraps inner
func NewCached(inner domain.Registry) *Cached { return &Cached{inner: inner} }

// Targets implements domain.Registry; callers get their own copy
func (c *Cached) Targets(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ids == nil {
		ids, err := c.inner.Targets(ctx)
		if err != nil {
			return nil, err
		}
		c.ids = ids
	}
	return append([]string(nil), c.ids...), nil
}

// Invalidate forgets the cached list
func (c *Cached) Invalidate() {
	c.mu.Lock()
	c.ids = nil
	c.mu.Unlock()
}
