package membership

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"collabhub/internal/realtime/ports"
	id "collabhub/pkg/domain"
)

// CachedDirectory memoizes display-name lookups for ttl. Misses and failures
// are not cached so a newly created domain or panel renders on the next event.
// Membership and domain ownership are never cached: both decide who receives
// an event, so they always come from next.
type CachedDirectory struct {
	next  ports.Directory
	cache *cache.Cache
}

// NewCachedDirectory wraps next. Expired items are purged every 2*ttl. A
// non-positive ttl disables caching; go-cache would otherwise keep entries
// forever.
func NewCachedDirectory(next ports.Directory, ttl time.Duration) *CachedDirectory {
	c := &CachedDirectory{next: next}
	if ttl > 0 {
		c.cache = cache.New(ttl, 2*ttl)
	}
	return c
}

func (c *CachedDirectory) DomainName(ctx context.Context, domainID string) (string, error) {
	return c.lookupString(ctx, "domain:"+domainID, func(ctx context.Context) (string, error) {
		return c.next.DomainName(ctx, domainID)
	})
}

func (c *CachedDirectory) PanelName(ctx context.Context, panelID string) (string, error) {
	return c.lookupString(ctx, "panel:"+panelID, func(ctx context.Context) (string, error) {
		return c.next.PanelName(ctx, panelID)
	})
}

func (c *CachedDirectory) UserName(ctx context.Context, userID id.UserID) (string, error) {
	return c.lookupString(ctx, "user:"+userID.String(), func(ctx context.Context) (string, error) {
		return c.next.UserName(ctx, userID)
	})
}

// DomainOwner is uncached; the owner is a panel_created recipient.
func (c *CachedDirectory) DomainOwner(ctx context.Context, domainID string) (id.UserID, error) {
	return c.next.DomainOwner(ctx, domainID)
}

// Flush drops every cached entry.
func (c *CachedDirectory) Flush() {
	if c.cache != nil {
		c.cache.Flush()
	}
}

func (c *CachedDirectory) lookupString(ctx context.Context, key string, load func(context.Context) (string, error)) (string, error) {
	if c.cache == nil {
		return load(ctx)
	}
	if cached, ok := c.cache.Get(key); ok {
		return cached.(string), nil
	}
	value, err := load(ctx)
	if err != nil {
		return "", err
	}
	c.cache.SetDefault(key, value)
	return value, nil
}
