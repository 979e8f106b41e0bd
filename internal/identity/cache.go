// Package identity memoizes per-user metadata lookups.
//
// Each username triggers at most one successful external lookup for the
// process lifetime. Concurrent lookups for the same unseen username are
// collapsed with singleflight; failures are not cached so a user seen again
// later can still resolve. Counters never depend on enrichment timing.
package identity

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/ItsBr0dyy/7TV-Live-Emote-Tracker/internal/domain"
	"github.com/ItsBr0dyy/7TV-Live-Emote-Tracker/internal/metrics"
)

// Lookup resolves metadata from the external identity provider.
type Lookup func(ctx context.Context, username string) (domain.UserInfo, error)

type Cache struct {
	lookup Lookup
	group  singleflight.Group

	mu    sync.RWMutex
	users map[string]domain.UserInfo
}

func NewCache(lookup Lookup) *Cache {
	return &Cache{
		lookup: lookup,
		users:  make(map[string]domain.UserInfo),
	}
}

// Lookup returns the memoized metadata for username, resolving it on first
// use. The boolean is false when the provider has no data or the lookup
// failed; callers apply fallback defaults and must not treat this as fatal.
func (c *Cache) Lookup(ctx context.Context, username string) (domain.UserInfo, bool) {
	c.mu.RLock()
	info, ok := c.users[username]
	c.mu.RUnlock()
	if ok {
		metrics.IdentityLookupsTotal.WithLabelValues("hit").Inc()
		return info, true
	}

	value, err, _ := c.group.Do(username, func() (any, error) {
		info, err := c.lookup(ctx, username)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.users[username] = info
		c.mu.Unlock()
		return info, nil
	})
	if err != nil {
		slog.Debug("Identity lookup failed", "username", username, "error", err)
		metrics.IdentityLookupsTotal.WithLabelValues("missing").Inc()
		return domain.UserInfo{}, false
	}

	metrics.IdentityLookupsTotal.WithLabelValues("resolved").Inc()
	return value.(domain.UserInfo), true
}

// Size reports the number of memoized entries.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.users)
}
