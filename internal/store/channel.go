package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ItsBr0dyy/7TV-Live-Emote-Tracker/internal/domain"
	"github.com/ItsBr0dyy/7TV-Live-Emote-Tracker/internal/metrics"
)

const (
	eventQueueSize = 256
	enrichTimeout  = 10 * time.Second
)

// Channel is the aggregation state of one tracked channel. Exactly one
// exists per channel; it lives until process shutdown (Stop exists so an
// explicit untracking path can be added without redesign).
type Channel struct {
	name     string
	identity domain.IdentityProvider
	publish  func(domain.Update)
	events   chan domain.ChatEvent
	done     chan struct{}

	// mu guards everything below. The reducer takes it once per event and
	// updates the user record and the channel tally together, which keeps
	// the invariant usage[e] == sum of users' EmoteUsage[e] at all times.
	mu        sync.RWMutex
	emotes    map[string]domain.EmoteDescriptor
	emoteList []domain.EmoteDescriptor
	users     map[string]*domain.UserRecord
	order     []string
	usage     map[string]int
}

func newChannel(name string, emotes []domain.EmoteDescriptor, identity domain.IdentityProvider, publish func(domain.Update)) *Channel {
	byName := make(map[string]domain.EmoteDescriptor, len(emotes))
	for _, e := range emotes {
		byName[e.Name] = e
	}
	return &Channel{
		name:      name,
		identity:  identity,
		publish:   publish,
		events:    make(chan domain.ChatEvent, eventQueueSize),
		done:      make(chan struct{}),
		emotes:    byName,
		emoteList: emotes,
		users:     make(map[string]*domain.UserRecord),
		usage:     make(map[string]int),
	}
}

// seed restores persisted user records, preserving the given order.
// Only called before the reducer starts.
func (c *Channel) seed(users []domain.UserRecord) {
	for i := range users {
		u := users[i].Clone()
		if u.EmoteUsage == nil {
			u.EmoteUsage = make(map[string]int)
		}
		c.users[u.Username] = &u
		c.order = append(c.order, u.Username)
		for name, n := range u.EmoteUsage {
			c.usage[name] += n
		}
	}
}

// Name returns the channel name.
func (c *Channel) Name() string { return c.name }

// Enqueue submits an event to the channel's reducer. Returns false if the
// queue is full and the event was dropped.
func (c *Channel) Enqueue(ev domain.ChatEvent) bool {
	select {
	case c.events <- ev:
		return true
	default:
		metrics.EventsDroppedTotal.WithLabelValues(c.name).Inc()
		slog.Warn("Event queue full, dropping event", "channel", c.name)
		return false
	}
}

// Stop terminates the reducer goroutine.
func (c *Channel) Stop() { close(c.done) }

func (c *Channel) run() {
	for {
		select {
		case ev := <-c.events:
			c.apply(ev)
		case <-c.done:
			return
		}
	}
}

// apply is the reducer step: tokenize, intersect against the emote set,
// mutate counters, notify. An event with no matched emote token is a no-op.
// Repeated occurrences of the same emote in one message count once each.
func (c *Channel) apply(ev domain.ChatEvent) {
	c.mu.Lock()

	var matched []string
	for _, tok := range ev.Tokens {
		if _, ok := c.emotes[tok]; ok {
			matched = append(matched, tok)
		}
	}
	if len(matched) == 0 {
		c.mu.Unlock()
		return
	}

	user, exists := c.users[ev.Username]
	if !exists {
		// Placeholder with fallback metadata; enrichment fills it in
		// asynchronously and never touches the counters.
		user = &domain.UserRecord{
			Username:   ev.Username,
			ID:         ev.Username,
			Avatar:     domain.FallbackAvatarURL,
			EmoteUsage: make(map[string]int),
		}
		c.users[ev.Username] = user
		c.order = append(c.order, ev.Username)
	}

	for _, tok := range matched {
		user.Count++
		user.EmoteUsage[tok]++
		c.usage[tok]++
	}

	userCopy := user.Clone()
	usageCopy := cloneCounts(c.usage)
	c.mu.Unlock()

	metrics.EventsProcessedTotal.WithLabelValues(c.name).Inc()
	metrics.EmoteOccurrencesTotal.WithLabelValues(c.name).Add(float64(len(matched)))

	if !exists {
		go c.enrich(ev.Username)
	}

	c.publish(domain.Update{Channel: c.name, User: userCopy, EmoteUsage: usageCopy})
}

func (c *Channel) enrich(username string) {
	ctx, cancel := context.WithTimeout(context.Background(), enrichTimeout)
	defer cancel()

	info, ok := c.identity.Lookup(ctx, username)
	if !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	user, exists := c.users[username]
	if !exists {
		return
	}
	if info.ID != "" {
		user.ID = info.ID
	}
	if info.Avatar != "" {
		user.Avatar = info.Avatar
	}
	user.Paint = info.Paint
}

// Snapshot returns the full channel state for the REST API.
func (c *Channel) Snapshot() domain.ChannelSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return domain.ChannelSnapshot{
		Emotes:     append([]domain.EmoteDescriptor(nil), c.emoteList...),
		Users:      c.usersLocked(),
		EmoteUsage: cloneCounts(c.usage),
	}
}

// Aggregate returns the users and tally slice of the init snapshot.
func (c *Channel) Aggregate() domain.ChannelAggregate {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return domain.ChannelAggregate{
		Users:      c.usersLocked(),
		EmoteUsage: cloneCounts(c.usage),
	}
}

// Users returns user record snapshots in insertion order.
func (c *Channel) Users() []domain.UserRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.usersLocked()
}

func (c *Channel) usersLocked() []domain.UserRecord {
	users := make([]domain.UserRecord, 0, len(c.order))
	for _, username := range c.order {
		users = append(users, c.users[username].Clone())
	}
	return users
}

func cloneCounts(m map[string]int) map[string]int {
	c := make(map[string]int, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
