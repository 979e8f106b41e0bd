package store

import (
	"sort"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/ItsBr0dyy/7TV-Live-Emote-Tracker/internal/domain"
	"github.com/ItsBr0dyy/7TV-Live-Emote-Tracker/internal/metrics"
)

// Store is the process-scoped registry of tracked channels. Components
// receive it at construction; there is no ambient global state.
type Store struct {
	path  string
	clock clockwork.Clock

	mu       sync.RWMutex
	channels map[string]*Channel
	// persisted holds user records loaded from disk for channels that are
	// not (yet) tracked this run. They survive save cycles untouched.
	persisted map[string]map[string]*domain.UserRecord
}

func New(path string, clock clockwork.Clock) *Store {
	return &Store{
		path:      path,
		clock:     clock,
		channels:  make(map[string]*Channel),
		persisted: make(map[string]map[string]*domain.UserRecord),
	}
}

// CreateChannel registers a channel and starts its reducer. Idempotent: a
// second call returns the existing channel untouched. Persisted records for
// the channel are restored into the fresh state.
func (s *Store) CreateChannel(name string, emotes []domain.EmoteDescriptor, identity domain.IdentityProvider, publish func(domain.Update)) *Channel {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.channels[name]; ok {
		return existing
	}

	ch := newChannel(name, emotes, identity, publish)
	if saved, ok := s.persisted[name]; ok {
		ch.seed(sortedRecords(saved))
	}
	s.channels[name] = ch
	go ch.run()

	metrics.TrackedChannels.Set(float64(len(s.channels)))
	return ch
}

// Channel returns the live channel state, if tracked.
func (s *Store) Channel(name string) (*Channel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.channels[name]
	return ch, ok
}

// Leaderboard returns the channel's user records in insertion order, or an
// empty slice if the channel is untracked.
func (s *Store) Leaderboard(name string) []domain.UserRecord {
	ch, ok := s.Channel(name)
	if !ok {
		return []domain.UserRecord{}
	}
	return ch.Users()
}

// Snapshot returns the combined channel snapshot for the REST API.
func (s *Store) Snapshot(name string) (domain.ChannelSnapshot, bool) {
	ch, ok := s.Channel(name)
	if !ok {
		return domain.ChannelSnapshot{}, false
	}
	return ch.Snapshot(), true
}

// InitSnapshot returns the aggregate of every tracked channel, sent to each
// newly subscribed dashboard connection.
func (s *Store) InitSnapshot() domain.InitSnapshot {
	s.mu.RLock()
	channels := make([]*Channel, 0, len(s.channels))
	for _, ch := range s.channels {
		channels = append(channels, ch)
	}
	s.mu.RUnlock()

	snap := make(domain.InitSnapshot, len(channels))
	for _, ch := range channels {
		snap[ch.Name()] = ch.Aggregate()
	}
	return snap
}

// sortedRecords flattens a persisted user map into a deterministic order.
// The original insertion order is not recorded on disk, so restored records
// sort by username.
func sortedRecords(users map[string]*domain.UserRecord) []domain.UserRecord {
	names := make([]string, 0, len(users))
	for name := range users {
		names = append(names, name)
	}
	sort.Strings(names)

	records := make([]domain.UserRecord, 0, len(names))
	for _, name := range names {
		records = append(records, *users[name])
	}
	return records
}
