// Package tracker lazily starts per-channel feed subscriptions on demand.
package tracker

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/ItsBr0dyy/7TV-Live-Emote-Tracker/internal/domain"
	"github.com/ItsBr0dyy/7TV-Live-Emote-Tracker/internal/feed"
	"github.com/ItsBr0dyy/7TV-Live-Emote-Tracker/internal/store"
)

// runner is the adapter's lifecycle as seen by the supervisor.
type runner interface {
	Run(ctx context.Context)
}

// Supervisor ensures at most one feed adapter exists per channel. Tracking
// survives until process shutdown; each tracked channel keeps its cancel
// handle so an explicit stop path can be added later.
type Supervisor struct {
	store     *store.Store
	emotes    domain.EmoteProvider
	identity  domain.IdentityProvider
	publisher domain.Publisher

	group      singleflight.Group
	mu         sync.Mutex
	tracked    map[string]*tracked
	newAdapter func(channel string, handler feed.Handler) runner
}

type tracked struct {
	channel *store.Channel
	cancel  context.CancelFunc
}

func NewSupervisor(st *store.Store, emotes domain.EmoteProvider, identity domain.IdentityProvider, publisher domain.Publisher, reconnectDelay time.Duration, clock clockwork.Clock) *Supervisor {
	return &Supervisor{
		store:     st,
		emotes:    emotes,
		identity:  identity,
		publisher: publisher,
		tracked:   make(map[string]*tracked),
		newAdapter: func(channel string, handler feed.Handler) runner {
			return feed.NewAdapter(channel, reconnectDelay, handler, clock)
		},
	}
}

// EnsureTracking starts tracking the channel if it is not tracked yet and
// returns its state. Idempotent: concurrent and repeated calls for the same
// channel share one emote-set fetch and one adapter. Channel names are
// case-insensitive and normalized to lowercase.
func (s *Supervisor) EnsureTracking(ctx context.Context, channel string) (*store.Channel, error) {
	channel = strings.ToLower(channel)

	s.mu.Lock()
	if t, ok := s.tracked[channel]; ok {
		s.mu.Unlock()
		return t.channel, nil
	}
	s.mu.Unlock()

	v, err, _ := s.group.Do(channel, func() (any, error) {
		s.mu.Lock()
		if t, ok := s.tracked[channel]; ok {
			s.mu.Unlock()
			return t.channel, nil
		}
		s.mu.Unlock()

		emotes, err := s.emotes.ChannelEmotes(ctx, channel)
		if err != nil {
			// Fail before registering anything so a later call can retry.
			return nil, err
		}

		st := s.store.CreateChannel(channel, emotes, s.identity, s.publisher.Publish)

		// Adapter lifetime is the process, not the triggering request.
		runCtx, cancel := context.WithCancel(context.Background())
		adapter := s.newAdapter(channel, func(ev domain.ChatEvent) {
			st.Enqueue(ev)
		})
		go adapter.Run(runCtx)

		s.mu.Lock()
		s.tracked[channel] = &tracked{channel: st, cancel: cancel}
		s.mu.Unlock()

		slog.Info("Tracking started", "channel", channel, "emotes", len(emotes))
		return st, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*store.Channel), nil
}

// IsTracking reports whether the channel is actively tracked.
func (s *Supervisor) IsTracking(channel string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tracked[strings.ToLower(channel)]
	return ok
}

// StopAll cancels every adapter and reducer. Used on shutdown.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, t := range s.tracked {
		t.cancel()
		t.channel.Stop()
		delete(s.tracked, name)
	}
}
