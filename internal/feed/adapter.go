// Package feed owns the resilient upstream chat connection for one channel.
//
// The adapter wraps an anonymous Twitch IRC client and normalizes PRIVMSG
// into domain.ChatEvent. It cycles Disconnected -> Connecting -> Connected
// and re-enters Connecting after a fixed delay whenever the connection
// drops. Reconnection swaps the client handle, it never duplicates it, so at
// most one live upstream connection exists per channel. Keepalive PING/PONG
// and unparseable frames are handled inside the IRC library.
package feed

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	twitchirc "github.com/gempir/go-twitch-irc/v4"
	"github.com/jonboulle/clockwork"

	"github.com/ItsBr0dyy/7TV-Live-Emote-Tracker/internal/domain"
	"github.com/ItsBr0dyy/7TV-Live-Emote-Tracker/internal/metrics"
)

// State is the adapter's connection state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Handler consumes normalized chat events.
type Handler func(domain.ChatEvent)

// ircClient is the slice of the IRC library the adapter depends on.
type ircClient interface {
	OnConnect(func())
	OnPrivateMessage(func(twitchirc.PrivateMessage))
	Join(channels ...string)
	Connect() error
	Disconnect() error
}

type Adapter struct {
	channel   string
	handler   Handler
	clock     clockwork.Clock
	delay     time.Duration
	newClient func() ircClient
	onState   func(State)

	mu      sync.Mutex
	current ircClient
	state   atomic.Int32
}

func NewAdapter(channel string, delay time.Duration, handler Handler, clock clockwork.Clock) *Adapter {
	return &Adapter{
		channel:   channel,
		handler:   handler,
		clock:     clock,
		delay:     delay,
		newClient: func() ircClient { return twitchirc.NewAnonymousClient() },
	}
}

// SetStateListener registers a callback invoked on every state transition.
// Must be called before Run.
func (a *Adapter) SetStateListener(fn func(State)) { a.onState = fn }

// State reports the current connection state.
func (a *Adapter) State() State { return State(a.state.Load()) }

// Run connects and blocks until ctx is cancelled, reconnecting after the
// configured delay whenever the connection drops. The delay never blocks
// event processing for other channels since each adapter runs in its own
// goroutine.
func (a *Adapter) Run(ctx context.Context) {
	log := slog.With("channel", a.channel)

	go func() {
		<-ctx.Done()
		a.closeCurrent()
	}()

	first := true
	for {
		if ctx.Err() != nil {
			return
		}
		if !first {
			metrics.FeedReconnectsTotal.WithLabelValues(a.channel).Inc()
		}
		first = false

		a.setState(StateConnecting)
		client := a.newClient()
		client.OnConnect(func() {
			a.setState(StateConnected)
			log.Info("Upstream feed connected")
			client.Join(a.channel)
		})
		client.OnPrivateMessage(func(m twitchirc.PrivateMessage) {
			a.handler(normalize(m))
		})
		a.swap(client)

		err := client.Connect()
		a.setState(StateDisconnected)
		if ctx.Err() != nil {
			return
		}
		log.Warn("Upstream feed disconnected", "error", err, "retry_in", a.delay)

		select {
		case <-ctx.Done():
			return
		case <-a.clock.After(a.delay):
		}
	}
}

// swap installs the new client handle, disconnecting any previous one so a
// reconnect replaces rather than duplicates the upstream connection.
func (a *Adapter) swap(client ircClient) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current != nil {
		_ = a.current.Disconnect()
	}
	a.current = client
}

func (a *Adapter) closeCurrent() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current != nil {
		_ = a.current.Disconnect()
	}
}

func (a *Adapter) setState(s State) {
	if State(a.state.Swap(int32(s))) == s {
		return
	}
	if a.onState != nil {
		a.onState(s)
	}
}

func normalize(m twitchirc.PrivateMessage) domain.ChatEvent {
	username := m.User.DisplayName
	if username == "" {
		username = m.User.Name
	}

	sentAt := m.Time
	if sentAt.IsZero() {
		sentAt = time.Now().UTC()
	}

	return domain.ChatEvent{
		Channel:   strings.TrimPrefix(m.Channel, "#"),
		Username:  username,
		Text:      m.Message,
		Tokens:    strings.Fields(m.Message),
		Timestamp: sentAt,
	}
}
