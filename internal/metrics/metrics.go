package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Aggregation metrics
var (
	// EventsProcessedTotal tracks chat events applied to the store by channel
	EventsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emotetracker_events_processed_total",
			Help: "Chat events processed by the aggregation store",
		},
		[]string{"channel"},
	)

	// EmoteOccurrencesTotal tracks matched emote token occurrences by channel
	EmoteOccurrencesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emotetracker_emote_occurrences_total",
			Help: "Matched emote token occurrences",
		},
		[]string{"channel"},
	)

	// EventsDroppedTotal tracks events dropped because a channel queue was full
	EventsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emotetracker_events_dropped_total",
			Help: "Chat events dropped due to a full channel queue",
		},
		[]string{"channel"},
	)

	// TrackedChannels tracks the number of actively tracked channels
	TrackedChannels = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "emotetracker_tracked_channels",
			Help: "Number of actively tracked channels",
		},
	)
)

// Fan-out metrics
var (
	// ConnectedClients tracks currently connected dashboard clients
	ConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "emotetracker_connected_clients",
			Help: "Currently connected dashboard WebSocket clients",
		},
	)

	// BroadcastsTotal tracks update messages handed to client writers
	BroadcastsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "emotetracker_broadcasts_total",
			Help: "Update messages handed to client writers",
		},
	)

	// BroadcastsSkippedTotal tracks sends skipped because a client was slow
	BroadcastsSkippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "emotetracker_broadcasts_skipped_total",
			Help: "Sends skipped because a client writer buffer was full",
		},
	)
)

// Upstream feed metrics
var (
	// FeedReconnectsTotal tracks upstream reconnect attempts by channel
	FeedReconnectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emotetracker_feed_reconnects_total",
			Help: "Upstream feed reconnect attempts",
		},
		[]string{"channel"},
	)
)

// Enrichment and persistence metrics
var (
	// IdentityLookupsTotal tracks identity lookups by outcome (hit/resolved/missing)
	IdentityLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emotetracker_identity_lookups_total",
			Help: "Identity lookups by outcome",
		},
		[]string{"outcome"},
	)

	// PersistenceFlushesTotal tracks state file flushes by status (ok/error)
	PersistenceFlushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emotetracker_persistence_flushes_total",
			Help: "State file flushes by status",
		},
		[]string{"status"},
	)
)
