package domain

import "time"

// ChatEvent is a normalized chat message produced by the feed adapter.
// Immutable once emitted; consumed exactly once by the aggregation store.
type ChatEvent struct {
	Channel   string
	Username  string
	Text      string
	Tokens    []string // Text split on whitespace
	Timestamp time.Time
}

// Update is the delta notification emitted after every counter-affecting
// event. User and EmoteUsage are snapshots, safe to hand to other goroutines.
type Update struct {
	Channel    string         `json:"channel"`
	User       UserRecord     `json:"user"`
	EmoteUsage map[string]int `json:"emoteUsage"`
}

// Publisher fans out update notifications to dashboard subscribers.
type Publisher interface {
	Publish(Update)
}
