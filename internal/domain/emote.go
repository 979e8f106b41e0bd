package domain

import "context"

// EmoteDescriptor is one entry of a channel's emote set. Loaded once at
// tracking start and read-only for the rest of the tracking session.
type EmoteDescriptor struct {
	Name string `json:"name"`
	ID   string `json:"id"`
	URL  string `json:"url"`
}

// EmoteProvider fetches the active emote set for a channel.
// An unknown channel yields an empty set, not an error.
type EmoteProvider interface {
	ChannelEmotes(ctx context.Context, channel string) ([]EmoteDescriptor, error)
}
