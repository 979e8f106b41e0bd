package domain

import (
	"context"
	"encoding/json"
)

// FallbackAvatarURL is used when the identity lookup returns nothing.
const FallbackAvatarURL = "https://static-cdn.jtvnw.net/jtv_user_pictures/xarth/404_user_70x70.png"

// UserRecord holds the per-channel counters for one chatter.
// Created on first qualifying message, mutated in place afterwards,
// never deleted during the process lifetime.
type UserRecord struct {
	Username string `json:"username"`
	ID       string `json:"id"`
	Avatar   string `json:"avatar"`
	// Paint is the raw 7TV paint object, kept opaque since the dashboard
	// renders it client-side.
	Paint      json.RawMessage `json:"paint"`
	Count      int             `json:"count"`
	EmoteUsage map[string]int  `json:"emoteUsage"`
}

// Clone returns a deep copy safe to publish outside the store's lock.
func (u *UserRecord) Clone() UserRecord {
	c := *u
	c.EmoteUsage = make(map[string]int, len(u.EmoteUsage))
	for k, v := range u.EmoteUsage {
		c.EmoteUsage[k] = v
	}
	return c
}

// UserInfo is the enrichment payload resolved from the identity provider.
type UserInfo struct {
	ID     string
	Avatar string
	Paint  json.RawMessage
}

// IdentityProvider resolves per-user metadata. The boolean is false when no
// metadata could be found; callers apply fallback defaults.
type IdentityProvider interface {
	Lookup(ctx context.Context, username string) (UserInfo, bool)
}
