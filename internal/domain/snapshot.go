package domain

// ChannelSnapshot is the full aggregation state of one channel as served by
// the REST API. Users keep their insertion order.
type ChannelSnapshot struct {
	Emotes     []EmoteDescriptor `json:"emotes"`
	Users      []UserRecord      `json:"users"`
	EmoteUsage map[string]int    `json:"emoteUsage"`
}

// ChannelAggregate is the per-channel slice of the init snapshot sent to a
// newly subscribed dashboard connection.
type ChannelAggregate struct {
	Users      []UserRecord   `json:"users"`
	EmoteUsage map[string]int `json:"emoteUsage"`
}

// InitSnapshot maps channel name to its aggregate for all tracked channels.
type InitSnapshot map[string]ChannelAggregate
