// Package store holds the authoritative in-memory emote counters.
//
// Each tracked channel owns a single-consumer event queue feeding a
// synchronous reducer, so events for one channel apply one at a time in
// submission order. The per-user and per-channel tallies mutate under one
// lock within one reducer step; a snapshot taken at any point sees the two
// in agreement. The Store registry also persists all counters to a single
// JSON document on a fixed interval and reloads it at startup.
package store
