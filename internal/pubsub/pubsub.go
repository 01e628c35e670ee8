// Package pubsub implements the publish/subscribe routing table named as
// an external collaborator in spec.md §1 and built out per SPEC_FULL.md §4
// item 1: a channel -> subscriber-session-set registry, independent of the
// per-shard watch table.
//
// Grounded on original_source/src/core/pubsub.cc
// (DatabaseManager::SubscribeWithChannel/PublishWithChannel/
// UnSubscribeWithChannel), using github.com/deckarep/golang-set/v2 for the
// subscriber sets - the same library internal/shard uses for its watch
// table, carried from AKJUS-bsc-erigon's go.mod.
package pubsub

import (
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
)

// Hub is a channel -> subscriber-session-ID registry.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]mapset.Set[string]
}

// New returns an empty Hub.
func New() *Hub {
	return &Hub{channels: make(map[string]mapset.Set[string])}
}

// Subscribe adds sessionID as a subscriber of channel.
func (h *Hub) Subscribe(channel, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.channels[channel]
	if !ok {
		set = mapset.NewSet[string]()
		h.channels[channel] = set
	}
	set.Add(sessionID)
}

// Unsubscribe removes sessionID from channel.
func (h *Hub) Unsubscribe(channel, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.channels[channel]
	if !ok {
		return
	}
	set.Remove(sessionID)
	if set.Cardinality() == 0 {
		delete(h.channels, channel)
	}
}

// UnsubscribeAll removes sessionID from every channel it was subscribed
// to, used when a session disconnects.
func (h *Hub) UnsubscribeAll(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for channel, set := range h.channels {
		set.Remove(sessionID)
		if set.Cardinality() == 0 {
			delete(h.channels, channel)
		}
	}
}

// Subscribers returns the session IDs currently subscribed to channel.
// Publish is a thin wrapper most callers should use instead; this is
// exposed for the wire layer, which must actually deliver the message to
// each subscriber's live connection - a capability this package
// deliberately does not own (§9 weak-reference note: the registry never
// holds an owning reference to a session).
func (h *Hub) Subscribers(channel string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	set, ok := h.channels[channel]
	if !ok {
		return nil
	}
	out := make([]string, 0, set.Cardinality())
	for id := range set.Iter() {
		out = append(out, id)
	}
	return out
}

// Publish calls deliver once per current subscriber of channel and
// returns the number of sessions notified.
func (h *Hub) Publish(channel string, deliver func(sessionID string)) int {
	subs := h.Subscribers(channel)
	for _, id := range subs {
		deliver(id)
	}
	return len(subs)
}
