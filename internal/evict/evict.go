// Package evict implements the memory-bounded eviction policy (§4.F): a
// tagged-variant choice between no-op eviction and LRU, selected by
// configuration (maxMemoryPolicy).
//
// Grounded on original_source/src/core/memory.h (MaxMemoryPolicyAdapter /
// NoevictionAdapter / LRUAdapter - the Put/Del/Contains/Get/RemoveItem/
// IsEmpty vtable is carried over in spirit as the Policy interface) and
// §9's explicit instruction to model this as a tagged variant rather than
// a virtual base.
package evict

import (
	"math"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Policy is the eviction adapter every maxMemoryPolicy variant implements.
// Touch is called on every read or write access to a key; Remove on every
// delete; Evict is invoked by the allocation-failure hook (§5) to reclaim
// exactly one candidate key at a time.
type Policy interface {
	Touch(key string)
	Remove(key string)
	Evict() (key string, ok bool)
	IsEmpty() bool
}

// NoEviction never evicts; writes that exceed memory under this policy
// surface MemoryOut to the caller instead (§4.F).
type NoEviction struct{}

func (NoEviction) Touch(string)          {}
func (NoEviction) Remove(string)         {}
func (NoEviction) Evict() (string, bool) { return "", false }
func (NoEviction) IsEmpty() bool         { return true }

// LRU maintains recency order over the shard's keys via
// github.com/hashicorp/golang-lru/v2, used purely as an ordered structure:
// its capacity is set far beyond any realistic key count so Add never
// auto-evicts - eviction only ever happens through an explicit Evict()
// call driven by the allocation-failure hook, matching §4.F's "one key at
// a time" contract.
type LRU struct {
	cache *lru.Cache[string, struct{}]
}

// NewLRU constructs an LRU eviction policy with an effectively unbounded
// backing cache.
func NewLRU() *LRU {
	c, _ := lru.New[string, struct{}](math.MaxInt32)
	return &LRU{cache: c}
}

// Touch moves key to the most-recently-used end, inserting it if absent.
func (l *LRU) Touch(key string) {
	l.cache.Add(key, struct{}{})
}

// Remove drops key from LRU tracking without affecting the key index.
func (l *LRU) Remove(key string) {
	l.cache.Remove(key)
}

// Evict removes and returns the least-recently-used key, if any.
func (l *LRU) Evict() (string, bool) {
	key, _, ok := l.cache.RemoveOldest()
	return key, ok
}

// IsEmpty reports whether there are no eviction candidates left.
func (l *LRU) IsEmpty() bool {
	return l.cache.Len() == 0
}
