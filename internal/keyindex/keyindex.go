// Package keyindex implements the ordered key index (§4.D): a string-keyed
// map from key to the locator of its latest on-disk value, supporting point
// lookup, prefix range iteration, and full iteration in lexicographic order.
//
// Grounded on AKJUS-bsc-erigon's dependency on github.com/google/btree (an
// ordered in-memory BTree is exactly the structure it uses for ordered key
// ranges) chosen over the teacher's bare map[string]*RecordPointer
// specifically because §4.D requires ordered prefix iteration, which a hash
// map cannot give.
package keyindex

import (
	"sync"
	"time"

	"github.com/google/btree"
)

// Never is the expireMs sentinel meaning "no TTL".
const Never int64 = -1

// Locator is the in-memory pointer to a key's latest DATA record (§3).
type Locator struct {
	Segment  uint64    // owning segment ID
	Offset   int64     // byte offset of the record header within that segment
	Created  time.Time // monotonic reading taken at insertion, used for TTL
	ExpireMs int64     // milliseconds past Created after which this entry expires, or Never
}

// Expired reports whether the locator's TTL has elapsed as of now.
//
// Merge resets Created to the time of the copy rather than preserving the
// original creation instant (§4.E "merge preserves value payload but
// resets creation time to now"); DESIGN.md records this as the accepted
// approximation for the open question in §9.
func (l *Locator) Expired(now time.Time) bool {
	if l.ExpireMs == Never {
		return false
	}
	return now.Sub(l.Created) >= time.Duration(l.ExpireMs)*time.Millisecond
}

type entry struct {
	key     string
	locator *Locator
}

func less(a, b entry) bool { return a.key < b.key }

// KV is a key/locator pair returned by range iteration.
type KV struct {
	Key     string
	Locator *Locator
}

// Index is the ordered, concurrency-safe key index for one database shard.
type Index struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[entry]
}

// New returns an empty Index.
func New() *Index {
	return &Index{tree: btree.NewG(32, less)}
}

// Put installs or overwrites the locator for key.
func (idx *Index) Put(key string, loc *Locator) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.tree.ReplaceOrInsert(entry{key: key, locator: loc})
}

// Get returns the locator for key, if present.
func (idx *Index) Get(key string) (*Locator, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	e, ok := idx.tree.Get(entry{key: key})
	if !ok {
		return nil, false
	}
	return e.locator, true
}

// Delete removes key from the index, reporting whether it was present.
func (idx *Index) Delete(key string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	_, ok := idx.tree.Delete(entry{key: key})
	return ok
}

// Contains reports whether key is present.
func (idx *Index) Contains(key string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.tree.Get(entry{key: key})
	return ok
}

// Len returns the number of keys currently indexed.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.tree.Len()
}

// Prefix returns every (key, locator) pair whose key starts with prefix,
// in lexicographic order.
func (idx *Index) Prefix(prefix string) []KV {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var out []KV
	idx.tree.AscendGreaterOrEqual(entry{key: prefix}, func(e entry) bool {
		if len(e.key) < len(prefix) || e.key[:len(prefix)] != prefix {
			return false
		}
		out = append(out, KV{Key: e.key, Locator: e.locator})
		return true
	})
	return out
}

// All returns every (key, locator) pair in lexicographic order.
func (idx *Index) All() []KV {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]KV, 0, idx.tree.Len())
	idx.tree.Ascend(func(e entry) bool {
		out = append(out, KV{Key: e.key, Locator: e.locator})
		return true
	})
	return out
}
