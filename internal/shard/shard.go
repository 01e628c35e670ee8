// Package shard implements the database shard (§4.E): one logical database
// binding a key index, an eviction policy, and a watch table, exposing the
// client-visible PUT/GET/DEL/PREFIX/watch operations.
//
// Grounded on original_source/src/core/db.h (Database::StrSet/StrGet/Del/
// AddWatch/NotifyWatchedClientSession) for option semantics and watch
// invalidation, and the teacher's internal/engine.Engine for the
// constructor-injection shape.
package shard

import (
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"go.uber.org/zap"

	"github.com/foxbatdb/foxbatdb/internal/evict"
	"github.com/foxbatdb/foxbatdb/internal/keyindex"
	"github.com/foxbatdb/foxbatdb/internal/record"
	"github.com/foxbatdb/foxbatdb/internal/segpool"
	"github.com/foxbatdb/foxbatdb/pkg/errors"
)

// TTLMode distinguishes an EX/PX request from a plain SET.
type TTLMode int

const (
	TTLNone TTLMode = iota
	TTLSeconds
	TTLMillis
	TTLKeep
)

// PutOptions models SET's option set (§4.E). TTLMode already collapses
// EX/PX/KEEPTTL into a single value, so their mutual exclusivity must be
// checked by the parser while it still sees each flag individually
// (cmd/foxbatdb's cmdSet); NX/XX exclusivity is checked here in Validate
// because both survive parsing as independent booleans.
type PutOptions struct {
	TTLMode  TTLMode
	TTLValue int64 // seconds for TTLSeconds, milliseconds for TTLMillis
	NX       bool
	XX       bool
	Get      bool
}

// Validate enforces the NX/XX exclusivity rule of §4.E before any side
// effect is allowed to happen.
func (o PutOptions) Validate(command string) error {
	if o.NX && o.XX {
		return errors.NewOptionExclusiveError(command, "NX", "XX")
	}
	return nil
}

// PutResult is the outcome of a successful Put.
type PutResult struct {
	// PreImage holds the pre-existing value when GET was requested; nil
	// (distinct from an empty slice) means the key was absent, which the
	// wire layer must encode as the RESP null bulk string (§9 open
	// question #2, resolved explicitly in favor of $-1\r\n).
	PreImage []byte
}

// Shard binds one key index, one eviction policy, and one watch table to a
// single database index, and serializes writes into the shared segment
// pool.
type Shard struct {
	idx           uint8
	dbMaxNum      int
	keyMaxBytes   uint64
	valMaxBytes   uint64
	index         *keyindex.Index
	evict         evict.Policy
	pool          *segpool.Pool
	log           *zap.SugaredLogger
	watch         map[string]mapset.Set[string] // key -> watching session IDs
	onKeyModified func(sessionID, key string)    // notifies a session's tx that a watched key changed
}

// Config holds the parameters needed to construct a Shard.
type Config struct {
	Index         uint8
	DBMaxNum      int
	KeyMaxBytes   uint64
	ValMaxBytes   uint64
	Policy        evict.Policy
	Pool          *segpool.Pool
	Logger        *zap.SugaredLogger
	OnKeyModified func(sessionID, key string)
}

// New constructs a Shard.
func New(cfg Config) *Shard {
	return &Shard{
		idx:           cfg.Index,
		dbMaxNum:      cfg.DBMaxNum,
		keyMaxBytes:   cfg.KeyMaxBytes,
		valMaxBytes:   cfg.ValMaxBytes,
		index:         keyindex.New(),
		evict:         cfg.Policy,
		pool:          cfg.Pool,
		log:           cfg.Logger,
		watch:         make(map[string]mapset.Set[string]),
		onKeyModified: cfg.OnKeyModified,
	}
}

// Index exposes the underlying key index, used by recovery and merge to
// install/redirect locators directly.
func (s *Shard) Index() *keyindex.Index { return s.index }

// Evict exposes the eviction policy, used by the allocation-failure hook
// (engine.CheckMemoryPressure) to pick keys to drop.
func (s *Shard) Evict() evict.Policy { return s.evict }

// DBIdx returns the shard's database index.
func (s *Shard) DBIdx() uint8 { return s.idx }

func (s *Shard) nowUs() int64 { return time.Now().UnixMicro() }

// ttlMillis resolves a PutOptions TTL selection plus an optional existing
// locator (for KEEPTTL) into an expireMs value: milliseconds after the
// record's creation time, or Never.
func ttlMillis(opts PutOptions, existing *keyindex.Locator) int64 {
	switch opts.TTLMode {
	case TTLSeconds:
		return opts.TTLValue * 1000
	case TTLMillis:
		return opts.TTLValue
	case TTLKeep:
		if existing != nil {
			return existing.ExpireMs
		}
		return keyindex.Never
	default:
		return keyindex.Never
	}
}

// Put implements SET (§4.E). Options are validated before any mutation;
// NX/XX are checked against index presence; KEEPTTL adopts the existing
// locator's TTL. On success the key's watchers are notified, a DATA record
// is appended to the pool, the index is updated with a fresh locator, and
// the eviction policy is touched.
func (s *Shard) Put(key, value []byte, opts PutOptions) (*PutResult, error) {
	if err := opts.Validate("SET"); err != nil {
		return nil, err
	}
	if uint64(len(key)) > s.keyMaxBytes {
		return nil, errors.NewSyntaxError("key exceeds keyMaxBytes")
	}
	if uint64(len(value)) > s.valMaxBytes {
		return nil, errors.NewSyntaxError("value exceeds valMaxBytes")
	}

	existing, found := s.index.Get(string(key))
	if opts.NX && found {
		return nil, errors.NewKeyAlreadyExistsError(string(key))
	}
	if opts.XX && !found {
		return nil, errors.NewKeyNotFoundEngineError(string(key))
	}

	result := &PutResult{}
	if opts.Get {
		if found && !existing.Expired(time.Now()) {
			v, err := s.readValue(existing)
			if err == nil {
				result.PreImage = v
			}
		}
	}

	rec := record.EncodeData(s.idx, key, value, s.nowUs())
	segID, offset, err := s.pool.Append(rec)
	if err != nil {
		return nil, err
	}

	loc := &keyindex.Locator{
		Segment:  segID,
		Offset:   offset,
		Created:  time.Now(),
		ExpireMs: ttlMillis(opts, existing),
	}
	s.index.Put(string(key), loc)
	s.evict.Touch(string(key))
	s.notifyWatchers(string(key))

	return result, nil
}

// readValue re-reads a locator's value payload from its owning segment.
func (s *Shard) readValue(loc *keyindex.Locator) ([]byte, error) {
	seg, ok := s.pool.Get(loc.Segment)
	if !ok {
		// The index still points at a segment the pool has closed: a
		// dangling locator left behind by a merge or recovery bug, not a
		// condition any client request can trigger.
		return nil, errors.NewSegmentIDError(loc.Segment, "")
	}
	rec, _, err := record.Decode(seg, loc.Offset, s.dbMaxNum, s.keyMaxBytes, s.valMaxBytes)
	if err != nil {
		// Disk read failures during GET are reported as not-found (§7).
		return nil, err
	}
	return rec.Value, nil
}

// lookup resolves a key to its live value, synthesizing a lazy delete if
// the locator has expired (§4.E Expiration).
func (s *Shard) lookup(key string) ([]byte, bool, error) {
	loc, ok := s.index.Get(key)
	if !ok {
		return nil, false, nil
	}
	if loc.Expired(time.Now()) {
		if err := s.expire(key); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}
	v, err := s.readValue(loc)
	if err != nil {
		return nil, false, nil
	}
	return v, true, nil
}

// expire synthesizes a delete for a lazily-discovered expired key: append
// a tombstone, remove from the index, touch the eviction policy.
func (s *Shard) expire(key string) error {
	rec := record.EncodeData(s.idx, []byte(key), nil, s.nowUs())
	if _, _, err := s.pool.Append(rec); err != nil {
		return err
	}
	s.index.Delete(key)
	s.evict.Remove(key)
	return nil
}

// Get implements GET (§4.E / §8 S2): returns KeyNotFound for both an
// absent key and an expired one (lazily deleted on the way out).
func (s *Shard) Get(key []byte) ([]byte, error) {
	v, found, err := s.lookup(string(key))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.NewKeyNotFoundEngineError(string(key))
	}
	s.evict.Touch(string(key))
	return v, nil
}

// Del implements DEL (§4.E): notifies watchers, appends a tombstone,
// removes the index entry. Returns false without effect if key was absent.
func (s *Shard) Del(key []byte) (bool, error) {
	if _, ok := s.index.Get(string(key)); !ok {
		return false, nil
	}
	s.notifyWatchers(string(key))
	if err := s.expire(string(key)); err != nil {
		return false, err
	}
	return true, nil
}

// Prefix implements the PREFIX command (§4.E / SPEC_FULL §4.4): every live
// value whose key starts with prefix, in lexicographic order. Tombstones
// and expired entries are skipped rather than triggering lazy deletes, to
// keep a read-only scan free of side effects beyond normal reads.
func (s *Shard) Prefix(prefix []byte) ([][]byte, error) {
	matches := s.index.Prefix(string(prefix))
	out := make([][]byte, 0, len(matches))
	now := time.Now()
	for _, kv := range matches {
		if kv.Locator.Expired(now) {
			continue
		}
		v, err := s.readValue(kv.Locator)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// AddWatch registers sessionID as watching key. Per §4.E, watching an
// absent key is silently ignored.
func (s *Shard) AddWatch(key, sessionID string) {
	if !s.index.Contains(key) {
		return
	}
	set, ok := s.watch[key]
	if !ok {
		set = mapset.NewSet[string]()
		s.watch[key] = set
	}
	set.Add(sessionID)
}

// DelWatch removes sessionID from key's watcher set.
func (s *Shard) DelWatch(key, sessionID string) {
	set, ok := s.watch[key]
	if !ok {
		return
	}
	set.Remove(sessionID)
	if set.Cardinality() == 0 {
		delete(s.watch, key)
	}
}

// ClearSessionWatches removes sessionID from every key it was watching.
func (s *Shard) ClearSessionWatches(sessionID string, keys []string) {
	for _, key := range keys {
		s.DelWatch(key, sessionID)
	}
}

// notifyWatchers marks every session watching key as failed, via the
// injected onKeyModified callback; the watch table itself only stores weak
// session-ID references (§9), never an owning pointer into session/tx
// state, to keep this package free of a shard -> txn import cycle.
func (s *Shard) notifyWatchers(key string) {
	set, ok := s.watch[key]
	if !ok || s.onKeyModified == nil {
		return
	}
	for sessionID := range set.Iter() {
		s.onKeyModified(sessionID, key)
	}
}

// InstallLocator is used only by recovery (§4.G) and transaction rollback
// (§4.I) to set
// an index entry directly, bypassing the write path (no new record is
// appended - the record already exists on disk).
func (s *Shard) InstallLocator(key string, loc *keyindex.Locator) {
	s.index.Put(key, loc)
	s.evict.Touch(key)
}

// RemoveLocator is used only by recovery, to replay a tombstone, and by
// transaction rollback, to drop a key the transaction created, without
// appending a new record.
func (s *Shard) RemoveLocator(key string) {
	s.index.Delete(key)
	s.evict.Remove(key)
}
