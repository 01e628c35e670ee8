// Package engine provides the top-level coordinator for FoxbatDB: it owns
// the segment pool, every database shard, the pub/sub hub, and the
// operation log, and binds them together the way the original's
// DatabaseManager does.
//
// Grounded on the teacher's internal/engine.Engine (constructor-injection
// shape, atomic.Bool lifecycle CAS) generalized from a single index+storage
// pair into the full shard/pool/pubsub/oplog wiring SPEC_FULL.md §4
// requires, plus original_source/src/core/engine.h|.cc (DatabaseManager's
// shard table and allocation-pressure hook) for the multi-shard and
// read-only-mode behavior.
package engine

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/foxbatdb/foxbatdb/internal/evict"
	"github.com/foxbatdb/foxbatdb/internal/merge"
	"github.com/foxbatdb/foxbatdb/internal/pubsub"
	"github.com/foxbatdb/foxbatdb/internal/recovery"
	"github.com/foxbatdb/foxbatdb/internal/record"
	"github.com/foxbatdb/foxbatdb/internal/segpool"
	"github.com/foxbatdb/foxbatdb/internal/shard"
	"github.com/foxbatdb/foxbatdb/internal/txn"
	"github.com/foxbatdb/foxbatdb/pkg/errors"
	"github.com/foxbatdb/foxbatdb/pkg/oplog"
	"github.com/foxbatdb/foxbatdb/pkg/options"
)

// ErrEngineClosed is returned when attempting to perform operations on a
// closed engine.
var ErrEngineClosed = errors.NewEngineError(nil, errors.ErrorCodeInternal, "operation failed: cannot access closed engine")

// Engine is the central coordinator: it owns the segment pool, every
// database shard, the pub/sub hub, and the operation log, and serializes
// allocation-pressure handling and mode transitions across all of them.
type Engine struct {
	options *options.Options
	log     *zap.SugaredLogger
	closed  atomic.Bool

	pool   *segpool.Pool
	shards []*shard.Shard // indexed by dbIdx
	hub    *pubsub.Hub
	oplog  *oplog.Writer

	readOnly atomic.Bool

	sessMu   sync.Mutex
	sessions map[string]*txn.Tx
}

// Config holds the parameters needed to construct an Engine.
type Config struct {
	Options *options.Options
	Logger  *zap.SugaredLogger
}

// New opens the segment pool, builds every shard, runs startup recovery,
// and opens the operation log, in that order. The index subsystem is
// rebuilt before anything is considered open for writes (§4.G).
func New(ctx context.Context, cfg *Config) (*Engine, error) {
	opts := cfg.Options
	log := cfg.Logger

	pool, err := segpool.Open(opts.SegmentOptions.Directory, int64(opts.SegmentOptions.Size), log)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		options:  opts,
		log:      log,
		pool:     pool,
		hub:      pubsub.New(),
		shards:   make([]*shard.Shard, opts.DBMaxNum),
		sessions: make(map[string]*txn.Tx),
	}

	for i := 0; i < opts.DBMaxNum; i++ {
		e.shards[i] = shard.New(shard.Config{
			Index:         uint8(i),
			DBMaxNum:      opts.DBMaxNum,
			KeyMaxBytes:   opts.KeyMaxBytes,
			ValMaxBytes:   opts.ValMaxBytes,
			Policy:        newPolicy(opts.MaxMemoryPolicy),
			Pool:          pool,
			Logger:        log,
			OnKeyModified: e.notifySession,
		})
	}

	if err := recovery.Run(pool, shardsView{e}, opts.DBMaxNum, opts.KeyMaxBytes, opts.ValMaxBytes, log); err != nil {
		pool.Close()
		return nil, err
	}

	w, err := oplog.Open(opts.AOFLogFilePath, time.Duration(opts.AOFCronJobPeriodMs)*time.Millisecond, log)
	if err != nil {
		pool.Close()
		return nil, err
	}
	e.oplog = w

	log.Infow("engine started", "shards", opts.DBMaxNum, "port", opts.Port)
	return e, nil
}

func newPolicy(p options.MaxMemoryPolicy) evict.Policy {
	if p == options.PolicyAllKeysLRU {
		return evict.NewLRU()
	}
	return evict.NoEviction{}
}

// shardsView adapts Engine to the recovery.Shards and merge.Shards
// interfaces without exposing the shard slice directly.
type shardsView struct{ e *Engine }

func (v shardsView) ByIndex(dbIdx uint8) (*shard.Shard, bool) {
	return v.e.ByIndex(dbIdx)
}

func (v shardsView) All() []*shard.Shard { return v.e.All() }

// ByIndex returns the shard at dbIdx, if it exists.
func (e *Engine) ByIndex(dbIdx uint8) (*shard.Shard, bool) {
	if int(dbIdx) >= len(e.shards) {
		return nil, false
	}
	return e.shards[dbIdx], true
}

// All returns every shard, ordered by index.
func (e *Engine) All() []*shard.Shard { return e.shards }

// DBMaxNum reports the configured number of shards.
func (e *Engine) DBMaxNum() int { return len(e.shards) }

// IsReadOnly reports whether the engine is currently refusing writes after
// an unrecoverable allocation-pressure event (§5).
func (e *Engine) IsReadOnly() bool { return e.readOnly.Load() }

// SetReadOnly toggles read-only mode directly; used by the admin operation
// that manually clears it once an operator has freed resources (§5).
func (e *Engine) SetReadOnly(v bool) { e.readOnly.Store(v) }

// AppendOpLog records a write command's argument vector to the operation
// log, called once a write has been accepted (§3 Operation log).
func (e *Engine) AppendOpLog(args []string) {
	if e.oplog != nil {
		e.oplog.AppendCommand(args)
	}
}

// LoadOpLog replays every command recorded in the operation log at path,
// invoking apply for each one in file order (§6 item 3). This is an
// explicit admin operation, never part of storage-engine startup recovery.
func (e *Engine) LoadOpLog(path string, apply func(args []string) error) (int, error) {
	return oplog.Replay(path, apply)
}

// PubSub exposes the publish/subscribe hub.
func (e *Engine) PubSub() *pubsub.Hub { return e.hub }

// CheckMemoryPressure runs the allocation-pressure hook (§5): when
// MaxMemoryBytes is configured and current heap usage exceeds it, it asks
// each shard's eviction policy for one candidate at a time until usage
// falls back under the threshold or every shard reports empty, in which
// case the engine enters read-only mode. Call sites are write paths, since
// a process-wide malloc-failure hook has no portable Go equivalent; this
// is the idiomatic approximation documented in DESIGN.md.
func (e *Engine) CheckMemoryPressure() {
	if e.options.MaxMemoryBytes == 0 {
		return
	}

	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	if stats.HeapAlloc <= e.options.MaxMemoryBytes {
		e.readOnly.CompareAndSwap(true, false)
		return
	}

	for {
		evicted := false
		for _, sh := range e.shards {
			key, ok := sh.Evict().Evict()
			if !ok {
				continue
			}
			sh.Del([]byte(key))
			evicted = true
		}
		if !evicted {
			e.log.Warnw("allocation pressure persists with no eviction candidates, entering read-only mode")
			e.readOnly.Store(true)
			return
		}

		runtime.ReadMemStats(&stats)
		if stats.HeapAlloc <= e.options.MaxMemoryBytes {
			e.readOnly.CompareAndSwap(true, false)
			return
		}
	}
}

// RequireWritable returns MemoryOut if the engine is currently read-only.
func (e *Engine) RequireWritable() error {
	if e.readOnly.Load() {
		return errors.NewMemoryOutError()
	}
	return nil
}

// Merge runs one synchronous compaction pass (§4.H). It blocks the caller
// for its whole duration by design (§5).
func (e *Engine) Merge() error {
	return merge.Run(e.pool, shardsView{e}, e.options.SegmentOptions.Directory, len(e.shards), e.options.KeyMaxBytes, e.options.ValMaxBytes, e.log)
}

// Session tracks one connected client's transaction and watch state.
type Session struct {
	ID      string
	DBIdx   uint8
	tx      *txn.Tx
	watches []string
}

// NewSession registers a new session bound to database 0, the default
// active shard per §6.
func (e *Engine) NewSession(id string) *Session {
	tx := txn.New()
	e.sessMu.Lock()
	e.sessions[id] = tx
	e.sessMu.Unlock()
	return &Session{ID: id, DBIdx: 0, tx: tx}
}

// CloseSession clears every watch the session held and forgets its
// transaction state.
func (e *Engine) CloseSession(s *Session) {
	if sh, ok := e.ByIndex(s.DBIdx); ok {
		sh.ClearSessionWatches(s.ID, s.watches)
	}
	e.sessMu.Lock()
	delete(e.sessions, s.ID)
	e.sessMu.Unlock()
}

// notifySession is the watch-table callback wired into every shard: it
// marks the named session's transaction failed, if one is open (§4.I
// Watch invalidation).
func (e *Engine) notifySession(sessionID, _ string) {
	e.sessMu.Lock()
	tx, ok := e.sessions[sessionID]
	e.sessMu.Unlock()
	if ok {
		tx.MarkFailed()
	}
}

// Tx returns the session's transaction state machine.
func (s *Session) Tx() *txn.Tx { return s.tx }

// SwitchDB validates and changes the session's active database index
// (SWITCHDB, §6 item 2).
func (s *Session) SwitchDB(e *Engine, idx int) error {
	if idx < 0 || idx >= e.DBMaxNum() {
		return errors.NewDBIdxOutOfRangeError(idx, e.DBMaxNum())
	}
	s.DBIdx = uint8(idx)
	return nil
}

// Watch records that the session is now watching key on its active shard,
// for later WATCH invalidation, and remembers it locally so CloseSession
// can clean up.
func (s *Session) Watch(e *Engine, key string) {
	if sh, ok := e.ByIndex(s.DBIdx); ok {
		sh.AddWatch(key, s.ID)
		s.watches = append(s.watches, key)
	}
}

// UnwatchAll clears every key the session is currently watching (UNWATCH),
// without touching its transaction state.
func (s *Session) UnwatchAll(e *Engine) {
	if sh, ok := e.ByIndex(s.DBIdx); ok {
		sh.ClearSessionWatches(s.ID, s.watches)
	}
	s.watches = nil
}

// TxHooks builds the txn.Hooks bound to the session's active shard, used
// to drive EXEC's marker-record writes and rollback (§4.I).
func (s *Session) TxHooks(e *Engine) txn.Hooks {
	sh, _ := e.ByIndex(s.DBIdx)
	dbIdx := s.DBIdx
	return txn.Hooks{
		AppendBegin: func(count uint64) error {
			_, _, err := e.pool.Append(record.EncodeMarker(dbIdx, record.StateBegin, count, time.Now().UnixMicro()))
			return err
		},
		AppendFinish: func() error {
			_, _, err := e.pool.Append(record.EncodeMarker(dbIdx, record.StateFinish, 0, time.Now().UnixMicro()))
			return err
		},
		AppendFailed: func() error {
			_, _, err := e.pool.Append(record.EncodeMarker(dbIdx, record.StateFailed, 0, time.Now().UnixMicro()))
			return err
		},
		Rollback: func(undo []txn.UndoEntry) {
			for i := len(undo) - 1; i >= 0; i-- {
				entry := undo[i]
				if entry.Existed {
					sh.InstallLocator(entry.Key, entry.PreImage)
				} else {
					sh.RemoveLocator(entry.Key)
				}
			}
		},
	}
}

// Close gracefully shuts down the engine: it atomically transitions from
// open to closed (guarding against double-close, as the teacher's
// atomic.Bool CAS idiom does), then stops the operation log and closes
// every segment.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return ErrEngineClosed
	}
	if e.oplog != nil {
		if err := e.oplog.Close(); err != nil {
			e.log.Errorw("failed to close operation log", "error", err)
		}
	}
	return e.pool.Close()
}
