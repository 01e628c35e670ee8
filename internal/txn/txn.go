// Package txn implements the transaction engine (§4.I): a per-session
// queue of parsed commands, an undo log of pre-image locators, and the
// NONE/BEGIN/APPENDING state machine driving MULTI/EXEC/DISCARD and watch
// invalidation. EXEC and DISCARD are operations (Exec, Discard) that end
// the transaction and return the state to NONE, not states of their own.
//
// Grounded on original_source/src/core/transaction.h (the queue/Exec
// shape) and the teacher's atomic-state idioms (internal/engine.Engine's
// atomic.Bool CAS), adapted into an explicit state enum per §4.I's table
// rather than a boolean.
//
// §4.I's BEGIN state is a transient "falls through on same command" row in
// the spec's own table - functionally indistinguishable from APPENDING
// for any command after MULTI - so this package merges the two into a
// single Active() predicate; StateBegin is kept only for symmetry with
// the spec's table and is never observably different from StateAppending.
package txn

import (
	"github.com/foxbatdb/foxbatdb/internal/keyindex"
	"github.com/foxbatdb/foxbatdb/pkg/errors"
)

// State is a session's transaction lifecycle position (§3 Transaction
// state, §4.I).
type State int

const (
	StateNone State = iota
	StateBegin
	StateAppending
)

// UndoEntry records the pre-image locator for one write command queued
// inside a transaction, captured at enqueue time per §4.I.
type UndoEntry struct {
	Key      string
	PreImage *keyindex.Locator // nil if the key did not exist before
	Existed  bool
}

// QueuedCommand is one command accepted into the transaction's queue. Exec
// performs the command's actual side effect when the transaction reaches
// EXEC. Arity and dispatch-table validation both happen eagerly, before a
// command is ever enqueued (cmd/foxbatdb's reactor rejects unknown names
// and wrong arity on the way in), so a queued command is always one Exec
// can run.
type QueuedCommand struct {
	Name    string
	IsWrite bool
	Key     string
	Exec    func() (any, error)
}

// CommandResult pairs a queued command's name with the reply it produced.
type CommandResult struct {
	Name  string
	Reply any
}

// Hooks are the disk-facing operations Exec needs from its owning shard:
// appending the BEGIN/FAILED/FINISH marker records (§3) and rolling back
// the undo log by reinstalling pre-image locators (§4.I Rollback).
type Hooks struct {
	AppendBegin  func(count uint64) error
	AppendFinish func() error
	AppendFailed func() error
	Rollback     func(undo []UndoEntry)
}

// Tx is one session's transaction state.
type Tx struct {
	state  State
	queue  []QueuedCommand
	undo   []UndoEntry
	failed bool
}

// New returns a Tx in StateNone.
func New() *Tx { return &Tx{} }

// Active reports whether MULTI has opened a transaction that has not yet
// reached EXEC or DISCARD.
func (t *Tx) Active() bool { return t.state != StateNone }

// Failed reports whether a watched key has been modified since WATCH,
// invalidating the pending transaction (§4.I Watch invalidation).
func (t *Tx) Failed() bool { return t.failed }

// Begin opens a transaction (MULTI). Nesting is rejected (§4.I table,
// NONE row for EXEC/DISCARD and the AlreadyInTx taxonomy entry).
func (t *Tx) Begin() error {
	if t.Active() {
		return errors.NewAlreadyInTxError()
	}
	t.state = StateAppending
	t.queue = nil
	t.undo = nil
	t.failed = false
	return nil
}

// Discard closes the transaction without executing anything queued.
func (t *Tx) Discard() error {
	if !t.Active() {
		return errors.NewNotInTxError("DISCARD")
	}
	t.reset()
	return nil
}

func (t *Tx) reset() {
	t.state = StateNone
	t.queue = nil
	t.undo = nil
	t.failed = false
}

// MarkFailed sets the watched-key-modified flag; called by a shard's
// notifyWatchers callback when another session writes a key this
// session's transaction is watching.
func (t *Tx) MarkFailed() {
	if t.Active() {
		t.failed = true
	}
}

// Enqueue appends cmd to the pending queue. For write commands, lookup is
// called to capture the command's pre-image locator into the undo log
// before the command ever runs (§4.I "enqueue; if write-cmd also append
// an undo entry").
func (t *Tx) Enqueue(cmd QueuedCommand, lookup func(key string) (*keyindex.Locator, bool)) error {
	if !t.Active() {
		return errors.NewNotInTxError(cmd.Name)
	}
	t.queue = append(t.queue, cmd)
	if cmd.IsWrite && cmd.Key != "" {
		loc, existed := lookup(cmd.Key)
		t.undo = append(t.undo, UndoEntry{Key: cmd.Key, PreImage: loc, Existed: existed})
	}
	return nil
}

// QueueLen reports the number of commands currently queued.
func (t *Tx) QueueLen() int { return len(t.queue) }

// Exec executes EXEC (§4.I): appends a BEGIN marker, runs every queued
// command in order, and appends FINISH on success or FAILED plus a
// rollback on the first failure.
//
// An empty queue clears the transaction and reports success without
// writing any marker records, per §4.I step 1.
func (t *Tx) Exec(hooks Hooks) ([]CommandResult, error) {
	if !t.Active() {
		return nil, errors.NewNotInTxError("EXEC")
	}
	defer t.reset()

	if len(t.queue) == 0 {
		return nil, nil
	}

	if err := hooks.AppendBegin(uint64(len(t.queue))); err != nil {
		return nil, err
	}

	results := make([]CommandResult, 0, len(t.queue))
	for _, cmd := range t.queue {
		if t.failed {
			hooks.AppendFailed()
			hooks.Rollback(t.undo)
			return nil, errors.NewWatchedKeyModifiedError(cmd.Key)
		}
		reply, err := cmd.Exec()
		if err != nil {
			hooks.AppendFailed()
			hooks.Rollback(t.undo)
			return nil, errors.NewTxErrorOf(err)
		}
		results = append(results, CommandResult{Name: cmd.Name, Reply: reply})
	}

	if err := hooks.AppendFinish(); err != nil {
		return nil, err
	}
	return results, nil
}
