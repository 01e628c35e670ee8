// The reactor: spec.md §5's single-threaded cooperative model, mirroring
// marselester-rascaldb's actor-loop (db.run) serialization - one goroutine
// owns every shard mutation and read, everything else only does socket
// I/O and hands work to this goroutine through a channel.
package main

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/foxbatdb/foxbatdb/internal/engine"
	"github.com/foxbatdb/foxbatdb/internal/keyindex"
	"github.com/foxbatdb/foxbatdb/internal/shard"
	"github.com/foxbatdb/foxbatdb/internal/txn"
	"github.com/foxbatdb/foxbatdb/pkg/errors"
)

// job is one unit of work awaiting execution on the reactor goroutine:
// either a parsed command (args set, reply receives its result) or an
// arbitrary cleanup thunk (fn set) that needs the same single-writer
// serialization as command execution, e.g. session teardown.
type job struct {
	sess  *Session
	args  []string
	reply chan result
	fn    func()
}

type result struct {
	value any
	err   error
}

// Runtime is the reactor: the engine plus every piece of state needed to
// serialize command execution and deliver pub/sub pushes.
type Runtime struct {
	eng *engine.Engine
	log *zap.SugaredLogger

	jobs chan job

	mu       sync.Mutex
	sessions map[string]*Session // for pub/sub delivery by session ID
}

// NewRuntime builds a Runtime bound to eng and starts its reactor loop.
func NewRuntime(eng *engine.Engine, log *zap.SugaredLogger) *Runtime {
	rt := &Runtime{
		eng:      eng,
		log:      log,
		jobs:     make(chan job, 256),
		sessions: make(map[string]*Session),
	}
	go rt.loop()
	return rt
}

func (rt *Runtime) loop() {
	for j := range rt.jobs {
		if j.fn != nil {
			j.fn()
			continue
		}
		value, err := rt.handle(j.sess, j.args)
		j.reply <- result{value: value, err: err}
	}
}

// Submit enqueues a parsed command and blocks until the reactor has
// executed it, returning its reply value or error.
func (rt *Runtime) Submit(sess *Session, args []string) (any, error) {
	reply := make(chan result, 1)
	rt.jobs <- job{sess: sess, args: args, reply: reply}
	r := <-reply
	return r.value, r.err
}

// registerSession makes sess reachable for pub/sub delivery.
func (rt *Runtime) registerSession(sess *Session) {
	rt.mu.Lock()
	rt.sessions[sess.id] = sess
	rt.mu.Unlock()
}

// unregisterSession removes sess from the delivery table and clears its
// watches/subscriptions. Safe to call from any goroutine; the shard/tx
// cleanup itself still runs on the reactor to keep §5's single-writer
// invariant.
func (rt *Runtime) unregisterSession(sess *Session) {
	rt.mu.Lock()
	delete(rt.sessions, sess.id)
	rt.mu.Unlock()

	done := make(chan struct{})
	rt.jobs <- job{fn: func() {
		rt.eng.CloseSession(sess.engSess)
		for _, ch := range sess.subscriptions {
			rt.eng.PubSub().Unsubscribe(ch, sess.id)
		}
		close(done)
	}}
	<-done
}

// deliver pushes a pub/sub message to sessionID's connection, if it is
// still registered.
func (rt *Runtime) deliver(sessionID, channel, msg string) {
	rt.mu.Lock()
	sess, ok := rt.sessions[sessionID]
	rt.mu.Unlock()
	if !ok {
		return
	}
	sess.pushMessage(channel, msg)
}

// shardFor resolves sess's active database shard.
func (rt *Runtime) shardFor(sess *Session) (*shard.Shard, error) {
	sh, ok := rt.eng.ByIndex(sess.engSess.DBIdx)
	if !ok {
		return nil, errors.NewDBIdxOutOfRangeError(int(sess.engSess.DBIdx), rt.eng.DBMaxNum())
	}
	return sh, nil
}

// replay executes one command from an operation-log file directly, used
// by LOAD. It must be called from the reactor goroutine, which is always
// true for calls originating from cmdLoad.
func (rt *Runtime) replay(sess *Session, args []string) (any, error) {
	return rt.dispatch(sess, args)
}

// handle runs one command to completion: arity validation, transaction
// routing (queue vs execute), read-only enforcement for writes, and
// operation-log bookkeeping.
func (rt *Runtime) handle(sess *Session, args []string) (any, error) {
	if len(args) == 0 {
		return nil, errors.NewSyntaxError("empty command")
	}
	name := strings.ToUpper(args[0])
	spec, ok := dispatchTable[name]
	if !ok {
		return nil, errors.NewCommandNotFoundError(name)
	}
	if len(args) < spec.minArgc || len(args) > spec.maxArgc {
		return nil, errors.NewArgNumbersError(name)
	}

	tx := sess.engSess.Tx()
	if tx.Active() {
		switch name {
		case "EXEC":
			return cmdExec(rt, sess, args)
		case "DISCARD":
			return cmdDiscard(rt, sess, args)
		default:
			if !spec.queueable {
				return nil, errors.NewInvalidTxCmdError(name)
			}
			return rt.enqueue(sess, name, spec, args)
		}
	}

	return rt.execNow(sess, name, spec, args)
}

// dispatch runs a command's handler directly, bypassing transaction
// queueing - used by replay, where every command is already known to be a
// plain write outside any MULTI context.
func (rt *Runtime) dispatch(sess *Session, args []string) (any, error) {
	name := strings.ToUpper(args[0])
	spec, ok := dispatchTable[name]
	if !ok {
		return nil, errors.NewCommandNotFoundError(name)
	}
	return rt.execNow(sess, name, spec, args)
}

func (rt *Runtime) execNow(sess *Session, name string, spec commandSpec, args []string) (any, error) {
	if spec.isWrite {
		if err := rt.eng.RequireWritable(); err != nil {
			return nil, err
		}
	}

	reply, err := spec.handler(rt, sess, args)
	if spec.isWrite {
		if err == nil {
			rt.eng.AppendOpLog(args)
		}
		rt.eng.CheckMemoryPressure()
	}
	return reply, err
}

// enqueue appends a write/read command to the session's open transaction
// instead of running it immediately (§4.I). The pre-image lookup needed
// for the undo log is resolved against the session's *current* shard at
// enqueue time.
func (rt *Runtime) enqueue(sess *Session, name string, spec commandSpec, args []string) (any, error) {
	key := ""
	if len(args) > 1 {
		key = args[1]
	}

	qc := txn.QueuedCommand{
		Name:    name,
		IsWrite: spec.isWrite,
		Key:     key,
		Exec: func() (any, error) {
			reply, err := spec.handler(rt, sess, args)
			if err == nil && spec.isWrite {
				sess.pendingRaw = append(sess.pendingRaw, args)
			}
			return reply, err
		},
	}

	lookup := func(k string) (*keyindex.Locator, bool) {
		sh, err := rt.shardFor(sess)
		if err != nil {
			return nil, false
		}
		return sh.Index().Get(k)
	}

	if err := sess.engSess.Tx().Enqueue(qc, lookup); err != nil {
		return nil, err
	}
	return simpleStatus("QUEUED"), nil
}
