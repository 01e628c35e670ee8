// Command dispatch table (§9's "dynamic dispatch ... as a single immutable
// table keyed by string"), grounded on
// original_source/src/frontend/cmdmap.cc/h (Command::Validate's arg-count
// and option-exclusivity checks, generalized here into a per-entry
// min/max argc bound checked once before a handler ever runs).
package main

import (
	"strconv"

	"github.com/foxbatdb/foxbatdb/internal/shard"
	"github.com/foxbatdb/foxbatdb/pkg/errors"
)

// simpleStatus is a RESP simple-string reply ("+OK\r\n" and friends).
type simpleStatus string

// handlerFunc performs one command's side effect and returns its canonical
// reply value: simpleStatus, []byte (bulk, nil meaning the null bulk
// string), int64 (integer), [][]byte (array of bulk strings), or []any (a
// generic array, e.g. EXEC's per-command reply list).
type handlerFunc func(rt *Runtime, sess *Session, args []string) (any, error)

// commandSpec names one dispatch-table entry.
type commandSpec struct {
	minArgc   int // including the command name itself
	maxArgc   int
	isWrite   bool // accepted writes are appended to the operation log
	queueable bool // may be enqueued inside an open MULTI transaction
	handler   handlerFunc
}

const unboundedArgc = 1 << 30

var dispatchTable = map[string]commandSpec{
	"SET":     {3, unboundedArgc, true, true, cmdSet},
	"GET":     {2, 2, false, true, cmdGet},
	"DEL":     {2, 2, true, true, cmdDel},
	"PREFIX":  {2, 2, false, true, cmdPrefix},
	"MULTI":   {1, 1, false, false, cmdMulti},
	"EXEC":    {1, 1, false, false, cmdExec},
	"DISCARD": {1, 1, false, false, cmdDiscard},
	"WATCH":   {2, unboundedArgc, false, false, cmdWatch},
	"UNWATCH": {1, 1, false, false, cmdUnwatch},

	"SWITCHDB":  {2, 2, false, false, cmdSwitchDB},
	"SUBSCRIBE": {2, 2, false, false, cmdSubscribe},
	"PUBLISH":   {3, 3, false, false, cmdPublish},
	"LOAD":      {2, 2, false, false, cmdLoad},
	"MERGE":     {1, 1, false, false, cmdMerge},

	"INFO":          {1, unboundedArgc, false, false, cmdStub},
	"COMMAND":       {1, unboundedArgc, false, false, cmdStub},
	"SERVER":        {1, unboundedArgc, false, false, cmdStub},
	"CLEARREADONLY": {1, 1, false, false, cmdClearReadOnly},
}

// cmdSet implements SET key value [EX s|PX ms|KEEPTTL] [NX|XX] [GET].
func cmdSet(rt *Runtime, sess *Session, args []string) (any, error) {
	key, value := args[1], args[2]
	opts := shard.PutOptions{}

	// ttlOption names whichever of EX/PX/KEEPTTL has already been seen, so a
	// second one can be rejected here - opts.TTLMode only holds the most
	// recent value, so this conflict is undetectable once parsing is done.
	var ttlOption string

	for i := 3; i < len(args); i++ {
		switch args[i] {
		case "EX":
			if ttlOption != "" {
				return nil, errors.NewOptionExclusiveError("SET", ttlOption, "EX")
			}
			if i+1 >= len(args) {
				return nil, errors.NewArgNumbersError("SET")
			}
			i++
			n, err := strconv.ParseInt(args[i], 10, 64)
			if err != nil {
				return nil, errors.NewSyntaxError("EX expects an integer")
			}
			opts.TTLMode, opts.TTLValue = shard.TTLSeconds, n
			ttlOption = "EX"
		case "PX":
			if ttlOption != "" {
				return nil, errors.NewOptionExclusiveError("SET", ttlOption, "PX")
			}
			if i+1 >= len(args) {
				return nil, errors.NewArgNumbersError("SET")
			}
			i++
			n, err := strconv.ParseInt(args[i], 10, 64)
			if err != nil {
				return nil, errors.NewSyntaxError("PX expects an integer")
			}
			opts.TTLMode, opts.TTLValue = shard.TTLMillis, n
			ttlOption = "PX"
		case "KEEPTTL":
			if ttlOption != "" {
				return nil, errors.NewOptionExclusiveError("SET", ttlOption, "KEEPTTL")
			}
			opts.TTLMode = shard.TTLKeep
			ttlOption = "KEEPTTL"
		case "NX":
			opts.NX = true
		case "XX":
			opts.XX = true
		case "GET":
			opts.Get = true
		default:
			return nil, errors.NewSyntaxError("unknown SET option " + args[i])
		}
	}

	sh, err := rt.shardFor(sess)
	if err != nil {
		return nil, err
	}
	result, err := sh.Put([]byte(key), []byte(value), opts)
	if err != nil {
		return nil, err
	}
	if opts.Get {
		return result.PreImage, nil
	}
	return simpleStatus("OK"), nil
}

func cmdGet(rt *Runtime, sess *Session, args []string) (any, error) {
	sh, err := rt.shardFor(sess)
	if err != nil {
		return nil, err
	}
	v, err := sh.Get([]byte(args[1]))
	if err != nil {
		return nil, err
	}
	return v, nil
}

func cmdDel(rt *Runtime, sess *Session, args []string) (any, error) {
	sh, err := rt.shardFor(sess)
	if err != nil {
		return nil, err
	}
	ok, err := sh.Del([]byte(args[1]))
	if err != nil {
		return nil, err
	}
	if ok {
		return int64(1), nil
	}
	return int64(0), nil
}

func cmdPrefix(rt *Runtime, sess *Session, args []string) (any, error) {
	sh, err := rt.shardFor(sess)
	if err != nil {
		return nil, err
	}
	values, err := sh.Prefix([]byte(args[1]))
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(values))
	copy(out, values)
	return out, nil
}

func cmdMulti(rt *Runtime, sess *Session, args []string) (any, error) {
	if err := sess.engSess.Tx().Begin(); err != nil {
		return nil, err
	}
	sess.pendingRaw = nil
	return simpleStatus("OK"), nil
}

func cmdExec(rt *Runtime, sess *Session, args []string) (any, error) {
	results, err := sess.engSess.Tx().Exec(sess.engSess.TxHooks(rt.eng))
	if err != nil {
		sess.pendingRaw = nil
		return nil, err
	}
	for _, raw := range sess.pendingRaw {
		rt.eng.AppendOpLog(raw)
	}
	sess.pendingRaw = nil

	out := make([]any, len(results))
	for i, r := range results {
		out[i] = r.Reply
	}
	return out, nil
}

func cmdDiscard(rt *Runtime, sess *Session, args []string) (any, error) {
	if err := sess.engSess.Tx().Discard(); err != nil {
		return nil, err
	}
	sess.pendingRaw = nil
	return simpleStatus("OK"), nil
}

func cmdWatch(rt *Runtime, sess *Session, args []string) (any, error) {
	for _, key := range args[1:] {
		sess.engSess.Watch(rt.eng, key)
	}
	return simpleStatus("OK"), nil
}

func cmdUnwatch(rt *Runtime, sess *Session, args []string) (any, error) {
	sess.engSess.UnwatchAll(rt.eng)
	return simpleStatus("OK"), nil
}

func cmdSwitchDB(rt *Runtime, sess *Session, args []string) (any, error) {
	idx, err := strconv.Atoi(args[1])
	if err != nil {
		return nil, errors.NewSyntaxError("SWITCHDB expects an integer")
	}
	if err := sess.engSess.SwitchDB(rt.eng, idx); err != nil {
		return nil, err
	}
	return simpleStatus("OK"), nil
}

func cmdSubscribe(rt *Runtime, sess *Session, args []string) (any, error) {
	channel := args[1]
	rt.eng.PubSub().Subscribe(channel, sess.id)
	sess.subscriptions = append(sess.subscriptions, channel)
	return []any{simpleStatus("subscribe"), []byte(channel), int64(len(sess.subscriptions))}, nil
}

func cmdPublish(rt *Runtime, sess *Session, args []string) (any, error) {
	channel, msg := args[1], args[2]
	n := rt.eng.PubSub().Publish(channel, func(sessionID string) {
		rt.deliver(sessionID, channel, msg)
	})
	return int64(n), nil
}

func cmdLoad(rt *Runtime, sess *Session, args []string) (any, error) {
	n, err := rt.eng.LoadOpLog(args[1], func(cmdArgs []string) error {
		if len(cmdArgs) == 0 {
			return nil
		}
		_, err := rt.replay(sess, cmdArgs)
		return err
	})
	if err != nil {
		return nil, err
	}
	return int64(n), nil
}

func cmdMerge(rt *Runtime, sess *Session, args []string) (any, error) {
	if err := rt.eng.Merge(); err != nil {
		return nil, err
	}
	return simpleStatus("OK"), nil
}

func cmdStub(rt *Runtime, sess *Session, args []string) (any, error) {
	return simpleStatus("OK"), nil
}

func cmdClearReadOnly(rt *Runtime, sess *Session, args []string) (any, error) {
	rt.eng.SetReadOnly(false)
	return simpleStatus("OK"), nil
}
