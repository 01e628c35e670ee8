// Package oplog implements the operation log (AOF) described in spec.md
// §3: every accepted write command is appended, RESP-encoded, to a
// configured file, flushed to disk on a periodic interval rather than after
// every write. Replay is not a storage-engine recovery path - the data-log
// segments are the source of truth - but is kept as an explicit admin
// operation for external replication, matching the original's intent.
//
// Grounded on original_source/src/log/oplog.h's OperationLog: a buffered
// queue of pending commands drained by a periodic flush. The original uses
// a hand-rolled lock-free single-producer/single-consumer ring buffer; Go's
// buffered channel is the idiomatic equivalent and is what the teacher
// reaches for whenever it needs a producer/consumer handoff, so the ring
// buffer is replaced with a buffered chan []string here rather than ported
// line for line.
package oplog

import (
	"bufio"
	"context"
	"os"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/foxbatdb/foxbatdb/pkg/errors"
)

const queueCapacity = 1024

// Writer appends RESP-encoded commands to the operation log and flushes
// them to disk on a fixed interval.
type Writer struct {
	log    *zap.SugaredLogger
	file   *os.File
	bw     *bufio.Writer
	mu     sync.Mutex
	queue  chan []string
	period time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// Open opens (creating if absent) the operation log at path and starts its
// background flush loop at the given period.
func Open(path string, period time.Duration, log *zap.SugaredLogger) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to open operation log").
			WithPath(path)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Writer{
		log:    log,
		file:   f,
		bw:     bufio.NewWriter(f),
		queue:  make(chan []string, queueCapacity),
		period: period,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go w.run(ctx)
	return w, nil
}

// AppendCommand enqueues a write command's argument vector for logging. It
// never blocks on disk I/O; the background loop owns flushing.
func (w *Writer) AppendCommand(args []string) {
	select {
	case w.queue <- args:
	default:
		w.log.Warnw("operation log queue full, dropping command", "command", args)
	}
}

func (w *Writer) run(ctx context.Context) {
	defer close(w.done)
	ticker := time.NewTicker(w.period)
	defer ticker.Stop()

	for {
		select {
		case args := <-w.queue:
			w.writeEncoded(args)
		case <-ticker.C:
			w.flush()
		case <-ctx.Done():
			w.drainAndFlush()
			return
		}
	}
}

func (w *Writer) drainAndFlush() {
	for {
		select {
		case args := <-w.queue:
			w.writeEncoded(args)
		default:
			w.flush()
			return
		}
	}
}

func (w *Writer) writeEncoded(args []string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.bw.WriteString("*" + strconv.Itoa(len(args)) + "\r\n")
	for _, a := range args {
		w.bw.WriteString("$" + strconv.Itoa(len(a)) + "\r\n")
		w.bw.WriteString(a)
		w.bw.WriteString("\r\n")
	}
}

// DumpToDisk flushes buffered bytes to the OS file buffer immediately.
func (w *Writer) DumpToDisk() {
	w.flush()
}

func (w *Writer) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.bw.Flush(); err != nil {
		w.log.Errorw("failed to flush operation log", "error", err)
	}
}

// Close stops the flush loop, flushes any remaining buffered bytes, and
// closes the underlying file.
func (w *Writer) Close() error {
	w.cancel()
	<-w.done
	return w.file.Close()
}
