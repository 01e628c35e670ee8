package oplog

import (
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestWriter_appendFlushReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oplog.aof")
	log := zap.NewNop().Sugar()

	w, err := Open(path, 20*time.Millisecond, log)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	w.AppendCommand([]string{"SET", "a", "1"})
	w.AppendCommand([]string{"SET", "b", "2"})
	w.AppendCommand([]string{"DEL", "a"})

	// Give the periodic flush loop a chance to run, then close (which
	// drains and flushes any remainder) before reading back.
	time.Sleep(60 * time.Millisecond)
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	var applied [][]string
	n, err := Replay(path, func(args []string) error {
		cp := append([]string(nil), args...)
		applied = append(applied, cp)
		return nil
	})
	if err != nil {
		t.Fatalf("Replay() error = %v", err)
	}
	if n != 3 {
		t.Fatalf("Replay() count = %d, want 3", n)
	}

	want := [][]string{{"SET", "a", "1"}, {"SET", "b", "2"}, {"DEL", "a"}}
	for i, w := range want {
		if len(applied[i]) != len(w) {
			t.Fatalf("applied[%d] = %v, want %v", i, applied[i], w)
		}
		for j := range w {
			if applied[i][j] != w[j] {
				t.Errorf("applied[%d][%d] = %q, want %q", i, j, applied[i][j], w[j])
			}
		}
	}
}

func TestWriter_closeFlushesPendingQueue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oplog.aof")
	log := zap.NewNop().Sugar()

	// A long period means only Close's drain-and-flush should persist
	// anything, never the ticker.
	w, err := Open(path, time.Hour, log)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	w.AppendCommand([]string{"SET", "x", "y"})
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	n, err := Replay(path, func([]string) error { return nil })
	if err != nil {
		t.Fatalf("Replay() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Replay() count = %d, want 1", n)
	}
}

func TestReplay_missingFileErrors(t *testing.T) {
	if _, err := Replay(filepath.Join(t.TempDir(), "missing.aof"), func([]string) error { return nil }); err == nil {
		t.Fatal("Replay() on a missing file succeeded")
	}
}

func TestReplay_stopsOnApplyError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oplog.aof")
	log := zap.NewNop().Sugar()

	w, err := Open(path, time.Hour, log)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	w.AppendCommand([]string{"SET", "a", "1"})
	w.AppendCommand([]string{"SET", "b", "2"})
	w.Close()

	boom := errTestApply
	calls := 0
	n, err := Replay(path, func([]string) error {
		calls++
		if calls == 1 {
			return boom
		}
		return nil
	})
	if err != boom {
		t.Fatalf("Replay() error = %v, want the apply error", err)
	}
	if n != 0 {
		t.Errorf("Replay() count = %d, want 0 (first apply failed)", n)
	}
}

var errTestApply = &testApplyError{}

type testApplyError struct{}

func (*testApplyError) Error() string { return "apply failed" }
