package engine

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/foxbatdb/foxbatdb/internal/shard"
	"github.com/foxbatdb/foxbatdb/pkg/options"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	dir := t.TempDir()
	opts := options.Apply(
		options.WithDefaultOptions(),
		options.WithDBMaxNum(2),
		options.WithSegmentDir(dir),
		options.WithSegmentSize(1<<20),
		options.WithAOFLogFilePath(filepath.Join(dir, "oplog.aof")),
	)
	eng, err := New(context.Background(), &Config{Options: opts, Logger: zap.NewNop().Sugar()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { eng.Close() })
	return eng
}

func TestEngine_byIndexAndDBMaxNum(t *testing.T) {
	eng := newTestEngine(t)
	if eng.DBMaxNum() != 2 {
		t.Errorf("DBMaxNum() = %d, want 2", eng.DBMaxNum())
	}
	if _, ok := eng.ByIndex(0); !ok {
		t.Error("ByIndex(0) not found")
	}
	if _, ok := eng.ByIndex(2); ok {
		t.Error("ByIndex(2) found, want out of range")
	}
}

func TestEngine_sessionSwitchDBAndClose(t *testing.T) {
	eng := newTestEngine(t)
	sess := eng.NewSession("s1")

	if err := sess.SwitchDB(eng, 1); err != nil {
		t.Fatalf("SwitchDB() error = %v", err)
	}
	if sess.DBIdx != 1 {
		t.Errorf("DBIdx = %d, want 1", sess.DBIdx)
	}
	if err := sess.SwitchDB(eng, 5); err == nil {
		t.Error("SwitchDB(5) succeeded, want DBIdxOutOfRange")
	}

	eng.CloseSession(sess)
}

// TestEngine_watchInvalidatesOtherSessionTx covers §8 property 9: a write
// from one session marks another session's open transaction failed when it
// touches a key the second session is watching.
func TestEngine_watchInvalidatesOtherSessionTx(t *testing.T) {
	eng := newTestEngine(t)
	sh, _ := eng.ByIndex(0)
	sh.Put([]byte("k"), []byte("orig"), shard.PutOptions{})

	watcher := eng.NewSession("watcher")
	watcher.Watch(eng, "k")
	watcher.Tx().Begin()

	writer := eng.NewSession("writer")
	sh.Put([]byte("k"), []byte("changed"), shard.PutOptions{})

	if !watcher.Tx().Failed() {
		t.Error("watching session's tx was not marked failed after a concurrent write")
	}

	eng.CloseSession(watcher)
	eng.CloseSession(writer)
}

func TestEngine_loadOpLogMissingFileIsError(t *testing.T) {
	eng := newTestEngine(t)

	n, err := eng.LoadOpLog("/nonexistent/path.aof", func([]string) error { return nil })
	if err == nil {
		t.Error("LoadOpLog() on a missing file succeeded")
	}
	_ = n
}

func TestEngine_requireWritableAndReadOnlyToggle(t *testing.T) {
	eng := newTestEngine(t)
	if err := eng.RequireWritable(); err != nil {
		t.Fatalf("RequireWritable() on a fresh engine error = %v", err)
	}

	eng.SetReadOnly(true)
	if err := eng.RequireWritable(); err == nil {
		t.Error("RequireWritable() in read-only mode succeeded")
	}
	if !eng.IsReadOnly() {
		t.Error("IsReadOnly() = false after SetReadOnly(true)")
	}

	eng.SetReadOnly(false)
	if err := eng.RequireWritable(); err != nil {
		t.Errorf("RequireWritable() after clearing read-only error = %v", err)
	}
}

func TestEngine_checkMemoryPressureNoopWhenUnconfigured(t *testing.T) {
	eng := newTestEngine(t)
	// MaxMemoryBytes defaults to 0 (disabled); this must never flip the
	// engine read-only on its own.
	eng.CheckMemoryPressure()
	if eng.IsReadOnly() {
		t.Error("CheckMemoryPressure() entered read-only mode with the hook disabled")
	}
}

func TestEngine_mergeRunsAgainstLiveShards(t *testing.T) {
	eng := newTestEngine(t)
	sh, _ := eng.ByIndex(0)
	sh.Put([]byte("k"), []byte("v"), shard.PutOptions{})

	if err := eng.Merge(); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	v, err := sh.Get([]byte("k"))
	if err != nil || string(v) != "v" {
		t.Errorf("Get(k) after Merge() = %q, %v, want v, nil", v, err)
	}
}

func TestEngine_pubSubHubIsShared(t *testing.T) {
	eng := newTestEngine(t)
	hub := eng.PubSub()
	hub.Subscribe("ch", "sess-1")

	delivered := 0
	n := hub.Publish("ch", func(sessionID string) {
		delivered++
		if sessionID != "sess-1" {
			t.Errorf("delivered to %q, want sess-1", sessionID)
		}
	})
	if n != 1 || delivered != 1 {
		t.Errorf("Publish() = %d delivered=%d, want 1,1", n, delivered)
	}
}
