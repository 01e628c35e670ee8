package shard

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/foxbatdb/foxbatdb/internal/evict"
	"github.com/foxbatdb/foxbatdb/internal/segpool"
	"github.com/foxbatdb/foxbatdb/pkg/errors"
)

func newTestShard(t *testing.T) *Shard {
	t.Helper()
	dir := t.TempDir()
	pool, err := segpool.Open(dir, 1<<20, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("segpool.Open() error = %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	return New(Config{
		Index:       0,
		DBMaxNum:    16,
		KeyMaxBytes: 1024,
		ValMaxBytes: 1024 * 1024,
		Policy:      evict.NewLRU(),
		Pool:        pool,
		Logger:      zap.NewNop().Sugar(),
	})
}

// TestShard_roundTrip covers §8 property 1: PUT k v; GET k = v.
func TestShard_roundTrip(t *testing.T) {
	sh := newTestShard(t)
	if _, err := sh.Put([]byte("foo"), []byte("bar"), PutOptions{}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	v, err := sh.Get([]byte("foo"))
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(v) != "bar" {
		t.Errorf("Get() = %q, want %q", v, "bar")
	}
}

// TestShard_deleteIsAbsence covers §8 property 2.
func TestShard_deleteIsAbsence(t *testing.T) {
	sh := newTestShard(t)
	sh.Put([]byte("foo"), []byte("bar"), PutOptions{})

	ok, err := sh.Del([]byte("foo"))
	if err != nil {
		t.Fatalf("Del() error = %v", err)
	}
	if !ok {
		t.Error("Del() on present key = false, want true")
	}

	if _, err := sh.Get([]byte("foo")); err == nil {
		t.Error("Get() after Del() succeeded, want KeyNotFound")
	}

	ok, err = sh.Del([]byte("absent"))
	if err != nil {
		t.Fatalf("Del() error = %v", err)
	}
	if ok {
		t.Error("Del() on absent key = true, want false")
	}
}

// TestShard_nxXx covers §8 property 3.
func TestShard_nxXx(t *testing.T) {
	sh := newTestShard(t)

	if _, err := sh.Put([]byte("k"), []byte("v1"), PutOptions{NX: true}); err != nil {
		t.Fatalf("first NX Put() error = %v", err)
	}
	if _, err := sh.Put([]byte("k"), []byte("v2"), PutOptions{NX: true}); err == nil {
		t.Error("second NX Put() on existing key succeeded, want KeyAlreadyExists")
	}
	v, _ := sh.Get([]byte("k"))
	if string(v) != "v1" {
		t.Errorf("value after failed NX = %q, want %q", v, "v1")
	}

	if _, err := sh.Put([]byte("absent"), []byte("v"), PutOptions{XX: true}); err == nil {
		t.Error("XX Put() on absent key succeeded, want KeyNotFound")
	}
	if _, err := sh.Put([]byte("k"), []byte("v3"), PutOptions{XX: true}); err != nil {
		t.Fatalf("XX Put() on existing key error = %v", err)
	}
	v, _ = sh.Get([]byte("k"))
	if string(v) != "v3" {
		t.Errorf("value after successful XX = %q, want %q", v, "v3")
	}
}

func TestShard_nxAndXxAreExclusive(t *testing.T) {
	sh := newTestShard(t)
	_, err := sh.Put([]byte("k"), []byte("v"), PutOptions{NX: true, XX: true})
	if err == nil {
		t.Fatal("NX+XX together succeeded, want OptionExclusive error")
	}
}

// TestShard_keepTTL covers §8 property 4.
func TestShard_keepTTL(t *testing.T) {
	sh := newTestShard(t)
	sh.Put([]byte("k"), []byte("v1"), PutOptions{TTLMode: TTLMillis, TTLValue: 50})
	sh.Put([]byte("k"), []byte("v2"), PutOptions{TTLMode: TTLKeep})

	time.Sleep(80 * time.Millisecond)
	if _, err := sh.Get([]byte("k")); err == nil {
		t.Error("Get() after KEEPTTL'd TTL elapsed succeeded, want KeyNotFound")
	}
}

// TestShard_getOptionReturnsPreImage covers SET's GET option and the nil
// sentinel per §9 open question #2.
func TestShard_getOptionReturnsPreImage(t *testing.T) {
	sh := newTestShard(t)

	result, err := sh.Put([]byte("k"), []byte("v1"), PutOptions{Get: true})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if result.PreImage != nil {
		t.Errorf("PreImage on first set = %q, want nil", result.PreImage)
	}

	result, err = sh.Put([]byte("k"), []byte("v2"), PutOptions{Get: true})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if string(result.PreImage) != "v1" {
		t.Errorf("PreImage = %q, want %q", result.PreImage, "v1")
	}
}

func TestShard_ttlExpirySynthesizesDelete(t *testing.T) {
	sh := newTestShard(t)
	sh.Put([]byte("k"), []byte("v"), PutOptions{TTLMode: TTLMillis, TTLValue: 20})
	time.Sleep(50 * time.Millisecond)

	if _, err := sh.Get([]byte("k")); err == nil {
		t.Fatal("Get() on expired key succeeded, want KeyNotFound")
	}
	if sh.Index().Contains("k") {
		t.Error("expired key is still present in the index after lazy expiry")
	}
}

func TestShard_prefixSkipsExpiredAndTombstones(t *testing.T) {
	sh := newTestShard(t)
	sh.Put([]byte("user:1"), []byte("a"), PutOptions{})
	sh.Put([]byte("user:2"), []byte("b"), PutOptions{})
	sh.Put([]byte("user:3"), []byte("c"), PutOptions{TTLMode: TTLMillis, TTLValue: 10})
	sh.Put([]byte("other"), []byte("z"), PutOptions{})
	sh.Del([]byte("user:2"))

	time.Sleep(30 * time.Millisecond)

	values, err := sh.Prefix([]byte("user:"))
	if err != nil {
		t.Fatalf("Prefix() error = %v", err)
	}
	if len(values) != 1 {
		t.Fatalf("Prefix() len = %d, want 1 (only user:1 still live)", len(values))
	}
	if string(values[0]) != "a" {
		t.Errorf("Prefix() result = %q, want %q", values[0], "a")
	}
}

func TestShard_watchNotifiesOnModification(t *testing.T) {
	sh := newTestShard(t)
	sh.Put([]byte("k"), []byte("v1"), PutOptions{})

	var notified string
	sh.onKeyModified = func(sessionID, key string) { notified = sessionID }

	sh.AddWatch("k", "sess-1")
	sh.Put([]byte("k"), []byte("v2"), PutOptions{})

	if notified != "sess-1" {
		t.Errorf("notified session = %q, want %q", notified, "sess-1")
	}
}

func TestShard_addWatchOnAbsentKeyIsIgnored(t *testing.T) {
	sh := newTestShard(t)
	sh.AddWatch("absent", "sess-1")
	if _, ok := sh.watch["absent"]; ok {
		t.Error("watch table has an entry for a key that was never present")
	}
}

func TestShard_keyTooLarge(t *testing.T) {
	sh := newTestShard(t)
	sh.keyMaxBytes = 4
	_, err := sh.Put([]byte("toolong"), []byte("v"), PutOptions{})
	if err == nil {
		t.Fatal("Put() with an oversized key succeeded")
	}
	if _, ok := err.(*errors.EngineError); !ok {
		t.Errorf("error type = %T, want *errors.EngineError", err)
	}
}
