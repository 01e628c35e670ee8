package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/foxbatdb/foxbatdb/pkg/options"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "foxbatdb.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_mapsEverySection(t *testing.T) {
	path := writeConfig(t, `
[startup]
listenPort = 7000
databaseNumber = 8

[dbfile]
dbFileDirectory = "/var/data/"
dbFileMaxSizeMB = 32

[keyval]
keyMaxBytes = 256
valueMaxBytes = 2048

[memory]
maxmemory-policy = "noeviction"
maxmemory-bytes = 1000000

[aof]
aofCronJobPeriodMs = 500
aofLogFilePath = "/var/data/oplog.aof"
`)

	opts, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if opts.Port != 7000 {
		t.Errorf("Port = %d, want 7000", opts.Port)
	}
	if opts.DBMaxNum != 8 {
		t.Errorf("DBMaxNum = %d, want 8", opts.DBMaxNum)
	}
	if opts.SegmentOptions.Directory != "/var/data" {
		t.Errorf("Directory = %q, want %q (trailing slash trimmed)", opts.SegmentOptions.Directory, "/var/data")
	}
	if opts.SegmentOptions.Size != 32*1024*1024 {
		t.Errorf("Size = %d, want 32MiB", opts.SegmentOptions.Size)
	}
	if opts.KeyMaxBytes != 256 || opts.ValMaxBytes != 2048 {
		t.Errorf("KeyMaxBytes,ValMaxBytes = %d,%d, want 256,2048", opts.KeyMaxBytes, opts.ValMaxBytes)
	}
	if opts.MaxMemoryPolicy != options.PolicyNoEviction {
		t.Errorf("MaxMemoryPolicy = %q, want noeviction", opts.MaxMemoryPolicy)
	}
	if opts.MaxMemoryBytes != 1000000 {
		t.Errorf("MaxMemoryBytes = %d, want 1000000", opts.MaxMemoryBytes)
	}
	if opts.AOFCronJobPeriodMs != 500 {
		t.Errorf("AOFCronJobPeriodMs = %d, want 500", opts.AOFCronJobPeriodMs)
	}
	if opts.AOFLogFilePath != "/var/data/oplog.aof" {
		t.Errorf("AOFLogFilePath = %q, want %q", opts.AOFLogFilePath, "/var/data/oplog.aof")
	}
}

func TestLoad_emptyPolicyDefaultsToAllKeysLRU(t *testing.T) {
	path := writeConfig(t, `
[startup]
listenPort = 6380
`)
	opts, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if opts.MaxMemoryPolicy != options.PolicyAllKeysLRU {
		t.Errorf("MaxMemoryPolicy = %q, want allkeys-lru default", opts.MaxMemoryPolicy)
	}
}

func TestLoad_invalidPolicyIsRejected(t *testing.T) {
	path := writeConfig(t, `
[memory]
maxmemory-policy = "bogus"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("Load() with an invalid policy succeeded, want a FieldFormatError")
	}
}

func TestLoad_missingFileErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("Load() on a missing file succeeded")
	}
}
