// Package config loads FoxbatDB's TOML configuration file into
// pkg/options.Options, grounded directly on original_source/src/flag/flags.cc's
// table layout ([startup], [dbfile], [keyval], [memory], [aof]) and its
// Preprocess step (MiB->bytes conversion, trailing-slash stripping).
//
// Library: github.com/pelletier/go-toml/v2, the direct Go analogue of the
// original's toml.hpp dependency, wired per DESIGN.md from
// AKJUS-bsc-erigon's go.mod.
package config

import (
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/foxbatdb/foxbatdb/pkg/errors"
	"github.com/foxbatdb/foxbatdb/pkg/options"
)

type startupSection struct {
	ListenPort     uint16 `toml:"listenPort"`
	DatabaseNumber uint8  `toml:"databaseNumber"`
}

type dbFileSection struct {
	DBFileDirectory string `toml:"dbFileDirectory"`
	DBFileMaxSizeMB uint64 `toml:"dbFileMaxSizeMB"`
}

type keyValSection struct {
	KeyMaxBytes   uint32 `toml:"keyMaxBytes"`
	ValueMaxBytes uint32 `toml:"valueMaxBytes"`
}

type memorySection struct {
	MaxMemoryPolicy string `toml:"maxmemory-policy"`
	MaxMemoryBytes  uint64 `toml:"maxmemory-bytes"`
}

type aofSection struct {
	AOFCronJobPeriodMs int64  `toml:"aofCronJobPeriodMs"`
	AOFLogFilePath     string `toml:"aofLogFilePath"`
}

type fileConfig struct {
	Startup startupSection `toml:"startup"`
	DBFile  dbFileSection  `toml:"dbfile"`
	KeyVal  keyValSection  `toml:"keyval"`
	Memory  memorySection  `toml:"memory"`
	AOF     aofSection     `toml:"aof"`
}

// Load reads the TOML file at path and maps it onto an options.Options.
func Load(path string) (*options.Options, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to read config file").
			WithPath(path)
	}

	var fc fileConfig
	if err := toml.Unmarshal(raw, &fc); err != nil {
		return nil, errors.NewValidationError(err, errors.ErrorCodeInvalidInput, "failed to parse TOML config").
			WithField("path").WithProvided(path)
	}

	policy, err := parseMaxMemoryPolicy(fc.Memory.MaxMemoryPolicy)
	if err != nil {
		return nil, err
	}

	opts := options.Apply(
		options.WithPort(int(fc.Startup.ListenPort)),
		options.WithDBMaxNum(int(fc.Startup.DatabaseNumber)),
		options.WithSegmentDir(strings.TrimSuffix(fc.DBFile.DBFileDirectory, "/")),
		options.WithSegmentSize(fc.DBFile.DBFileMaxSizeMB*1024*1024),
		options.WithKeyMaxBytes(uint64(fc.KeyVal.KeyMaxBytes)),
		options.WithValMaxBytes(uint64(fc.KeyVal.ValueMaxBytes)),
		options.WithMaxMemoryPolicy(policy),
		options.WithMaxMemoryBytes(fc.Memory.MaxMemoryBytes),
		options.WithAOFCronJobPeriodMs(fc.AOF.AOFCronJobPeriodMs),
		options.WithAOFLogFilePath(fc.AOF.AOFLogFilePath),
	)
	return opts, nil
}

func parseMaxMemoryPolicy(raw string) (options.MaxMemoryPolicy, error) {
	switch options.MaxMemoryPolicy(raw) {
	case options.PolicyNoEviction:
		return options.PolicyNoEviction, nil
	case options.PolicyAllKeysLRU, "":
		return options.PolicyAllKeysLRU, nil
	default:
		return "", errors.NewFieldFormatError("memory.maxmemory-policy", raw, "noeviction | allkeys-lru")
	}
}
