// Package options defines FoxbatDB's configuration surface, kept from the
// teacher's functional-options pattern and extended with the fields
// spec.md §6 requires: network port, shard count, segment directory/size
// caps, key/value size caps, the eviction policy selector, and the
// operation-log flush period/path.
package options

import "strings"

// MaxMemoryPolicy selects the eviction adapter (§4.F).
type MaxMemoryPolicy string

const (
	PolicyNoEviction MaxMemoryPolicy = "noeviction"
	PolicyAllKeysLRU MaxMemoryPolicy = "allkeys-lru"
)

// SegmentOptions configures the data-log segment pool (§4.B/§4.C).
type SegmentOptions struct {
	// Directory holds the segment files, matching dbFileDir from §6.
	Directory string

	// Size is the maximum size a segment may grow to before rotation, in
	// bytes (dbFileMaxSize converted from MiB).
	Size uint64
}

// Options holds every configuration parameter §6 names.
type Options struct {
	Port            int
	DBMaxNum        int
	KeyMaxBytes     uint64
	ValMaxBytes     uint64
	MaxMemoryPolicy MaxMemoryPolicy

	// MaxMemoryBytes is the heap-usage threshold that triggers the
	// allocation-pressure eviction hook (§5); 0 disables the hook and the
	// engine never enters read-only mode on its own.
	MaxMemoryBytes uint64

	AOFCronJobPeriodMs int64
	AOFLogFilePath     string

	SegmentOptions *SegmentOptions
}

// OptionFunc mutates an Options during construction.
type OptionFunc func(*Options)

// WithDefaultOptions applies every default value.
func WithDefaultOptions() OptionFunc {
	return func(o *Options) { *o = NewDefaultOptions() }
}

// WithPort sets the TCP listen port.
func WithPort(port int) OptionFunc {
	return func(o *Options) {
		if port > 0 {
			o.Port = port
		}
	}
}

// WithDBMaxNum sets the number of shards (§6); values outside [1, 255] are
// ignored and leave the current setting unchanged.
func WithDBMaxNum(n int) OptionFunc {
	return func(o *Options) {
		if n >= 1 && n <= 255 {
			o.DBMaxNum = n
		}
	}
}

// WithSegmentDir sets the segment directory.
func WithSegmentDir(directory string) OptionFunc {
	return func(o *Options) {
		directory = strings.TrimSuffix(strings.TrimSpace(directory), "/")
		if directory != "" {
			o.SegmentOptions.Directory = directory
		}
	}
}

// WithSegmentSize sets the per-segment size cap in bytes.
func WithSegmentSize(size uint64) OptionFunc {
	return func(o *Options) {
		if size > 0 {
			o.SegmentOptions.Size = size
		}
	}
}

// WithKeyMaxBytes sets the maximum key length.
func WithKeyMaxBytes(n uint64) OptionFunc {
	return func(o *Options) {
		if n > 0 {
			o.KeyMaxBytes = n
		}
	}
}

// WithValMaxBytes sets the maximum value length.
func WithValMaxBytes(n uint64) OptionFunc {
	return func(o *Options) {
		if n > 0 {
			o.ValMaxBytes = n
		}
	}
}

// WithMaxMemoryPolicy selects the eviction policy.
func WithMaxMemoryPolicy(policy MaxMemoryPolicy) OptionFunc {
	return func(o *Options) {
		if policy == PolicyNoEviction || policy == PolicyAllKeysLRU {
			o.MaxMemoryPolicy = policy
		}
	}
}

// WithMaxMemoryBytes sets the heap-usage threshold for the allocation-
// pressure hook. Zero disables the hook.
func WithMaxMemoryBytes(n uint64) OptionFunc {
	return func(o *Options) { o.MaxMemoryBytes = n }
}

// WithAOFCronJobPeriodMs sets the operation-log flush period.
func WithAOFCronJobPeriodMs(ms int64) OptionFunc {
	return func(o *Options) {
		if ms > 0 {
			o.AOFCronJobPeriodMs = ms
		}
	}
}

// WithAOFLogFilePath sets the operation-log file path.
func WithAOFLogFilePath(path string) OptionFunc {
	return func(o *Options) {
		path = strings.TrimSpace(path)
		if path != "" {
			o.AOFLogFilePath = path
		}
	}
}

// Apply builds an Options from defaults plus the given functional options.
func Apply(opts ...OptionFunc) *Options {
	o := NewDefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &o
}
