package options

const (
	// DefaultPort matches original_source's default listenPort.
	DefaultPort = 6380

	// DefaultDBMaxNum matches original_source's default databaseNumber.
	DefaultDBMaxNum = 16

	// DefaultSegmentDirectory is where data-log segments are stored when
	// no dbFileDir is configured.
	DefaultSegmentDirectory = "./data"

	// DefaultSegmentSize is the per-segment cap (64MiB) before rotation.
	DefaultSegmentSize uint64 = 64 * 1024 * 1024

	// DefaultKeyMaxBytes is the hard cap on key length.
	DefaultKeyMaxBytes uint64 = 1024

	// DefaultValMaxBytes is the hard cap on value length.
	DefaultValMaxBytes uint64 = 1024 * 1024

	// DefaultAOFCronJobPeriodMs is the operation-log flush interval.
	DefaultAOFCronJobPeriodMs int64 = 1000

	// DefaultAOFLogFilePath is where the operation log is written.
	DefaultAOFLogFilePath = "./data/oplog.aof"

	// DefaultMaxMemoryBytes disables the allocation-pressure hook; the
	// engine only enters read-only mode when explicitly configured with a
	// nonzero threshold.
	DefaultMaxMemoryBytes uint64 = 0
)

// NewDefaultOptions returns the default configuration (§6).
func NewDefaultOptions() Options {
	return Options{
		Port:               DefaultPort,
		DBMaxNum:           DefaultDBMaxNum,
		KeyMaxBytes:        DefaultKeyMaxBytes,
		ValMaxBytes:        DefaultValMaxBytes,
		MaxMemoryPolicy:    PolicyAllKeysLRU,
		MaxMemoryBytes:     DefaultMaxMemoryBytes,
		AOFCronJobPeriodMs: DefaultAOFCronJobPeriodMs,
		AOFLogFilePath:     DefaultAOFLogFilePath,
		SegmentOptions: &SegmentOptions{
			Directory: DefaultSegmentDirectory,
			Size:      DefaultSegmentSize,
		},
	}
}
