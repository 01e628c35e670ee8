// Package logger builds the zap logger that the logging components (segment
// pool, shard, recovery, merge, engine, oplog, server) take as a
// *zap.SugaredLogger field or parameter, mirroring the teacher's pervasive
// dependency-injected logging and original_source/src/log/serverlog.h's
// leveled ServerLog singleton (translated here into an explicitly
// constructed value rather than a singleton, so there is no hidden global).
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production zap logger (JSON encoder, ISO8601 timestamps)
// tagged with a "service" field.
func New(service string) *zap.SugaredLogger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.InitialFields = map[string]any{"service": service}

	log, err := cfg.Build()
	if err != nil {
		// Fall back to a minimal logger rather than panicking the
		// engine over an observability failure.
		log = zap.NewNop()
	}
	return log.Sugar()
}
