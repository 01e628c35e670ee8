// Package ignite provides an embeddable, in-process client for FoxbatDB,
// for callers that want the storage engine linked directly into their own
// process rather than talking to it over the RESP/TCP server in
// cmd/foxbatdb. It is a thin wrapper over internal/engine's shard-0
// operations.
package ignite

import (
	"context"
	"time"

	"github.com/foxbatdb/foxbatdb/internal/engine"
	"github.com/foxbatdb/foxbatdb/internal/shard"
	"github.com/foxbatdb/foxbatdb/pkg/logger"
	"github.com/foxbatdb/foxbatdb/pkg/options"
)

// Represents an instance of the Ignite key/value data store.
// It encapsulates the core engine responsible for data handling and
// the configuration options for this specific database instance.
//
// Instance is the primary entry point for interacting with the Ignite store,
// providing methods for setting, getting, and deleting key-value pairs.
type Instance struct {
	engine  *engine.Engine   // The underlying database engine handling read/write operations.
	options *options.Options // Configuration options applied to this DB instance.
}

// Creates and initializes a new Ignite DB instance.
func NewInstance(context context.Context, service string, opts ...options.OptionFunc) (*Instance, error) {
	// Initialize a logger for the given service.
	log := logger.New(service)

	// Initialize default options.
	defaultOpts := options.NewDefaultOptions()

	// Apply any provided functional options to override defaults.
	if len(opts) > 0 {
		for _, opt := range opts {
			opt(&defaultOpts)
		}
	}

	// Create a new internal engine with the initialized logger.
	eng, err := engine.New(context, &engine.Config{Logger: log, Options: &defaultOpts})
	if err != nil {
		return nil, err
	}

	return &Instance{engine: eng, options: &defaultOpts}, nil
}

// rootShard returns database 0, the instance's sole addressable shard.
func (i *Instance) rootShard() *shard.Shard {
	sh, _ := i.engine.ByIndex(0)
	return sh
}

// Set stores a key-value pair in the database.
// If the key already exists, its value will be updated.
// The operation is durable and will be written to the append-only log.
func (i *Instance) Set(_ context.Context, key string, value []byte) error {
	if err := i.engine.RequireWritable(); err != nil {
		return err
	}
	_, err := i.rootShard().Put([]byte(key), value, shard.PutOptions{})
	return err
}

// SetX stores a key-value pair with an expiration time.
// The entry will automatically be considered expired and inaccessible
// after the specified duration from the time of setting.
// If the key already exists, its value and expiry will be updated.
func (i *Instance) SetX(_ context.Context, key string, value []byte, expiry time.Duration) error {
	if err := i.engine.RequireWritable(); err != nil {
		return err
	}
	_, err := i.rootShard().Put([]byte(key), value, shard.PutOptions{
		TTLMode:  shard.TTLMillis,
		TTLValue: expiry.Milliseconds(),
	})
	return err
}

// Get retrieves the value associated with the given key.
func (i *Instance) Get(_ context.Context, key string) ([]byte, error) {
	return i.rootShard().Get([]byte(key))
}

// Delete removes a key-value pair from the database.
// The operation marks the key as deleted and will eventually be
// removed during compaction.
func (i *Instance) Delete(_ context.Context, key string) error {
	_, err := i.rootShard().Del([]byte(key))
	return err
}

// Close gracefully shuts down the Ignite DB instance, releasing all
// associated resources, flushing any pending writes, and ensuring data
// durability.
func (i *Instance) Close(_ context.Context) error {
	return i.engine.Close()
}
