// The FoxbatDB server binary: loads configuration, starts the storage
// engine, and serves the RESP command protocol over TCP.
//
// Grounded on shake-karrot-lightkafka/cmd/main.go's accept-loop shape
// (net.Listen, Accept loop, one goroutine per connection) and
// original_source/src/frontend/server.cc (Server::Run's listen-then-accept
// structure), adapted to RESP framing and the reactor's single-writer
// serialization (§5).
package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/foxbatdb/foxbatdb/internal/engine"
	"github.com/foxbatdb/foxbatdb/pkg/config"
	"github.com/foxbatdb/foxbatdb/pkg/logger"
	"github.com/foxbatdb/foxbatdb/pkg/options"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML configuration file")
	flag.Parse()

	log := logger.New("foxbatdb")
	defer log.Sync()

	opts := options.Apply(options.WithDefaultOptions())
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalw("failed to load configuration", "path", *configPath, "error", err)
		}
		opts = loaded
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	eng, err := engine.New(ctx, &engine.Config{Options: opts, Logger: log})
	if err != nil {
		log.Fatalw("failed to start engine", "error", err)
	}
	defer eng.Close()

	rt := NewRuntime(eng, log)

	addr := ":" + strconv.Itoa(opts.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatalw("failed to bind listen port", "addr", addr, "error", err)
	}
	log.Infow("foxbatdb listening", "addr", addr)

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	var nextSessionID uint64
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				log.Errorw("accept failed", "error", err)
				continue
			}
		}

		nextSessionID++
		id := strconv.FormatUint(nextSessionID, 10)
		go serveConn(rt, eng, log, id, conn)
	}
}
