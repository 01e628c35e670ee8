package main

import (
	"errors"
	"io"
	"net"

	"go.uber.org/zap"

	"github.com/foxbatdb/foxbatdb/internal/engine"
)

// serveConn owns one client connection end to end: it builds the session,
// registers it for pub/sub delivery, loops reading RESP commands and
// submitting them to the reactor, and tears the session down on
// disconnect - an implicit DISCARD per §5 "sessions ending mid-transaction
// implicitly DISCARD", since CloseSession drops the open Tx along with the
// session's watches.
func serveConn(rt *Runtime, eng *engine.Engine, log *zap.SugaredLogger, id string, conn net.Conn) {
	defer conn.Close()

	sess := newSession(id, conn, eng)
	rt.registerSession(sess)
	defer rt.unregisterSession(sess)

	for {
		args, err := sess.reader.ReadCommand()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Debugw("connection closed", "session", id, "error", err)
			}
			return
		}
		if len(args) == 0 {
			continue
		}

		value, err := rt.Submit(sess, args)
		if werr := sess.writeReply(value, err); werr != nil {
			log.Debugw("write failed, closing connection", "session", id, "error", werr)
			return
		}
	}
}
