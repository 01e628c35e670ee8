package main

import (
	"net"
	"sync"

	"github.com/foxbatdb/foxbatdb/internal/engine"
	"github.com/foxbatdb/foxbatdb/pkg/respcodec"
)

// Session is one connected client: the socket, its buffered RESP reader/
// writer, and the engine-level transaction/watch state bound to it.
//
// Grounded on original_source/src/frontend/server.h's CMDSession (one
// object per accepted socket, owning its own read/write buffers and a
// reference into the executor's per-connection state).
type Session struct {
	id   string
	conn net.Conn

	writeMu sync.Mutex
	writer  *respcodec.Writer
	reader  *respcodec.Reader

	engSess *engine.Session

	subscriptions []string
	pendingRaw    [][]string // write commands queued this transaction, for oplog append at EXEC
}

func newSession(id string, conn net.Conn, eng *engine.Engine) *Session {
	return &Session{
		id:      id,
		conn:    conn,
		writer:  respcodec.NewWriter(conn),
		reader:  respcodec.NewReader(conn),
		engSess: eng.NewSession(id),
	}
}

// pushMessage writes an unsolicited RESP array ["message", channel, msg]
// to the connection, matching original_source's BuildPubSubResponse shape.
func (s *Session) pushMessage(channel, msg string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.writer.ArrayHeader(3)
	s.writer.BulkString([]byte("message"))
	s.writer.BulkString([]byte(channel))
	s.writer.BulkString([]byte(msg))
	s.writer.Flush()
}

// writeReply encodes one command's reply or error to the connection.
func (s *Session) writeReply(value any, err error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err != nil {
		if werr := s.writer.Error(errorReplyText(err)); werr != nil {
			return werr
		}
		return s.writer.Flush()
	}
	if werr := encodeReply(s.writer, value); werr != nil {
		return werr
	}
	return s.writer.Flush()
}
