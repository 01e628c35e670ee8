package main

import (
	"fmt"

	"github.com/foxbatdb/foxbatdb/pkg/errors"
	"github.com/foxbatdb/foxbatdb/pkg/respcodec"
)

// encodeReply writes a handler's canonical reply value onto w, per §9's
// stipulated wire shapes: simple string, bulk string (nil slice encodes
// as the null bulk string $-1\r\n), integer, and array (recursively
// encoded, so an array may itself contain any of the above).
func encodeReply(w *respcodec.Writer, v any) error {
	switch val := v.(type) {
	case simpleStatus:
		return w.SimpleString(string(val))
	case []byte:
		if val == nil {
			return w.NullBulk()
		}
		return w.BulkString(val)
	case int64:
		return w.Integer(val)
	case [][]byte:
		if val == nil {
			return w.NullArray()
		}
		if err := w.ArrayHeader(len(val)); err != nil {
			return err
		}
		for _, e := range val {
			if e == nil {
				if err := w.NullBulk(); err != nil {
					return err
				}
				continue
			}
			if err := w.BulkString(e); err != nil {
				return err
			}
		}
		return nil
	case []any:
		if val == nil {
			return w.NullArray()
		}
		if err := w.ArrayHeader(len(val)); err != nil {
			return err
		}
		for _, e := range val {
			if err := encodeReply(w, e); err != nil {
				return err
			}
		}
		return nil
	case nil:
		return w.NullBulk()
	default:
		return fmt.Errorf("respcodec: unencodable reply type %T", v)
	}
}

// errorReplyText renders err as a RESP error-line message, tagging it
// with its EngineError code when available so clients can branch on a
// stable string (§7).
func errorReplyText(err error) string {
	if ee, ok := err.(*errors.EngineError); ok {
		return string(ee.Code()) + " " + ee.Error()
	}
	return "ERR " + err.Error()
}
