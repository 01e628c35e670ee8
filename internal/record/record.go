// Package record implements the on-disk record codec described in §3/§4.A
// of the FoxbatDB design: a fixed, packed, little-endian header followed by
// an optional key and value, closed with a CRC-32 (IEEE polynomial, reflected)
// computed over the header tail plus key plus value.
//
// Grounded on original_source/src/core/obj.h (FileRecordHeader field order)
// and original_source/src/log/datalog.h (RecordState enum), translated into
// the length-prefixed binary codec idiom used by marselester-rascaldb's
// segment.go.
package record

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/foxbatdb/foxbatdb/pkg/errors"
)

// State tags the kind of record a header describes.
type State uint8

const (
	StateData State = iota
	StateFailed
	StateBegin
	StateFinish
)

func (s State) String() string {
	switch s {
	case StateData:
		return "DATA"
	case StateFailed:
		return "FAILED"
	case StateBegin:
		return "BEGIN"
	case StateFinish:
		return "FINISH"
	default:
		return "UNKNOWN"
	}
}

func (s State) valid() bool {
	return s <= StateFinish
}

// HeaderSize is the fixed packed size of a Header in bytes:
// crc(4) + timestamp(8) + state(1) + dbIdx(1) + keySize(8) + valSize(8).
const HeaderSize = 4 + 8 + 1 + 1 + 8 + 8

// Header is the fixed-layout prefix of every on-disk record.
type Header struct {
	CRC       uint32
	Timestamp uint64 // microseconds since Unix epoch
	State     State
	DBIdx     uint8
	KeySize   uint64 // repurposed as txCmdCount for BEGIN
	ValSize   uint64
}

// Record is a fully decoded on-disk entry.
type Record struct {
	Header Header
	Key    []byte
	Value  []byte
}

// IsTombstone reports whether a DATA record represents a delete.
func (r *Record) IsTombstone() bool {
	return r.Header.State == StateData && r.Header.ValSize == 0
}

func putHeaderTail(buf []byte, h Header) {
	binary.LittleEndian.PutUint64(buf[0:8], h.Timestamp)
	buf[8] = byte(h.State)
	buf[9] = h.DBIdx
	binary.LittleEndian.PutUint64(buf[10:18], h.KeySize)
	binary.LittleEndian.PutUint64(buf[18:26], h.ValSize)
}

// EncodeData serializes a DATA record: state=DATA, the given key/value, and
// a CRC over the header tail + key + value. An empty value encodes a
// tombstone per §3.
func EncodeData(dbIdx uint8, key, value []byte, nowUs int64) []byte {
	h := Header{
		Timestamp: uint64(nowUs),
		State:     StateData,
		DBIdx:     dbIdx,
		KeySize:   uint64(len(key)),
		ValSize:   uint64(len(value)),
	}
	return encode(h, key, value)
}

// EncodeMarker serializes a transaction marker record (BEGIN/FAILED/FINISH).
// For BEGIN, count is packed into KeySize per §3; FAILED/FINISH carry no
// key or value.
func EncodeMarker(dbIdx uint8, state State, count uint64, nowUs int64) []byte {
	h := Header{
		Timestamp: uint64(nowUs),
		State:     state,
		DBIdx:     dbIdx,
	}
	if state == StateBegin {
		h.KeySize = count
	}
	return encode(h, nil, nil)
}

func encode(h Header, key, value []byte) []byte {
	total := HeaderSize + len(key) + len(value)
	buf := make([]byte, total)

	tail := buf[4:HeaderSize]
	putHeaderTail(tail, h)

	n := HeaderSize
	n += copy(buf[n:], key)
	copy(buf[n:], value)

	crc := crc32.ChecksumIEEE(buf[4:])
	h.CRC = crc
	binary.LittleEndian.PutUint32(buf[0:4], crc)

	return buf
}

// ReaderAt is the minimal interface Decode needs from a segment: a
// deterministic random-access byte source, exactly what segment.Segment
// implements for sealed (and the tail's already-written) data.
type ReaderAt interface {
	ReadAt(offset int64, n int) ([]byte, error)
}

// Decode reads and validates one record starting at offset. It returns the
// decoded record and the number of bytes consumed by it.
//
// Structural preconditions (state tag, dbIdx range, size bounds, and
// marker-specific zero-size requirements) are checked before CRC, per §4.A.
// Any failure - short read, structural violation, or CRC mismatch - is
// reported as a *errors.StorageError: ErrorCodeRecordTornTail for short
// reads and CRC failures (the scan-stop signal recovery relies on), and
// ErrorCodeRecordStructural for structural violations.
func Decode(r ReaderAt, offset int64, dbMaxNum int, keyMaxBytes, valMaxBytes uint64) (*Record, int64, error) {
	head, err := r.ReadAt(offset, HeaderSize)
	if err != nil {
		return nil, 0, errors.NewStorageError(err, errors.ErrorCodeRecordTornTail, "short header read").
			WithOffset(int(offset))
	}

	h := Header{
		CRC:       binary.LittleEndian.Uint32(head[0:4]),
		Timestamp: binary.LittleEndian.Uint64(head[4:12]),
		State:     State(head[12]),
		DBIdx:     head[13],
		KeySize:   binary.LittleEndian.Uint64(head[14:22]),
		ValSize:   binary.LittleEndian.Uint64(head[22:30]),
	}

	if err := validateStructure(h, dbMaxNum, keyMaxBytes, valMaxBytes); err != nil {
		return nil, 0, err
	}

	var key, value []byte
	if h.State == StateData {
		rest, err := r.ReadAt(offset+HeaderSize, int(h.KeySize+h.ValSize))
		if err != nil {
			return nil, 0, errors.NewStorageError(err, errors.ErrorCodeRecordTornTail, "short key/value read").
				WithOffset(int(offset))
		}
		key = rest[:h.KeySize]
		value = rest[h.KeySize:]
	}

	total := HeaderSize + len(key) + len(value)
	sum := crc32.NewIEEE()
	sum.Write(head[4:HeaderSize])
	sum.Write(key)
	sum.Write(value)
	if sum.Sum32() != h.CRC {
		return nil, 0, errors.NewStorageError(nil, errors.ErrorCodeRecordTornTail, "crc mismatch").
			WithOffset(int(offset))
	}

	return &Record{Header: h, Key: key, Value: value}, int64(total), nil
}

func validateStructure(h Header, dbMaxNum int, keyMaxBytes, valMaxBytes uint64) error {
	if h.Timestamp == 0 {
		return errors.NewStorageError(nil, errors.ErrorCodeRecordStructural, "zero timestamp")
	}
	if !h.State.valid() {
		return errors.NewStorageError(nil, errors.ErrorCodeRecordStructural, "unknown record state")
	}
	if int(h.DBIdx) >= dbMaxNum {
		return errors.NewStorageError(nil, errors.ErrorCodeRecordStructural, "dbIdx out of range")
	}

	switch h.State {
	case StateData:
		if h.KeySize == 0 || h.KeySize > keyMaxBytes {
			return errors.NewStorageError(nil, errors.ErrorCodeRecordStructural, "key size out of bounds")
		}
		if h.ValSize > valMaxBytes {
			return errors.NewStorageError(nil, errors.ErrorCodeRecordStructural, "value size out of bounds")
		}
	case StateFailed, StateFinish:
		if h.KeySize != 0 || h.ValSize != 0 {
			return errors.NewStorageError(nil, errors.ErrorCodeRecordStructural, "marker carries non-zero sizes")
		}
	case StateBegin:
		if h.ValSize != 0 {
			return errors.NewStorageError(nil, errors.ErrorCodeRecordStructural, "BEGIN carries non-zero valSize")
		}
	}
	return nil
}
