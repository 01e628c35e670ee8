// Package segment implements one append-only data-log segment file (§4.B).
//
// Grounded on the teacher's internal/storage.openSegmentFile (open flags,
// seek-to-end bootstrap) and marselester-rascaldb/segment.go's read/write
// pair; a Segment is deliberately thin - all naming/rotation policy lives
// one layer up in internal/segpool.
package segment

import (
	"io"
	"os"
	"sync"

	"github.com/foxbatdb/foxbatdb/pkg/errors"
)

// Segment is one append-only file, identified by a numeric ID, with a
// single writer appending at the current end-of-file offset.
type Segment struct {
	mu     sync.RWMutex
	id     uint64
	path   string
	file   *os.File
	size   int64
	sealed bool
}

// Open opens (creating if necessary) the segment file at path with
// append semantics, positioning the internal size at the current
// end-of-file length.
func Open(path string, id uint64) (*Segment, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to open segment file").
			WithPath(path)
	}

	offset, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		file.Close()
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to seek to end of segment").
			WithPath(path)
	}

	return &Segment{id: id, path: path, file: file, size: offset}, nil
}

func (s *Segment) ID() uint64 { return s.id }

func (s *Segment) Path() string { return s.path }

func (s *Segment) Size() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

// Sealed reports whether the segment accepts no further appends.
func (s *Segment) Sealed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sealed
}

// Seal marks the segment read-only; a sealed segment is a candidate for
// merge (§4.H) and will never be selected as a pool's writable tail again.
func (s *Segment) Seal() {
	s.mu.Lock()
	s.sealed = true
	s.mu.Unlock()
}

// Append writes b at the current end of the segment and returns the
// starting offset of the write. Appends are serialized by the caller's
// single-writer discipline (§5); the mutex here only protects size/offset
// bookkeeping against concurrent readers.
func (s *Segment) Append(b []byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sealed {
		return 0, errors.NewStorageError(nil, errors.ErrorCodeIO, "append to sealed segment").
			WithPath(s.path)
	}

	offset := s.size
	n, err := s.file.WriteAt(b, offset)
	if err != nil {
		return 0, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to append to segment").
			WithPath(s.path).WithOffset(int(offset))
	}
	s.size += int64(n)
	return offset, nil
}

// ReadAt returns exactly n bytes starting at offset. It is deterministic
// for sealed segments and safe to call concurrently with Append.
func (s *Segment) ReadAt(offset int64, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := s.file.ReadAt(buf, offset); err != nil {
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to read segment").
			WithPath(s.path).WithOffset(int(offset))
	}
	return buf, nil
}

// Close releases the underlying file handle.
func (s *Segment) Close() error {
	return s.file.Close()
}

// Remove closes and deletes the segment file from disk, used by merge
// (§4.H step 5) to reclaim space from segments whose live keys have all
// been rewritten elsewhere.
func (s *Segment) Remove() error {
	s.file.Close()
	return os.Remove(s.path)
}

// Unseal clears the sealed flag, used by merge (§4.H step 7) when the
// renumbered tail segment becomes writable again.
func (s *Segment) Unseal() {
	s.mu.Lock()
	s.sealed = false
	s.mu.Unlock()
}

// Rename moves the segment's backing file to newPath under a new ID,
// used by merge (§4.H step 6) to restore the canonical 0..k naming
// sequence. The receiver's file handle is closed and a new Segment
// bound to newPath/newID is returned; callers must replace their
// reference to s with the returned value.
func (s *Segment) Rename(newPath string, newID uint64) (*Segment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.file.Close(); err != nil {
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to close segment before rename").
			WithPath(s.path)
	}
	if err := os.Rename(s.path, newPath); err != nil {
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to rename segment file").
			WithPath(s.path)
	}

	file, err := os.OpenFile(newPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to reopen renamed segment").
			WithPath(newPath)
	}

	return &Segment{id: newID, path: newPath, file: file, size: s.size, sealed: s.sealed}, nil
}
