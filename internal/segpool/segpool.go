// Package segpool implements the segment pool (§4.C): an ordered collection
// of data-log segments with exactly one writable tail, rotated by size.
//
// Grounded on the teacher's internal/storage.New (directory bootstrap,
// rotate-on-size-cap logic) generalized from a single active file to the
// full ordered pool the spec requires, and pkg/seginfo for filename
// discovery (adapted to the foxbat-<n>.db grammar).
package segpool

import (
	"path/filepath"
	"sync"

	"github.com/foxbatdb/foxbatdb/internal/segment"
	"github.com/foxbatdb/foxbatdb/pkg/errors"
	"github.com/foxbatdb/foxbatdb/pkg/filesys"
	"github.com/foxbatdb/foxbatdb/pkg/seginfo"
	"go.uber.org/zap"
)

// Pool owns every open segment for one data directory and tracks which one
// is currently writable.
type Pool struct {
	mu       sync.Mutex
	dir      string
	maxSize  int64
	segments []*segment.Segment // ascending by ID; last element is the tail
	log      *zap.SugaredLogger
}

// Open discovers existing segments under dir (creating dir if absent) and
// opens each one read-write. If no segments exist, segment 0 is created as
// the initial writable tail (§4.C).
func Open(dir string, maxSize int64, log *zap.SugaredLogger) (*Pool, error) {
	if err := filesys.CreateDir(dir, 0755, true); err != nil {
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to create segment directory").
			WithPath(dir)
	}

	ids, err := seginfo.Discover(dir)
	if err != nil {
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to discover segments").
			WithPath(dir)
	}
	if len(ids) == 0 {
		ids = []uint64{0}
	}

	p := &Pool{dir: dir, maxSize: maxSize, log: log}
	for _, id := range ids {
		seg, err := segment.Open(filepath.Join(dir, seginfo.GenerateName(id)), id)
		if err != nil {
			return nil, err
		}
		// Every segment but the last is sealed: the pool invariant is a
		// single writable tail (§4.C).
		p.segments = append(p.segments, seg)
	}
	for _, seg := range p.segments[:len(p.segments)-1] {
		seg.Seal()
	}

	log.Infow("segment pool opened", "dir", dir, "segments", len(p.segments), "tail", p.segments[len(p.segments)-1].ID())
	return p, nil
}

// Tail returns the current writable segment.
func (p *Pool) Tail() *segment.Segment {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.segments[len(p.segments)-1]
}

// Segments returns a snapshot of the pool's ordered segment list.
func (p *Pool) Segments() []*segment.Segment {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*segment.Segment, len(p.segments))
	copy(out, p.segments)
	return out
}

// Get returns the segment with the given ID, if still open.
func (p *Pool) Get(id uint64) (*segment.Segment, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, seg := range p.segments {
		if seg.ID() == id {
			return seg, true
		}
	}
	return nil, false
}

// Append writes b into the writable tail, rotating to a fresh segment
// first if the tail has exceeded maxSize (§4.C "Writable-segment
// selection"). Rotation and append are performed under the pool lock so
// concurrent writers (serialized one layer up by the single-writer
// reactor, §5) never race on the rotation decision.
func (p *Pool) Append(b []byte) (segmentID uint64, offset int64, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tail := p.segments[len(p.segments)-1]
	if tail.Size() >= p.maxSize {
		tail.Seal()
		next, err := segment.Open(filepath.Join(p.dir, seginfo.GenerateName(tail.ID()+1)), tail.ID()+1)
		if err != nil {
			return 0, 0, err
		}
		p.segments = append(p.segments, next)
		tail = next
		p.log.Infow("segment rotated", "newSegment", tail.ID())
	}

	off, err := tail.Append(b)
	if err != nil {
		return 0, 0, err
	}
	return tail.ID(), off, nil
}

// InsertMergeSegment inserts seg into the pool immediately before the
// segment identified by cutoffID (§4.H step 4).
func (p *Pool) InsertMergeSegment(seg *segment.Segment, cutoffID uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := len(p.segments)
	for i, s := range p.segments {
		if s.ID() == cutoffID {
			idx = i
			break
		}
	}
	p.segments = append(p.segments[:idx], append([]*segment.Segment{seg}, p.segments[idx:]...)...)
}

// RemoveStrictlyBefore deletes (closes + unlinks) every segment ordered
// before the segment named by beforeID, and drops them from the pool
// (§4.H step 5). It returns the IDs removed.
func (p *Pool) RemoveStrictlyBefore(beforeID uint64) ([]uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var removed []uint64
	kept := p.segments[:0:0]
	cutoffReached := false
	for _, s := range p.segments {
		if !cutoffReached && s.ID() != beforeID {
			if err := s.Remove(); err != nil {
				return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to remove merged segment").
					WithPath(s.Path())
			}
			removed = append(removed, s.ID())
			continue
		}
		cutoffReached = true
		kept = append(kept, s)
	}
	p.segments = kept
	return removed, nil
}

// Renumber renames every remaining segment file to the canonical
// 0..k ascending sequence (§4.H step 6) and returns the new tail plus a
// map from each segment's pre-renumber ID to its new one. Callers must use
// this map to redirect any locator referencing a renamed segment - index
// entries name segments by ID, and renumbering changes those IDs out from
// under them.
func (p *Pool) Renumber() (*segment.Segment, map[uint64]uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Move every segment whose ID changes to a temporary name first, so no
	// rename below lands on a file that another segment still occupies
	// (the merge segment's new name can be the cutoff segment's old one).
	staged := make([]*segment.Segment, len(p.segments))
	for i, s := range p.segments {
		staged[i] = s
		if s.ID() != uint64(i) {
			tmp, err := s.Rename(filepath.Join(p.dir, seginfo.GenerateName(uint64(i))+".renumber"), s.ID())
			if err != nil {
				return nil, nil, err
			}
			staged[i] = tmp
		}
	}

	remap := make(map[uint64]uint64, len(p.segments))
	renumbered := make([]*segment.Segment, 0, len(p.segments))
	for i, s := range staged {
		oldID := s.ID()
		newID := uint64(i)
		if oldID != newID {
			renamed, err := s.Rename(filepath.Join(p.dir, seginfo.GenerateName(newID)), newID)
			if err != nil {
				return nil, nil, err
			}
			s = renamed
		}
		remap[oldID] = newID
		renumbered = append(renumbered, s)
	}
	p.segments = renumbered

	tail := p.segments[len(p.segments)-1]
	tail.Unseal()
	return tail, remap, nil
}

// Close closes every open segment file.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for _, s := range p.segments {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
