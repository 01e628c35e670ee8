// Package recovery implements startup recovery (§4.G): rebuilding every
// shard's key index by scanning all segments in order, honoring
// transaction boundaries (BEGIN/DATA.../FINISH|FAILED).
//
// Grounded on original_source/src/log/datalog.cc (LoadHistoryRecordsFromDisk,
// LoadHistoryTxFromDisk) for the exact scan algorithm, including the
// "stop segment on any anomaly" rule.
package recovery

import (
	"time"

	"go.uber.org/zap"

	"github.com/foxbatdb/foxbatdb/internal/keyindex"
	"github.com/foxbatdb/foxbatdb/internal/record"
	"github.com/foxbatdb/foxbatdb/internal/segment"
	"github.com/foxbatdb/foxbatdb/internal/segpool"
	"github.com/foxbatdb/foxbatdb/internal/shard"
)

// Shards is the recovery-time view of the engine's shards, indexable by
// dbIdx.
type Shards interface {
	ByIndex(dbIdx uint8) (*shard.Shard, bool)
}

// Run scans every segment in pool, in ascending ID order, replaying DATA
// records and transaction markers into the shard named by each record's
// dbIdx (§4.G). Structural or CRC failures truncate the scan of the
// current segment and move on to the next one; recovery never fails the
// whole startup over a torn tail.
func Run(pool *segpool.Pool, shards Shards, dbMaxNum int, keyMaxBytes, valMaxBytes uint64, log *zap.SugaredLogger) error {
	for _, seg := range pool.Segments() {
		if err := scanSegment(seg, shards, dbMaxNum, keyMaxBytes, valMaxBytes, log); err != nil {
			return err
		}
	}
	return nil
}

// bufferedRecord is one DATA record buffered while speculatively reading a
// transaction body (§4.G step 3).
type bufferedRecord struct {
	offset int64
	rec    *record.Record
}

func scanSegment(seg *segment.Segment, shards Shards, dbMaxNum int, keyMaxBytes, valMaxBytes uint64, log *zap.SugaredLogger) error {
	var offset int64
	size := seg.Size()

	for offset < size {
		rec, n, err := record.Decode(seg, offset, dbMaxNum, keyMaxBytes, valMaxBytes)
		if err != nil {
			// Torn tail or structural corruption: stop scanning this
			// segment and move to the next one (§4.A, §7).
			log.Infow("segment scan stopped", "segment", seg.ID(), "offset", offset, "reason", err.Error())
			return nil
		}

		switch rec.Header.State {
		case record.StateData:
			apply(shards, rec.Header.DBIdx, seg.ID(), offset, rec)
			offset += n

		case record.StateBegin:
			count := rec.Header.KeySize
			bodyOffset := offset + n
			buffered, bodySize, ok := readTxBody(seg, bodyOffset, count, dbMaxNum, keyMaxBytes, valMaxBytes)
			if !ok {
				return nil
			}

			markerRec, markerN, err := record.Decode(seg, bodyOffset+bodySize, dbMaxNum, keyMaxBytes, valMaxBytes)
			if err != nil {
				return nil
			}

			switch markerRec.Header.State {
			case record.StateFinish:
				for _, br := range buffered {
					apply(shards, br.rec.Header.DBIdx, seg.ID(), br.offset, br.rec)
				}
				offset = bodyOffset + bodySize + markerN
			case record.StateFailed:
				// Discard the buffer; the tx never happened (§9 rollback
				// note: recovery trusts this marker to skip the DATA
				// records already on disk).
				offset = bodyOffset + bodySize + markerN
			default:
				return nil
			}

		case record.StateFailed, record.StateFinish:
			// A lone marker not preceded by BEGIN in this scan: stop
			// (§4.G step 4).
			return nil
		}
	}
	return nil
}

// readTxBody speculatively reads count DATA records starting at offset,
// buffering them without applying. A FAILED marker met before count DATA
// records ends the body early: nothing is returned for buffering and ok is
// true, so the caller decodes that marker next and discards the
// transaction. It returns false if any other record fails to decode as DATA.
func readTxBody(seg *segment.Segment, offset int64, count uint64, dbMaxNum int, keyMaxBytes, valMaxBytes uint64) ([]bufferedRecord, int64, bool) {
	buffered := make([]bufferedRecord, 0, count)
	var consumed int64
	for i := uint64(0); i < count; i++ {
		rec, n, err := record.Decode(seg, offset+consumed, dbMaxNum, keyMaxBytes, valMaxBytes)
		if err == nil && rec.Header.State == record.StateFailed {
			return nil, consumed, true
		}
		if err != nil || rec.Header.State != record.StateData {
			return nil, 0, false
		}
		buffered = append(buffered, bufferedRecord{offset: offset + consumed, rec: rec})
		consumed += n
	}
	return buffered, consumed, true
}

// apply installs or removes an index entry for one DATA record, honoring
// tombstone replay (§4.G step 2).
func apply(shards Shards, dbIdx uint8, segID uint64, offset int64, rec *record.Record) {
	sh, ok := shards.ByIndex(dbIdx)
	if !ok {
		return
	}
	key := string(rec.Key)
	if rec.Header.ValSize == 0 {
		sh.RemoveLocator(key)
		return
	}
	sh.InstallLocator(key, &keyindex.Locator{
		Segment:  segID,
		Offset:   offset,
		Created:  time.Now(),
		ExpireMs: keyindex.Never,
	})
}
