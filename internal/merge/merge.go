// Package merge implements compaction (§4.H): rewriting every shard's live
// keys that point outside the current writable tail into a fresh segment,
// then swapping the segment pool so dead space is reclaimed.
//
// Grounded on original_source/src/log/datalog.cc (Merge, CreateMergeLogFile,
// ModifyDataFilesForMerge - transient foxbat-merge.db, insert-before-cutoff,
// delete-then-renumber) and shake-karrot-lightkafka/internal/retention for
// the Go idiom of a background file-rewriting sweep (here invoked
// synchronously, per §5's documented "merge blocks the reactor" contract).
package merge

import (
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/foxbatdb/foxbatdb/internal/keyindex"
	"github.com/foxbatdb/foxbatdb/internal/record"
	"github.com/foxbatdb/foxbatdb/internal/segment"
	"github.com/foxbatdb/foxbatdb/internal/segpool"
	"github.com/foxbatdb/foxbatdb/internal/shard"
	"github.com/foxbatdb/foxbatdb/pkg/seginfo"
)

// Shards is the merge-time view of the engine's shards.
type Shards interface {
	All() []*shard.Shard
}

// Run performs one synchronous merge pass over pool. It is single-threaded
// and blocks the caller for its whole duration, intentionally (§5).
func Run(pool *segpool.Pool, shards Shards, dir string, dbMaxNum int, keyMaxBytes, valMaxBytes uint64, log *zap.SugaredLogger) error {
	// Step 1-2: open the transient merge file and snapshot the cutoff -
	// the tail at the moment merge starts. Writes arriving during merge
	// (there are none, since merge blocks the reactor) would otherwise
	// race the cutoff snapshot.
	cutoff := pool.Tail()
	mergeSeg, err := segment.Open(filepath.Join(dir, seginfo.MergeName()), cutoff.ID()+1)
	if err != nil {
		return err
	}

	// Step 3: rewrite every live entry outside the cutoff segment.
	for _, sh := range shards.All() {
		idx := sh.Index()
		for _, kv := range idx.All() {
			loc := kv.Locator
			if loc.Segment == cutoff.ID() {
				continue
			}
			if loc.Expired(time.Now()) {
				continue
			}

			seg, ok := pool.Get(loc.Segment)
			if !ok {
				continue
			}
			rec, _, err := record.Decode(seg, loc.Offset, dbMaxNum, keyMaxBytes, valMaxBytes)
			if err != nil {
				continue
			}

			nowUs := time.Now().UnixMicro()
			newOffset, err := mergeSeg.Append(record.EncodeData(sh.DBIdx(), rec.Key, rec.Value, nowUs))
			if err != nil {
				return err
			}

			// Merge resets creation time rather than preserving the
			// original TTL budget (§9 open question, decided in
			// DESIGN.md: the spec's stated approximation is kept).
			idx.Put(kv.Key, &keyindex.Locator{
				Segment:  mergeSeg.ID(),
				Offset:   newOffset,
				Created:  time.Now(),
				ExpireMs: loc.ExpireMs,
			})
		}
	}
	mergeSeg.Seal()

	// Step 4: insert the merge segment immediately before the cutoff.
	pool.InsertMergeSegment(mergeSeg, cutoff.ID())

	// Step 5: delete every segment strictly before the merge segment. A
	// crash here before completion leaves the old files in place; the
	// next startup re-indexes them and tolerates the extra
	// foxbat-merge.db-turned-foxbat-<n>.db segment by last-write-wins
	// scan order (§9 open question, decided in DESIGN.md).
	if _, err := pool.RemoveStrictlyBefore(mergeSeg.ID()); err != nil {
		return err
	}

	// Steps 6-7: renumber to the canonical 0..k sequence and make the
	// last segment writable again. Renumbering changes segment IDs out
	// from under every locator that names one, so every shard's index
	// must be walked once more to redirect them.
	newTail, remap, err := pool.Renumber()
	if err != nil {
		return err
	}
	for _, sh := range shards.All() {
		for _, kv := range sh.Index().All() {
			if newID, ok := remap[kv.Locator.Segment]; ok {
				kv.Locator.Segment = newID
			}
		}
	}

	log.Infow("merge complete", "newTail", newTail.ID())
	return nil
}
