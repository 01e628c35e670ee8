// Package seginfo provides the filename grammar for FoxbatDB data-log
// segments: "foxbat-<n>.db", where <n> is the segment's sequence number
// (§3 Segment, §6 segment-file format).
//
// Adapted from the teacher's prefix_NNNNN_timestamp.seg grammar: the
// timestamp component is dropped (segment identity is the sequence number
// alone, per the original source's BuildLogFileNameByIdx /
// CFileNamePrefix+CFileNameSuffix in original_source/src/log/datalog.cc)
// and the regex in §6 (foxbat-[0-9]+\.db) replaces the old glob pattern.
package seginfo

import (
	"fmt"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/foxbatdb/foxbatdb/pkg/filesys"
)

const (
	prefix    = "foxbat-"
	suffix    = ".db"
	mergeName = "foxbat-merge.db"
)

var namePattern = regexp.MustCompile(`^foxbat-([0-9]+)\.db$`)

// GenerateName returns the canonical filename for segment id.
func GenerateName(id uint64) string {
	return fmt.Sprintf("%s%d%s", prefix, id, suffix)
}

// MergeName returns the transient merge-segment filename (§4.H step 1).
func MergeName() string {
	return mergeName
}

// ParseSegmentID extracts the sequence number from a segment filename
// (the base name, not a full path). It returns false if name does not
// match the foxbat-<n>.db grammar.
func ParseSegmentID(name string) (uint64, bool) {
	m := namePattern.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// Discover scans dir for segment files matching the naming grammar and
// returns their IDs sorted ascending. Directories that do not yet exist
// are treated as empty (the pool creates segment-0 in that case).
func Discover(dir string) ([]uint64, error) {
	exists, err := filesys.Exists(dir)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	matches, err := filesys.ReadDir(filepath.Join(dir, prefix+"*"+suffix))
	if err != nil {
		return nil, err
	}

	ids := make([]uint64, 0, len(matches))
	for _, m := range matches {
		id, ok := ParseSegmentID(filepath.Base(m))
		if !ok {
			continue
		}
		ids = append(ids, id)
	}

	// Numeric sort: lexicographic sort on the raw filenames only works
	// once IDs share digit width, which isn't guaranteed as the pool
	// grows past 9 -> 10 segments, so sort the parsed IDs directly.
	slices.Sort(ids)
	return ids, nil
}

// IsSegmentFile reports whether name matches the canonical grammar.
func IsSegmentFile(name string) bool {
	return namePattern.MatchString(name)
}

// HasMergePrefix reports whether name is the transient merge file.
func HasMergePrefix(name string) bool {
	return strings.HasPrefix(name, "foxbat-merge")
}
