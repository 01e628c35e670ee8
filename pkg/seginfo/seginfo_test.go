package seginfo

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGenerateName(t *testing.T) {
	if got := GenerateName(7); got != "foxbat-7.db" {
		t.Errorf("GenerateName(7) = %q, want %q", got, "foxbat-7.db")
	}
}

func TestParseSegmentID(t *testing.T) {
	id, ok := ParseSegmentID("foxbat-42.db")
	if !ok || id != 42 {
		t.Errorf("ParseSegmentID = %d, %v, want 42, true", id, ok)
	}

	if _, ok := ParseSegmentID("foxbat-merge.db"); ok {
		t.Error("ParseSegmentID accepted the merge filename")
	}
	if _, ok := ParseSegmentID("not-a-segment.txt"); ok {
		t.Error("ParseSegmentID accepted a non-matching filename")
	}
}

func TestDiscover_sortsNumericallyNotLexicographically(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"foxbat-2.db", "foxbat-10.db", "foxbat-1.db"} {
		if err := os.WriteFile(filepath.Join(dir, n), nil, 0o644); err != nil {
			t.Fatalf("write %s: %v", n, err)
		}
	}
	// Non-segment files must be ignored.
	os.WriteFile(filepath.Join(dir, "foxbat-merge.db"), nil, 0o644)
	os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0o644)

	ids, err := Discover(dir)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	want := []uint64{1, 2, 10}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %d, want %d", i, ids[i], want[i])
		}
	}
}

func TestDiscover_missingDirIsEmpty(t *testing.T) {
	ids, err := Discover(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("Discover() on missing dir error = %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("ids = %v, want empty", ids)
	}
}

func TestIsSegmentFile(t *testing.T) {
	if !IsSegmentFile("foxbat-0.db") {
		t.Error("IsSegmentFile(foxbat-0.db) = false, want true")
	}
	if IsSegmentFile("foxbat-merge.db") {
		t.Error("IsSegmentFile(foxbat-merge.db) = true, want false")
	}
}

func TestHasMergePrefix(t *testing.T) {
	if !HasMergePrefix(MergeName()) {
		t.Error("HasMergePrefix(MergeName()) = false, want true")
	}
	if HasMergePrefix("foxbat-3.db") {
		t.Error("HasMergePrefix(foxbat-3.db) = true, want false")
	}
}
