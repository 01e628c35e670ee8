// Package filesys provides the small set of filesystem helpers exercised by
// the segment pool and segment-file discovery (pkg/seginfo): directory creation, glob-based
// directory listing, and existence checks. Trimmed from the teacher's wider
// toolkit (CopyDir, SearchFiles, ...) down to the subset FoxbatDB actually
// calls; see DESIGN.md for the dropped functions.
package filesys

import (
	"errors"
	"os"
	"path/filepath"
)

var ErrIsNotDir = errors.New("path isn't a directory")

// CreateDir creates a directory at dirPath with the given permissions.
//
// With force=false, a path that already exists (directory or file) returns
// nil without creating anything, and a stat failure other than not-exist
// is returned as is. With force=true, an existing directory proceeds
// without error and a path that exists as a file returns ErrIsNotDir.
func CreateDir(dirPath string, permission os.FileMode, force bool) error {
	stat, err := os.Stat(dirPath)
	if !force && !os.IsNotExist(err) {
		return err
	}
	if stat != nil && !stat.IsDir() {
		return ErrIsNotDir
	}
	if err := os.MkdirAll(dirPath, permission); err != nil {
		return err
	}
	return os.Chmod(dirPath, 0755)
}

// ReadDir returns the files matching the glob pattern dirName (which may
// itself embed a directory component, e.g. "/data/foxbat-*.db").
func ReadDir(dirName string) ([]string, error) {
	return filepath.Glob(dirName)
}

// Exists reports whether a file or directory is present at path.
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}
