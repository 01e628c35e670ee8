package oplog

import (
	"io"
	"os"

	"github.com/foxbatdb/foxbatdb/pkg/errors"
	"github.com/foxbatdb/foxbatdb/pkg/respcodec"
)

// Replay reads every RESP-encoded command from the operation log at path
// and invokes apply with its argument vector, in file order. It returns the
// number of commands applied. This backs the LOAD admin operation
// (SPEC_FULL.md item 3); it is never called during storage-engine startup
// recovery, which relies solely on the data-log segments.
func Replay(path string, apply func(args []string) error) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to open operation log for replay").
			WithPath(path)
	}
	defer f.Close()

	r := respcodec.NewReader(f)
	count := 0
	for {
		args, err := r.ReadCommand()
		if err == io.EOF {
			break
		}
		if err != nil {
			if isEOFLike(err) {
				break
			}
			return count, err
		}
		if err := apply(args); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// isEOFLike reports whether err ultimately wraps io.EOF, which readLine
// surfaces as a StorageError rather than the bare sentinel since it always
// annotates I/O failures. A clean end-of-file while between commands is the
// normal, successful end of replay, not a corruption.
func isEOFLike(err error) bool {
	for err != nil {
		if err == io.EOF {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
