// Package fileenum walks a database's on-disk files the way
// original_source's _applyOpToDataFiles does: the namespace catalog
// file first, then numbered extent files starting at 0, tolerating up
// to ten consecutive missing extents before concluding the database
// has no more files.
package fileenum

import (
	"fmt"
	"path/filepath"

	"github.com/dbrepair/dbrepair/pkg/fileallocator"
)

// maxExtentFiles bounds the enumeration the same defensive way
// original_source's DiskLoc::MaxFiles bounds its own loop: a database
// this fragmented indicates corruption, not a legitimately large
// dataset.
const maxExtentFiles = 16384

// missingFileTolerance is how many consecutive absent extent numbers
// the enumerator accepts before stopping, matching original_source's
// "extra" defensive counter.
const missingFileTolerance = 10

// FileOp is one operation applicable to every file in a database: the
// Go counterpart of original_source's abstract FileOp class. Apply
// reports whether path existed and the operation ran against it.
type FileOp interface {
	Apply(path string) (handled bool, err error)
	OpName() string
}

// Func adapts a plain function into a FileOp.
type Func struct {
	Name string
	Fn   func(path string) (handled bool, err error)
}

func (f Func) Apply(path string) (bool, error) { return f.Fn(path) }
func (f Func) OpName() string                  { return f.Name }

// ApplyToDBFiles applies op to db's namespace catalog file and then to
// every numbered extent file, starting at 0, until missingFileTolerance
// consecutive files are absent. When afterAllocator is true it first
// waits for fileallocator.Default to drain any in-flight preallocation,
// matching spec.md's afterAllocator contract.
func ApplyToDBFiles(db string, op FileOp, afterAllocator bool, root string, directoryPerDB bool) error {
	if afterAllocator {
		fileallocator.Default.WaitUntilFinished()
	}

	dir := root
	if directoryPerDB {
		dir = filepath.Join(root, db)
	}

	nsPath := filepath.Join(dir, db+".ns")
	if _, err := safeApply(op, nsPath); err != nil {
		return err
	}

	extra := missingFileTolerance
	for i := 0; ; i++ {
		if i > maxExtentFiles {
			return fmt.Errorf("database %s: file enumeration exceeded %d extent files, aborting", db, maxExtentFiles)
		}
		path := filepath.Join(dir, fmt.Sprintf("%s.%d", db, i))
		handled, err := safeApply(op, path)
		if err != nil {
			return err
		}
		if handled {
			extra = missingFileTolerance
		} else {
			extra--
			if extra <= 0 {
				break
			}
		}
	}
	return nil
}

// safeApply recovers a panicking FileOp into an error, the Go
// counterpart of original_source's MONGO_ASSERT_ON_EXCEPTION wrapping
// each fo.apply() call.
func safeApply(op FileOp, path string) (handled bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("file operation %q on %s panicked: %v", op.OpName(), path, r)
		}
	}()
	return op.Apply(path)
}
