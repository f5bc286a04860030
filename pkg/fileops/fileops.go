// Package fileops provides the individual file operations the repair
// coordinator applies across a database's files: removing, measuring,
// and renaming-with-a-cross-partition-fallback. Grounded on
// original_source's file-scoped FileOp subclasses (the anonymous
// deleter in _deleteDataFiles, SizeAccumulator, Renamer, Replacer) and
// boostRenameWrapper.
package fileops

import (
	"fmt"
	"io"
	"os"
)

// Remove deletes path if it exists, reporting (handled, err) the way
// every FileOp.apply does: handled is true only if the path existed
// and the operation actually ran.
func Remove(path string) (bool, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	if err := os.Remove(path); err != nil {
		return false, fmt.Errorf("removing %s: %w", path, err)
	}
	return true, nil
}

// MeasureSize returns path's size in bytes, or 0 with handled=false if
// it does not exist.
func MeasureSize(path string) (size int64, handled bool, err error) {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("stat %s: %w", path, err)
	}
	return fi.Size(), true, nil
}

// RenameWithFallback moves from to to, falling back to a copy-then-
// delete whenever the rename fails, typically because the two paths
// live on different filesystems (os.Rename returns a LinkError wrapping
// syscall.EXDEV in that case), matching original_source's
// boostRenameWrapper. Returns (handled, err) like the other FileOps:
// handled is false if from does not exist.
func RenameWithFallback(from, to string) (bool, error) {
	if _, err := os.Stat(from); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", from, err)
	}

	if err := os.Rename(from, to); err == nil {
		return true, nil
	}

	if err := copyFile(from, to); err != nil {
		return false, fmt.Errorf("copying %s to %s after cross-device rename failure: %w", from, to, err)
	}
	if err := os.Remove(from); err != nil {
		return false, fmt.Errorf("removing %s after copy to %s: %w", from, to, err)
	}
	return true, nil
}

func copyFile(from, to string) error {
	src, err := os.Open(from)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(to, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return err
	}
	return dst.Sync()
}
