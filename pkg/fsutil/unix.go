//go:build linux || darwin

package fsutil

import "golang.org/x/sys/unix"

// FreeSpace returns the number of free bytes available on the
// filesystem containing path, or -1 if it cannot be determined,
// matching original_source's File::freeSpace contract (returns −1 if
// unknown rather than erroring the caller out of a best-effort check).
func FreeSpace(path string) (int64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return -1, nil
	}
	return int64(stat.Bavail) * int64(stat.Bsize), nil
}
