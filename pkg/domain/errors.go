package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the repair procedure. Callers compare with
// errors.Is, the way the rest of this module wraps errors with fmt.Errorf's
// %w verb instead of inventing an error-code type.
var (
	// ErrNamespaceNotFound is returned when the original database does not
	// exist at the configured data path.
	ErrNamespaceNotFound = errors.New("database does not exist to repair")

	// ErrRepairInProgress is returned when a second repair is attempted
	// while one is already running in this process.
	ErrRepairInProgress = errors.New("a repair is already in progress in this process")

	// ErrInterrupted is returned when a caller-requested interrupt fires
	// between document copies.
	ErrInterrupted = errors.New("repair interrupted")
)

// OutOfDiskSpaceError reports the repair path's free space alongside the
// total size the rebuild would need, per the capacity check in
// repair.Coordinator.
type OutOfDiskSpaceError struct {
	TotalSize int64
	FreeSize  int64
}

func (e *OutOfDiskSpaceError) Error() string {
	return fmt.Sprintf(
		"cannot repair database having size: %d (bytes) because free disk space is: %d (bytes)",
		e.TotalSize, e.FreeSize,
	)
}

// Is lets errors.Is(err, ErrOutOfDiskSpace) match concrete instances.
func (e *OutOfDiskSpaceError) Is(target error) bool {
	return target == ErrOutOfDiskSpace
}

// ErrOutOfDiskSpace is the sentinel used with errors.Is against an
// *OutOfDiskSpaceError.
var ErrOutOfDiskSpace = errors.New("insufficient free space on repair path")
