// Package patharbiter allocates a fresh, collision-free working
// directory under the configured repair path, grounded line-for-line
// on original_source's uniqueReservedPath.
package patharbiter

import (
	"fmt"
	"os"
	"path/filepath"
)

// AllocateReserved probes repairRoot for the first "<prefix>_repairDatabase_N"
// directory that does not yet exist, creates it, and returns its path.
// prefix is "backup" when the caller wants the clone preserved on
// failure (preserveClonedFilesOnFailure or backupOriginalFiles) and
// "_tmp" otherwise, exactly as original_source chooses between them.
func AllocateReserved(repairRoot, prefix string) (string, error) {
	if err := os.MkdirAll(repairRoot, 0o755); err != nil {
		return "", fmt.Errorf("creating repair root %s: %w", repairRoot, err)
	}

	for i := 0; ; i++ {
		candidate := filepath.Join(repairRoot, fmt.Sprintf("%s_repairDatabase_%d", prefix, i))
		if _, err := os.Stat(candidate); err == nil {
			continue
		} else if !os.IsNotExist(err) {
			return "", fmt.Errorf("probing %s: %w", candidate, err)
		}

		if err := os.Mkdir(candidate, 0o755); err != nil {
			if os.IsExist(err) {
				continue
			}
			return "", fmt.Errorf("creating reserved directory %s: %w", candidate, err)
		}
		return candidate, nil
	}
}
