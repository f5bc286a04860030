// Package cleanupguard implements the scoped cleanup guard the repair
// coordinator arms before doing any destructive work, grounded on
// original_source's RepairFileDeleter: a resource whose destructor
// (here, Close, deferred immediately after construction) removes the
// reserved working directory unless the operation reached its commit
// point first.
package cleanupguard

import (
	"fmt"
	"log"
	"os"

	"github.com/dbrepair/dbrepair/pkg/durability"
)

// Guard cleans up a reserved directory on failure. Callers construct
// one and `defer guard.Close()` immediately; calling Commit before the
// deferred Close disarms it.
type Guard struct {
	dbName        string
	reservedPath  string
	durability    *durability.Manager
	closeDatabase func() error
	committed     bool
}

// New returns an armed Guard for reservedPath. durabilityMgr and
// closeDatabase are invoked during cleanup to match
// RepairFileDeleter's syncDataAndTruncateJournal + flushAll +
// closeDatabase sequence before removing the directory; either may be
// nil if there is nothing to flush or close yet.
func New(dbName, reservedPath string, durabilityMgr *durability.Manager, closeDatabase func() error) *Guard {
	return &Guard{
		dbName:        dbName,
		reservedPath:  reservedPath,
		durability:    durabilityMgr,
		closeDatabase: closeDatabase,
	}
}

// Commit disarms the guard: Close becomes a no-op.
func (g *Guard) Commit() {
	g.committed = true
}

// Close runs cleanup if the guard was never committed. It is safe to
// call multiple times; only the first call after an uncommitted guard
// does anything.
func (g *Guard) Close() error {
	if g.committed {
		return nil
	}
	g.committed = true // a single cleanup attempt, committed or not

	log.Printf("cleaning up failed repair db: %s path: %s", g.dbName, g.reservedPath)

	if g.durability != nil {
		if err := g.durability.SyncAndTruncateJournal(); err != nil {
			return fatalAbort(g.dbName, fmt.Errorf("syncing during repair cleanup: %w", err))
		}
		if err := g.durability.FlushAllFiles(true); err != nil {
			return fatalAbort(g.dbName, fmt.Errorf("flushing files during repair cleanup: %w", err))
		}
	}
	if g.closeDatabase != nil {
		if err := g.closeDatabase(); err != nil {
			return fatalAbort(g.dbName, fmt.Errorf("closing database during repair cleanup: %w", err))
		}
	}

	if err := os.RemoveAll(g.reservedPath); err != nil {
		return fatalAbort(g.dbName, fmt.Errorf("removing reserved path %s: %w", g.reservedPath, err))
	}
	return nil
}

// fatalAbort matches original_source's fassertFailed(17402): a repair
// that cannot even clean up after itself leaves the process in a state
// no caller should keep running in. It logs and terminates the process
// rather than returning, since there is no reservedPath left to hand
// back to a caller for a later retry.
func fatalAbort(dbName string, err error) error {
	log.Printf("ERROR: repair cleanup for %s failed (code 17402), aborting: %v", dbName, err)
	os.Exit(1)
	return err // unreachable, kept so the function remains a normal error-returning signature
}
