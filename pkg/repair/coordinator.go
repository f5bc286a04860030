// Package repair implements the top-level database repair procedure:
// clone a database's collections and indexes into a freshly built
// namespace catalog and extent set, then swap the rebuilt files into
// place. Grounded phase-for-phase on original_source's repairDatabase.
package repair

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dbrepair/dbrepair/pkg/cleanupguard"
	"github.com/dbrepair/dbrepair/pkg/dbengine"
	"github.com/dbrepair/dbrepair/pkg/domain"
	"github.com/dbrepair/dbrepair/pkg/durability"
	"github.com/dbrepair/dbrepair/pkg/fileallocator"
	"github.com/dbrepair/dbrepair/pkg/fileenum"
	"github.com/dbrepair/dbrepair/pkg/fileops"
	"github.com/dbrepair/dbrepair/pkg/fsutil"
	"github.com/dbrepair/dbrepair/pkg/indexing"
	"github.com/dbrepair/dbrepair/pkg/opctx"
	"github.com/dbrepair/dbrepair/pkg/patharbiter"
)

// Options controls how a repair disposes of the original files once
// the rebuild succeeds.
type Options struct {
	// PreserveClonedFilesOnFailure skips installing the Cleanup Guard,
	// leaving the reserved directory behind for operator inspection if
	// the repair fails partway through.
	PreserveClonedFilesOnFailure bool
	// BackupOriginalFiles renames originals to ".bak" inside the
	// reserved directory instead of deleting them, and the reserved
	// directory is kept after a successful repair.
	BackupOriginalFiles bool
}

// Coordinator runs the repair procedure for databases rooted at DBPath,
// using RepairPath as the reserved-directory root.
type Coordinator struct {
	DBPath         string
	RepairPath     string
	DirectoryPerDB bool
	Durability     *durability.Manager

	// FreeSpaceFunc overrides the free-space probe used by the
	// capacity check (phase 3). Defaults to fsutil.FreeSpace; tests
	// substitute a fixed value to exercise the OutOfDiskSpace path
	// without needing to fill a real filesystem.
	FreeSpaceFunc func(path string) (int64, error)
}

// NewCoordinator returns a Coordinator. durabilityMgr may be shared
// across repairs of different databases; the process-wide repair flag
// (opctx.MarkRepairInProgress) is what actually enforces at-most-one
// concurrent repair, not the Coordinator value itself.
func NewCoordinator(dbPath, repairPath string, directoryPerDB bool, durabilityMgr *durability.Manager) *Coordinator {
	return &Coordinator{
		DBPath:         dbPath,
		RepairPath:     repairPath,
		DirectoryPerDB: directoryPerDB,
		Durability:     durabilityMgr,
	}
}

// catalogItem is one entry the catalog scan phase records.
type catalogItem struct {
	name string
	opts domain.CollectionOptions
}

// Repair runs the full fourteen-phase procedure against dbName. opCtx
// must already be scoped to dbName and c.DBPath; violating that, or
// calling Repair while a background operation is registered against
// dbName, is a programming error and panics rather than returning an
// error, matching original_source's verify(!inDBRepair) treatment of
// preconditions as opposed to ordinary failure modes.
func (c *Coordinator) Repair(opCtx *opctx.OpContext, dbName string, opts Options) error {
	assertPrecondition(opCtx.CurrentDB() == dbName,
		"operation context's current database must equal the database being repaired")
	assertPrecondition(opCtx.Root() == c.DBPath,
		"operation context's root must equal the configured data path")
	if err := opctx.DefaultRegistry().AssertNoBackgroundOp(dbName); err != nil {
		panic("repair precondition violated: " + err.Error())
	}

	// Phase 1: setup.
	dbName = domain.NormalizeDBName(dbName)
	releaseRepairFlag, err := opctx.MarkRepairInProgress()
	if err != nil {
		return err
	}
	defer releaseRepairFlag()

	// Phase 2: durability fence #1.
	if err := c.Durability.SyncAndTruncateJournal(); err != nil {
		return fmt.Errorf("durability fence before repair of %s: %w", dbName, err)
	}

	// Phase 3: capacity check.
	totalSize, err := c.dbSize(dbName)
	if err != nil {
		return fmt.Errorf("computing size of %s: %w", dbName, err)
	}
	freeSpaceFunc := c.FreeSpaceFunc
	if freeSpaceFunc == nil {
		freeSpaceFunc = fsutil.FreeSpace
	}
	free, err := freeSpaceFunc(c.RepairPath)
	if err != nil {
		return fmt.Errorf("checking free space on %s: %w", c.RepairPath, err)
	}
	if free >= 0 && free < totalSize {
		return &domain.OutOfDiskSpaceError{TotalSize: totalSize, FreeSize: free}
	}

	// Phase 4: interrupt check.
	if err := opCtx.CheckForInterrupt(false); err != nil {
		return err
	}

	// Phase 5: reserved directory + cleanup guard.
	prefix := "_tmp"
	if opts.PreserveClonedFilesOnFailure || opts.BackupOriginalFiles {
		prefix = "backup"
	}
	reservedPath, err := patharbiter.AllocateReserved(c.RepairPath, prefix)
	if err != nil {
		return fmt.Errorf("allocating reserved directory: %w", err)
	}

	var guard *cleanupguard.Guard
	if !opts.PreserveClonedFilesOnFailure {
		guard = cleanupguard.New(dbName, reservedPath, c.Durability, func() error {
			return dbengine.Default().CloseDatabase(dbName, reservedPath)
		})
		defer guard.Close()
	}

	// Phase 6: open original & temp databases.
	original, _, err := dbengine.Default().GetOrCreate(dbName, c.DBPath, c.DirectoryPerDB)
	if err != nil {
		return fmt.Errorf("opening original database %s: %w", dbName, err)
	}
	if !original.Exists() {
		return domain.ErrNamespaceNotFound
	}

	temp, tempAlreadyOpen, err := dbengine.Default().GetOrCreate(dbName, reservedPath, c.DirectoryPerDB)
	if err != nil {
		return fmt.Errorf("opening temporary database for %s: %w", dbName, err)
	}
	assertPrecondition(!tempAlreadyOpen, "temporary database handle must be freshly created")

	c.Durability.Track(original)
	c.Durability.Track(temp)

	// Phase 7: catalog scan.
	items, err := scanCatalog(original, dbName)
	if err != nil {
		return fmt.Errorf("scanning namespace catalog of %s: %w", dbName, err)
	}

	// Phase 8: per-collection rebuild.
	for _, item := range items {
		if err := c.rebuildCollection(opCtx, original, temp, item); err != nil {
			return fmt.Errorf("rebuilding collection %s: %w", item.name, err)
		}
	}

	// Phase 9: durability fence #2.
	if err := c.Durability.SyncAndTruncateJournal(); err != nil {
		return fmt.Errorf("durability fence after rebuild of %s: %w", dbName, err)
	}
	if err := c.Durability.FlushAllFiles(true); err != nil {
		return fmt.Errorf("flushing rebuilt files for %s: %w", dbName, err)
	}
	if err := dbengine.Default().CloseDatabase(dbName, reservedPath); err != nil {
		return fmt.Errorf("closing temporary database for %s: %w", dbName, err)
	}

	// Phase 10: close original.
	if err := dbengine.Default().CloseDatabase(dbName, c.DBPath); err != nil {
		return fmt.Errorf("closing original database %s: %w", dbName, err)
	}

	// Phase 11: dispose originals.
	if opts.BackupOriginalFiles {
		if err := c.renameForBackup(dbName, reservedPath); err != nil {
			return fmt.Errorf("backing up originals of %s: %w", dbName, err)
		}
	} else {
		if err := c.deleteDataFiles(dbName); err != nil {
			return fmt.Errorf("deleting originals of %s: %w", dbName, err)
		}
	}

	// Phase 12: commit point.
	if guard != nil {
		guard.Commit()
	}

	// Phase 13: install rebuilt files.
	if err := c.installRebuiltFiles(dbName, reservedPath); err != nil {
		return fmt.Errorf("installing rebuilt files for %s: %w", dbName, err)
	}

	// Phase 14: cleanup.
	if !opts.BackupOriginalFiles {
		if err := os.RemoveAll(reservedPath); err != nil {
			return fmt.Errorf("removing reserved directory %s: %w", reservedPath, err)
		}
	}
	return nil
}

func (c *Coordinator) rebuildCollection(opCtx *opctx.OpContext, original, temp *dbengine.DbHandle, item catalogItem) error {
	target, err := temp.CreateCollection(item.name, item.opts, true, false)
	if err != nil {
		return err
	}

	src, ok := original.GetCollection(item.name)
	if !ok {
		return fmt.Errorf("collection %s listed in catalog but not found", item.name)
	}
	specs := src.IndexSpecs()

	builder := indexing.NewMultiIndexBuilder(temp.IndexEngine(), item.name)
	if err := builder.Init(specs); err != nil {
		return err
	}

	iter, err := src.Iterator(dbengine.ZeroLoc, false, dbengine.Forward)
	if err != nil {
		return err
	}
	for {
		doc, loc, more, err := iter.Next()
		if err != nil {
			return err
		}
		if !more {
			break
		}
		if loc.IsNull() {
			continue
		}

		if _, err := target.InsertDocument(doc); err != nil {
			return err
		}
		if err := builder.Insert(docKey(doc, loc), doc); err != nil {
			return err
		}

		if err := c.Durability.CommitIfNeeded(); err != nil {
			return err
		}
		if err := opCtx.CheckForInterrupt(true); err != nil {
			return err
		}
	}

	indexNames := builder.Commit()
	_ = indexNames
	return temp.SetIndexSpecs(item.name, specs)
}

// scanCatalog reads the original database's system.namespaces
// pseudo-collection, recording every normal collection's name and
// parsed options. A database with no collections yields an empty,
// non-error result.
func scanCatalog(original *dbengine.DbHandle, dbName string) ([]catalogItem, error) {
	nsColl, ok := original.GetCollection(dbName + ".system.namespaces")
	if !ok {
		return nil, nil
	}

	iter, err := nsColl.Iterator(dbengine.ZeroLoc, false, dbengine.Forward)
	if err != nil {
		return nil, err
	}

	var items []catalogItem
	for {
		doc, _, more, err := iter.Next()
		if err != nil {
			return nil, err
		}
		if !more {
			break
		}

		name, _ := doc["name"].(string)
		collPart := domain.CollectionPart(name)
		if collPart == "system.indexes" || collPart == "system.namespaces" {
			continue
		}
		if !domain.IsNormalCollection(name) {
			continue
		}

		var rawOpts map[string]interface{}
		if m, ok := doc["options"].(map[string]interface{}); ok {
			rawOpts = m
		}
		parsedOpts, err := domain.ParseCollectionOptions(rawOpts)
		if err != nil {
			return nil, err
		}
		items = append(items, catalogItem{name: name, opts: parsedOpts})
	}
	return items, nil
}

// dbSize sums every file original_source's enumerator would find for
// dbName under the original data path.
func (c *Coordinator) dbSize(dbName string) (int64, error) {
	var total int64
	sizer := fileenum.Func{
		Name: "checking size",
		Fn: func(path string) (bool, error) {
			size, handled, err := fileops.MeasureSize(path)
			if err != nil {
				return false, err
			}
			if handled {
				total += size
			}
			return handled, nil
		},
	}
	if err := fileenum.ApplyToDBFiles(dbName, sizer, false, c.DBPath, c.DirectoryPerDB); err != nil {
		return 0, err
	}
	return total, nil
}

// renameForBackup moves every original file for dbName into the
// reserved directory with ".bak" appended, matching original_source's
// _renameForBackup.
func (c *Coordinator) renameForBackup(dbName, reservedPath string) error {
	newDir := reservedPath
	if c.DirectoryPerDB {
		newDir = filepath.Join(reservedPath, dbName)
		if err := os.MkdirAll(newDir, 0o755); err != nil {
			return err
		}
	}
	renamer := fileenum.Func{
		Name: "renaming",
		Fn: func(path string) (bool, error) {
			target := filepath.Join(newDir, filepath.Base(path)+".bak")
			return fileops.RenameWithFallback(path, target)
		},
	}
	return fileenum.ApplyToDBFiles(dbName, renamer, true, c.DBPath, c.DirectoryPerDB)
}

// deleteDataFiles removes every original file for dbName, short-
// circuiting to a single directory removal in directory-per-db mode
// and recreating an empty directory afterward, matching
// original_source's _deleteDataFiles.
func (c *Coordinator) deleteDataFiles(dbName string) error {
	if c.DirectoryPerDB {
		fileallocator.Default.WaitUntilFinished()
		dbDir := filepath.Join(c.DBPath, dbName)
		if err := os.RemoveAll(dbDir); err != nil {
			return fmt.Errorf("removing directory %s: %w", dbDir, err)
		}
		return os.MkdirAll(dbDir, 0o755)
	}

	deleter := fileenum.Func{
		Name: "remove",
		Fn: func(path string) (bool, error) {
			return fileops.Remove(path)
		},
	}
	return fileenum.ApplyToDBFiles(dbName, deleter, true, c.DBPath, c.DirectoryPerDB)
}

// installRebuiltFiles moves every non-".bak" file out of the reserved
// directory and into place at the data path, matching
// original_source's _replaceWithRecovered.
func (c *Coordinator) installRebuiltFiles(dbName, reservedPath string) error {
	sourceDir := reservedPath
	if c.DirectoryPerDB {
		sourceDir = filepath.Join(reservedPath, dbName)
	}

	entries, err := os.ReadDir(sourceDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("listing %s: %w", sourceDir, err)
	}

	targetDir := c.DBPath
	if c.DirectoryPerDB {
		targetDir = filepath.Join(c.DBPath, dbName)
		if err := os.MkdirAll(targetDir, 0o755); err != nil {
			return err
		}
	}

	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), ".bak") {
			continue
		}
		from := filepath.Join(sourceDir, entry.Name())
		to := filepath.Join(targetDir, entry.Name())
		if _, err := fileops.RenameWithFallback(from, to); err != nil {
			return fmt.Errorf("installing %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// docKey derives the identifier a MultiIndexBuilder uses to report
// collisions: the document's _id when present, else its source
// location, which is always unique within a collection.
func docKey(doc domain.Document, loc dbengine.Loc) string {
	if id, ok := doc["_id"]; ok {
		return fmt.Sprintf("%v", id)
	}
	return loc.String()
}

func assertPrecondition(cond bool, msg string) {
	if !cond {
		panic("repair precondition violated: " + msg)
	}
}
