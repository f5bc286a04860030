package dbengine

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/dbrepair/dbrepair/pkg/domain"
	"github.com/dbrepair/dbrepair/pkg/indexing"
)

// DbHolder is the process-wide registry of open databases, the
// rebuilt engine's analogue of the teacher's single in-process
// StorageEngine instance, generalized to track more than one database
// open at once (the original and the temporary rebuild target are
// both open for the lifetime of a repair).
type DbHolder struct {
	mu      sync.Mutex
	handles map[string]*DbHandle
}

var defaultHolder = &DbHolder{handles: make(map[string]*DbHandle)}

// Default returns the process-wide DbHolder.
func Default() *DbHolder { return defaultHolder }

func holderKey(root, name string) string { return root + "\x00" + name }

// Get returns an already-open handle for name under root, if any.
func (h *DbHolder) Get(name, root string) (*DbHandle, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	dh, ok := h.handles[holderKey(root, name)]
	return dh, ok
}

// GetOrCreate opens (or returns the already-open) handle for name
// under root, loading its namespace catalog from disk if present. The
// bool result reports whether the handle already existed.
func (h *DbHolder) GetOrCreate(name, root string, directoryPerDB bool) (*DbHandle, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := holderKey(root, name)
	if dh, ok := h.handles[key]; ok {
		return dh, true, nil
	}

	dh, err := openDbHandle(name, root, directoryPerDB)
	if err != nil {
		return nil, false, err
	}
	h.handles[key] = dh
	return dh, false, nil
}

// CloseDatabase flushes and forgets name under root.
func (h *DbHolder) CloseDatabase(name, root string) error {
	h.mu.Lock()
	dh, ok := h.handles[holderKey(root, name)]
	if ok {
		delete(h.handles, holderKey(root, name))
	}
	h.mu.Unlock()
	if !ok {
		return nil
	}
	return dh.Close()
}

// DbHandle is one open database: its namespace catalog, index engine,
// and the extent-file writers backing its collections. Bookkeeping is
// adapted from the teacher's per-collection CollectionInfo cache
// (pkg/storage/collection.go), generalized from one flat keyspace to a
// catalog of namespaces each owning their own extent files.
type DbHandle struct {
	Name           string
	Root           string
	DirectoryPerDB bool

	mu       sync.RWMutex
	catalog  map[string]CatalogEntry
	indexEng *indexing.IndexEngine
	writers  map[int]*os.File
	dirty    bool
}

func openDbHandle(name, root string, directoryPerDB bool) (*DbHandle, error) {
	dh := &DbHandle{
		Name:           name,
		Root:           root,
		DirectoryPerDB: directoryPerDB,
		indexEng:       indexing.NewIndexEngine(),
		writers:        make(map[int]*os.File),
	}
	catalog, err := loadCatalog(dh.nsPath())
	if err != nil {
		return nil, fmt.Errorf("loading namespace catalog for %s: %w", name, err)
	}
	dh.catalog = catalog
	for ns, entry := range catalog {
		for _, spec := range entry.Indexes {
			_ = dh.indexEng.CreateIndex(ns, spec.Name)
		}
	}
	return dh, nil
}

func (dh *DbHandle) dbDir() string {
	if dh.DirectoryPerDB {
		return filepath.Join(dh.Root, dh.Name)
	}
	return dh.Root
}

func (dh *DbHandle) nsPath() string {
	return filepath.Join(dh.dbDir(), dh.Name+".ns")
}

func (dh *DbHandle) extentPath(fileNum int) string {
	return filepath.Join(dh.dbDir(), fmt.Sprintf("%s.%d", dh.Name, fileNum))
}

// Exists reports whether this database has any recorded namespaces or
// an on-disk namespace catalog file.
func (dh *DbHandle) Exists() bool {
	dh.mu.RLock()
	defer dh.mu.RUnlock()
	if len(dh.catalog) > 0 {
		return true
	}
	_, err := os.Stat(dh.nsPath())
	return err == nil
}

// Namespaces returns every namespace the catalog currently declares,
// sorted for determinism.
func (dh *DbHandle) Namespaces() []string {
	dh.mu.RLock()
	defer dh.mu.RUnlock()
	names := make([]string, 0, len(dh.catalog))
	for ns := range dh.catalog {
		names = append(names, ns)
	}
	sort.Strings(names)
	return names
}

// GetCollection returns an open handle for ns, or the system.namespaces
// pseudo-collection if ns names it.
func (dh *DbHandle) GetCollection(ns string) (*CollectionHandle, bool) {
	if domain.CollectionPart(ns) == "system.namespaces" {
		return dh.namespacesSnapshot(), true
	}
	dh.mu.RLock()
	defer dh.mu.RUnlock()
	entry, ok := dh.catalog[ns]
	if !ok {
		return nil, false
	}
	return &CollectionHandle{ns: ns, db: dh, info: &CollectionInfo{
		Name:        ns,
		State:       CollectionLoaded,
		ExtentFiles: append([]int(nil), entry.ExtentFiles...),
	}}, true
}

// CreateCollection registers ns in the catalog with the given options.
// When allocate is true a first extent file is created immediately;
// otherwise the collection starts with no extents and InsertDocument
// allocates one lazily. When createDefaultIndexes is true the implicit
// _id index every normal collection carries is created up front.
func (dh *DbHandle) CreateCollection(ns string, opts domain.CollectionOptions, allocate bool, createDefaultIndexes bool) (*CollectionHandle, error) {
	dh.mu.Lock()
	defer dh.mu.Unlock()
	if _, exists := dh.catalog[ns]; exists {
		return nil, fmt.Errorf("collection %s already exists", ns)
	}
	if err := os.MkdirAll(dh.dbDir(), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory for %s: %w", ns, err)
	}

	entry := CatalogEntry{Options: opts}
	if createDefaultIndexes {
		idSpec := domain.IndexSpec{Name: "_id_", Fields: []string{"_id"}, Unique: true}
		entry.Indexes = []domain.IndexSpec{idSpec}
		_ = dh.indexEng.CreateIndex(ns, idSpec.Name)
	}
	if allocate {
		fileNum := dh.nextExtentFileLocked()
		if err := dh.ensureExtentFileLocked(fileNum); err != nil {
			return nil, err
		}
		entry.ExtentFiles = []int{fileNum}
	}

	dh.catalog[ns] = entry
	dh.dirty = true
	return &CollectionHandle{ns: ns, db: dh, info: &CollectionInfo{
		Name:        ns,
		State:       CollectionLoaded,
		ExtentFiles: append([]int(nil), entry.ExtentFiles...),
	}}, nil
}

// SetIndexSpecs records which indexes ns currently carries, called
// once a MultiIndexBuilder finishes rebuilding them.
func (dh *DbHandle) SetIndexSpecs(ns string, specs []domain.IndexSpec) error {
	dh.mu.Lock()
	defer dh.mu.Unlock()
	entry, ok := dh.catalog[ns]
	if !ok {
		return fmt.Errorf("collection %s not found", ns)
	}
	entry.Indexes = specs
	dh.catalog[ns] = entry
	dh.dirty = true
	return nil
}

func (dh *DbHandle) nextExtentFileLocked() int {
	max := -1
	for _, entry := range dh.catalog {
		for _, f := range entry.ExtentFiles {
			if f > max {
				max = f
			}
		}
	}
	return max + 1
}

func (dh *DbHandle) ensureExtentFileLocked(fileNum int) error {
	if fileNum >= MaxExtentFiles {
		return fmt.Errorf("database %s: extent file number %d exceeds the %d-file limit", dh.Name, fileNum, MaxExtentFiles)
	}
	if _, ok := dh.writers[fileNum]; ok {
		return nil
	}
	path := dh.extentPath(fileNum)
	needsHeader := true
	if fi, err := os.Stat(path); err == nil && fi.Size() > 0 {
		needsHeader = false
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening extent file %s: %w", path, err)
	}
	if needsHeader {
		if err := WriteHeader(f); err != nil {
			f.Close()
			return fmt.Errorf("writing header for %s: %w", path, err)
		}
	}
	dh.writers[fileNum] = f
	return nil
}

// namespacesSnapshot regenerates the read-only system.namespaces
// pseudo-collection from the live catalog.
func (dh *DbHandle) namespacesSnapshot() *CollectionHandle {
	dh.mu.RLock()
	defer dh.mu.RUnlock()

	names := make([]string, 0, len(dh.catalog))
	for ns := range dh.catalog {
		names = append(names, ns)
	}
	sort.Strings(names)

	docs := make([]domain.Document, 0, len(names))
	for _, ns := range names {
		entry := dh.catalog[ns]
		docs = append(docs, domain.Document{
			"name":    ns,
			"options": entry.Options.ToMap(),
		})
	}

	nsName := dh.Name + ".system.namespaces"
	return &CollectionHandle{
		ns:        nsName,
		db:        dh,
		info:      &CollectionInfo{Name: nsName, State: CollectionLoaded},
		synthetic: docs,
	}
}

// IndexEngine returns the index engine backing this database's
// collections.
func (dh *DbHandle) IndexEngine() *indexing.IndexEngine { return dh.indexEng }

// FlushToDisk syncs every open extent file and writes the namespace
// catalog, the rebuilt-engine's analogue of the teacher's
// saveDirtyCollections synchronous flush point.
func (dh *DbHandle) FlushToDisk() error {
	dh.mu.Lock()
	defer dh.mu.Unlock()
	return dh.flushLocked()
}

func (dh *DbHandle) flushLocked() error {
	for num, f := range dh.writers {
		if err := f.Sync(); err != nil {
			return fmt.Errorf("syncing extent file %d for %s: %w", num, dh.Name, err)
		}
	}
	if err := saveCatalog(dh.nsPath(), dh.catalog); err != nil {
		return err
	}
	dh.dirty = false
	return nil
}

// Close flushes any pending writes and releases extent-file handles.
func (dh *DbHandle) Close() error {
	dh.mu.Lock()
	defer dh.mu.Unlock()

	var flushErr error
	if dh.dirty {
		flushErr = dh.flushLocked()
	}
	for num, f := range dh.writers {
		f.Close()
		delete(dh.writers, num)
	}
	return flushErr
}
