package dbengine

import (
	"fmt"
	"io"

	"github.com/dbrepair/dbrepair/pkg/domain"
)

// CollectionHandle is a single collection open against a DbHandle. It
// is deliberately thin: the real state (which extents it owns) lives
// in the DbHandle's catalog, the same way the teacher keeps
// authoritative collection state in StorageEngine.cache and hands out
// thin views of it.
type CollectionHandle struct {
	ns        string
	db        *DbHandle
	info      *CollectionInfo
	synthetic []domain.Document // non-nil for the system.namespaces pseudo-collection
}

// Namespace returns this collection's fully qualified name.
func (c *CollectionHandle) Namespace() string { return c.ns }

// ExtentFiles returns the extent file numbers this collection owns.
func (c *CollectionHandle) ExtentFiles() []int {
	return append([]int(nil), c.info.ExtentFiles...)
}

// IndexSpecs returns the indexes the catalog records for this
// collection.
func (c *CollectionHandle) IndexSpecs() []domain.IndexSpec {
	c.db.mu.RLock()
	defer c.db.mu.RUnlock()
	return append([]domain.IndexSpec(nil), c.db.catalog[c.ns].Indexes...)
}

// Options returns the catalog's recorded options for this collection.
func (c *CollectionHandle) Options() domain.CollectionOptions {
	c.db.mu.RLock()
	defer c.db.mu.RUnlock()
	return c.db.catalog[c.ns].Options
}

// Iterator walks this collection's records. Only forward, non-tailable
// iteration is exercised by the repair coordinator; the parameters are
// kept general the way the teacher keeps PaginationOptions general
// even though most callers take the defaults.
func (c *CollectionHandle) Iterator(start Loc, tailable bool, dir Direction) (*Iterator, error) {
	if dir != Forward {
		return nil, fmt.Errorf("collection %s: only forward iteration is supported", c.ns)
	}
	if tailable {
		return nil, fmt.Errorf("collection %s: tailable iteration is not supported", c.ns)
	}

	if c.synthetic != nil {
		return &Iterator{synthetic: c.synthetic}, nil
	}

	locs, err := scanExtentLocs(c.db, c.info.ExtentFiles)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", c.ns, err)
	}
	if !start.IsNull() {
		for i, loc := range locs {
			if loc == start {
				locs = locs[i:]
				break
			}
		}
	}
	return &Iterator{db: c.db, locs: locs}, nil
}

// DocFor decodes the document stored at loc.
func (c *CollectionHandle) DocFor(loc Loc) (domain.Document, error) {
	return readRecordAt(c.db, loc)
}

// InsertDocument appends doc to this collection's current extent file,
// allocating a new one the first time a collection with no extents
// receives a document.
func (c *CollectionHandle) InsertDocument(doc domain.Document) (Loc, error) {
	if c.synthetic != nil {
		return ZeroLoc, fmt.Errorf("collection %s is synthetic and read-only", c.ns)
	}

	c.db.mu.Lock()
	defer c.db.mu.Unlock()

	if len(c.info.ExtentFiles) == 0 {
		fileNum := c.db.nextExtentFileLocked()
		if err := c.db.ensureExtentFileLocked(fileNum); err != nil {
			return ZeroLoc, err
		}
		c.info.ExtentFiles = append(c.info.ExtentFiles, fileNum)
		entry := c.db.catalog[c.ns]
		entry.ExtentFiles = append([]int(nil), c.info.ExtentFiles...)
		c.db.catalog[c.ns] = entry
	}

	fileNum := c.info.ExtentFiles[len(c.info.ExtentFiles)-1]
	if err := c.db.ensureExtentFileLocked(fileNum); err != nil {
		return ZeroLoc, err
	}
	f := c.db.writers[fileNum]

	offset, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return ZeroLoc, fmt.Errorf("seeking extent file for %s: %w", c.ns, err)
	}
	if err := writeRecord(f, doc); err != nil {
		return ZeroLoc, fmt.Errorf("writing document to %s: %w", c.ns, err)
	}
	c.db.dirty = true

	return Loc{File: fileNum, Offset: offset}, nil
}

// Iterator walks a sequence of document locations, or for the
// synthetic system.namespaces collection, a pre-materialized document
// slice.
type Iterator struct {
	db        *DbHandle
	locs      []Loc
	synthetic []domain.Document
	pos       int
}

// Next returns the next document and its location. The final result's
// bool is false once the iterator is exhausted.
func (it *Iterator) Next() (domain.Document, Loc, bool, error) {
	if it.synthetic != nil {
		if it.pos >= len(it.synthetic) {
			return nil, ZeroLoc, false, nil
		}
		doc := it.synthetic[it.pos]
		it.pos++
		return doc, ZeroLoc, true, nil
	}

	if it.pos >= len(it.locs) {
		return nil, ZeroLoc, false, nil
	}
	loc := it.locs[it.pos]
	it.pos++
	doc, err := readRecordAt(it.db, loc)
	if err != nil {
		return nil, ZeroLoc, false, err
	}
	return doc, loc, true, nil
}

// Remaining reports how many records are left unread. Synthetic
// iterators report the remaining document count; extent-backed ones
// report the remaining location count.
func (it *Iterator) Remaining() int {
	if it.synthetic != nil {
		return len(it.synthetic) - it.pos
	}
	return len(it.locs) - it.pos
}
