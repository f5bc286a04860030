package dbengine

import "fmt"

// MaxExtentFiles bounds how many numbered extent files a single database
// may have, the same ceiling original_source enforces via DiskLoc's file
// number width.
const MaxExtentFiles = 16384

// Loc addresses a single document record: which extent file it lives in
// and its byte offset within that file.
type Loc struct {
	File   int
	Offset int64
}

// ZeroLoc is the sentinel "no location" value, returned once an
// iterator is exhausted.
var ZeroLoc = Loc{File: -1, Offset: -1}

// IsNull reports whether loc is the zero/sentinel location.
func (loc Loc) IsNull() bool {
	return loc.File < 0
}

func (loc Loc) String() string {
	return fmt.Sprintf("%d:%d", loc.File, loc.Offset)
}

// Direction controls which way an Iterator walks a collection's records.
type Direction int

const (
	// Forward walks records in the order they were written, the only
	// direction the repair coordinator uses when copying a collection.
	Forward Direction = iota
	// Backward walks records in reverse write order.
	Backward
)

// CollectionState tracks how much of a collection's data is resident,
// carried over from the teacher's CollectionState enum in
// pkg/storage/collection.go.
type CollectionState int

const (
	CollectionUnloaded CollectionState = iota
	CollectionLoading
	CollectionLoaded
	CollectionDirty
)

// CollectionInfo is the in-memory bookkeeping record for an open
// collection, adapted from the teacher's CollectionInfo
// (pkg/storage/collection.go) and v2's richer variant
// (pkg/storage/v2/types.go): instead of caching decoded documents, it
// tracks which extent files belong to the collection and where new
// records should be appended.
type CollectionInfo struct {
	Name        string
	State       CollectionState
	ExtentFiles []int
	NextFile    int
	NextOffset  int64
}
