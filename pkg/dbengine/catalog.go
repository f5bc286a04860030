package dbengine

import (
	"os"

	"github.com/dbrepair/dbrepair/pkg/domain"
)

// CatalogEntry is one namespace's record in a database's <db>.ns file:
// its storage options, declared indexes, and which extent files hold
// its documents.
type CatalogEntry struct {
	Options     domain.CollectionOptions `msgpack:"options"`
	Indexes     []domain.IndexSpec       `msgpack:"indexes"`
	ExtentFiles []int                    `msgpack:"extentFiles"`
}

// catalogFile is the on-disk payload of <db>.ns: a namespace name to
// CatalogEntry map, matching the original engine's ".ns" file holding
// a namespace index rather than document data.
type catalogFile struct {
	Namespaces map[string]CatalogEntry `msgpack:"namespaces"`
}

// loadCatalog reads path's namespace catalog. A missing file yields an
// empty catalog rather than an error, since a freshly allocated
// temporary database has no .ns file yet.
func loadCatalog(path string) (map[string]CatalogEntry, error) {
	var cf catalogFile
	if err := readFramed(path, &cf); err != nil {
		if os.IsNotExist(err) {
			return make(map[string]CatalogEntry), nil
		}
		return nil, err
	}
	if cf.Namespaces == nil {
		cf.Namespaces = make(map[string]CatalogEntry)
	}
	return cf.Namespaces, nil
}

// saveCatalog writes namespaces to path atomically.
func saveCatalog(path string, namespaces map[string]CatalogEntry) error {
	return writeFramed(path, catalogFile{Namespaces: namespaces})
}
