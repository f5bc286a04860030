package indexing

import (
	"fmt"

	"github.com/dbrepair/dbrepair/pkg/domain"
)

// IndexEngine holds every index of a database, keyed by collection
// and index name.
type IndexEngine struct {
	indexes map[string]map[string]*Index // Collection name -> field name -> index
}

// NewIndexEngine creates a new index engine
func NewIndexEngine() *IndexEngine {
	return &IndexEngine{
		indexes: make(map[string]map[string]*Index),
	}
}

// Index stores a mapping from a field's value to document IDs.
type Index struct {
	Field    string
	Inverted map[interface{}][]string
}

// NewIndex creates an index on a specific field.
func NewIndex(field string) *Index {
	return &Index{
		Field:    field,
		Inverted: make(map[interface{}][]string),
	}
}

// Query returns document IDs that match a given value in the indexed field.
func (idx *Index) Query(value interface{}) []string {
	if docIDs, ok := idx.Inverted[value]; ok {
		return docIDs
	}
	return nil
}

// UpdateIndex updates index after an insert/update/delete operation.
func (idx *Index) UpdateIndex(docID string, oldDoc, newDoc domain.Document) {
	// Remove old entry
	if oldVal, ok := oldDoc[idx.Field]; ok {
		// remove docID from the oldVal array
		docList := idx.Inverted[oldVal]
		for i, id := range docList {
			if id == docID {
				idx.Inverted[oldVal] = append(docList[:i], docList[i+1:]...)
				break
			}
		}
	}
	// Add new entry
	if newVal, ok := newDoc[idx.Field]; ok {
		idx.Inverted[newVal] = append(idx.Inverted[newVal], docID)
	}
}

// CreateIndex creates an index on a specific field in a collection
func (ie *IndexEngine) CreateIndex(collectionName, fieldName string) error {
	// Initialize indexes map for this collection if it doesn't exist
	if ie.indexes[collectionName] == nil {
		ie.indexes[collectionName] = make(map[string]*Index)
	}

	// Check if index already exists
	if _, exists := ie.indexes[collectionName][fieldName]; exists {
		return fmt.Errorf("index on field %s already exists in collection %s", fieldName, collectionName)
	}

	// Create new index
	index := NewIndex(fieldName)
	ie.indexes[collectionName][fieldName] = index

	return nil
}

// DropIndex removes an index from a collection
func (ie *IndexEngine) DropIndex(collectionName, fieldName string) error {
	// Check if index exists
	if ie.indexes[collectionName] == nil {
		return fmt.Errorf("no indexes exist for collection %s", collectionName)
	}

	if _, exists := ie.indexes[collectionName][fieldName]; !exists {
		return fmt.Errorf("index on field %s does not exist in collection %s", fieldName, collectionName)
	}

	// Remove the index
	delete(ie.indexes[collectionName], fieldName)

	return nil
}

// getIndex returns an index for a specific field in a collection
func (ie *IndexEngine) getIndex(collectionName, fieldName string) (*Index, bool) {
	if collectionIndexes, exists := ie.indexes[collectionName]; exists {
		if index, exists := collectionIndexes[fieldName]; exists {
			return index, true
		}
	}
	return nil, false
}

// GetIndex exposes an index for a specific field in a collection so
// callers outside this package can query its contents.
func (ie *IndexEngine) GetIndex(collectionName, fieldName string) (*Index, bool) {
	return ie.getIndex(collectionName, fieldName)
}
