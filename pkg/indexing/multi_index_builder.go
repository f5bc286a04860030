package indexing

import (
	"fmt"
	"sort"

	"github.com/dbrepair/dbrepair/pkg/domain"
)

// MultiIndexBuilder rebuilds every index a collection declares in a
// single pass over its documents, the way the repair coordinator
// recreates a collection's indexes while streaming documents out of
// the original extents and into the rebuilt ones. Unlike IndexEngine's
// CreateIndex, which only declares an index, a MultiIndexBuilder is fed
// documents incrementally as they're copied and populates every
// declared index as it goes.
type MultiIndexBuilder struct {
	engine     *IndexEngine
	collection string
	specs      []domain.IndexSpec
	violations map[string]map[interface{}]string // indexName -> composite key -> first docID seen
}

// NewMultiIndexBuilder returns a builder that will populate engine's
// indexes for collection.
func NewMultiIndexBuilder(engine *IndexEngine, collection string) *MultiIndexBuilder {
	return &MultiIndexBuilder{
		engine:     engine,
		collection: collection,
		violations: make(map[string]map[interface{}]string),
	}
}

// Init declares the indexes to build and resets any prior progress.
func (b *MultiIndexBuilder) Init(specs []domain.IndexSpec) error {
	b.specs = specs
	b.violations = make(map[string]map[interface{}]string)
	for _, spec := range specs {
		if err := b.engine.CreateIndex(b.collection, spec.Name); err != nil {
			return fmt.Errorf("initializing index %q on %s: %w", spec.Name, b.collection, err)
		}
		b.violations[spec.Name] = make(map[interface{}]string)
	}
	return nil
}

// Insert indexes a single document under every declared spec. It
// returns an error the first time a unique spec's key collides with a
// document already inserted under this builder, mirroring a unique
// index build failure during the original repair's rebuild phase.
func (b *MultiIndexBuilder) Insert(docID string, doc domain.Document) error {
	for _, spec := range b.specs {
		key, ok := compositeKey(doc, spec.Fields)
		if !ok {
			continue
		}
		index, exists := b.engine.getIndex(b.collection, spec.Name)
		if !exists {
			return fmt.Errorf("index %q on %s vanished mid-build", spec.Name, b.collection)
		}
		if spec.Unique {
			if first, seen := b.violations[spec.Name][key]; seen {
				return fmt.Errorf("cannot build unique index %q on %s: documents %s and %s collide on %v",
					spec.Name, b.collection, first, docID, spec.Fields)
			}
			b.violations[spec.Name][key] = docID
		}
		index.Inverted[key] = append(index.Inverted[key], docID)
	}
	return nil
}

// Commit finalizes the build. Indexes are already live in the engine
// as of Insert, so Commit performs no further work or validation and
// cannot fail; it returns the declared index names, sorted. It exists
// to give the builder the same arm/commit shape the rest of the repair
// path uses for staged work.
func (b *MultiIndexBuilder) Commit() []string {
	names := make([]string, 0, len(b.specs))
	for _, spec := range b.specs {
		names = append(names, spec.Name)
	}
	sort.Strings(names)
	return names
}

// compositeKey joins the values of fields within doc into a single
// comparable map key. A document missing any field of a compound index
// is not indexed under it, the same way a sparse single-field index
// skips documents lacking that field.
func compositeKey(doc domain.Document, fields []string) (string, bool) {
	if len(fields) == 1 {
		v, ok := doc[fields[0]]
		if !ok {
			return "", false
		}
		return fmt.Sprintf("%v", v), true
	}

	key := ""
	for i, f := range fields {
		v, ok := doc[f]
		if !ok {
			return "", false
		}
		if i > 0 {
			key += "\x00"
		}
		key += fmt.Sprintf("%v", v)
	}
	return key, true
}
