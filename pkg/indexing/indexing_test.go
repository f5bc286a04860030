package indexing_test

import (
	"testing"

	"github.com/dbrepair/dbrepair/pkg/domain"
	"github.com/dbrepair/dbrepair/pkg/indexing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateIndex(t *testing.T) {
	engine := indexing.NewIndexEngine()

	err := engine.CreateIndex("test", "name")
	assert.NoError(t, err)

	err = engine.CreateIndex("test", "age")
	assert.NoError(t, err)

	// Duplicate index on the same field should fail.
	err = engine.CreateIndex("test", "name")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestIndexQueryAndMaintenance(t *testing.T) {
	engine := indexing.NewIndexEngine()
	require.NoError(t, engine.CreateIndex("products", "category"))

	index, ok := engine.GetIndex("products", "category")
	require.True(t, ok)

	index.UpdateIndex("1", nil, domain.Document{"category": "electronics"})
	index.UpdateIndex("2", nil, domain.Document{"category": "electronics"})
	index.UpdateIndex("3", nil, domain.Document{"category": "books"})

	assert.ElementsMatch(t, []string{"1", "2"}, index.Query("electronics"))
	assert.ElementsMatch(t, []string{"3"}, index.Query("books"))

	// Move doc 1 from electronics to computers.
	index.UpdateIndex("1", domain.Document{"category": "electronics"}, domain.Document{"category": "computers"})
	assert.ElementsMatch(t, []string{"2"}, index.Query("electronics"))
	assert.ElementsMatch(t, []string{"1"}, index.Query("computers"))

	// Drop the index.
	require.NoError(t, engine.DropIndex("products", "category"))
	_, ok = engine.GetIndex("products", "category")
	assert.False(t, ok)
}

func TestMultiIndexBuilderSingleAndCompoundFields(t *testing.T) {
	engine := indexing.NewIndexEngine()
	builder := indexing.NewMultiIndexBuilder(engine, "people")

	specs := []domain.IndexSpec{
		{Name: "name_1", Fields: []string{"name"}},
		{Name: "city_state_1", Fields: []string{"city", "state"}},
	}
	require.NoError(t, builder.Init(specs))

	docs := map[string]domain.Document{
		"1": {"name": "Alice", "city": "Springfield", "state": "IL"},
		"2": {"name": "Bob", "city": "Springfield", "state": "MO"},
		"3": {"name": "Carol", "city": "Portland", "state": "OR"},
	}
	for _, id := range []string{"1", "2", "3"} {
		require.NoError(t, builder.Insert(id, docs[id]))
	}

	names := builder.Commit()
	assert.Equal(t, []string{"city_state_1", "name_1"}, names)

	byName, ok := engine.GetIndex("people", "name_1")
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"1"}, byName.Query("Alice"))

	byCityState, ok := engine.GetIndex("people", "city_state_1")
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"1"}, byCityState.Query("Springfield\x00IL"))
	assert.ElementsMatch(t, []string{"2"}, byCityState.Query("Springfield\x00MO"))
}

func TestMultiIndexBuilderRejectsUniqueCollision(t *testing.T) {
	engine := indexing.NewIndexEngine()
	builder := indexing.NewMultiIndexBuilder(engine, "accounts")

	specs := []domain.IndexSpec{
		{Name: "email_1", Fields: []string{"email"}, Unique: true},
	}
	require.NoError(t, builder.Init(specs))

	require.NoError(t, builder.Insert("1", domain.Document{"email": "a@example.com"}))
	err := builder.Insert("2", domain.Document{"email": "a@example.com"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "collide")
}

func TestMultiIndexBuilderSkipsDocumentsMissingCompoundField(t *testing.T) {
	engine := indexing.NewIndexEngine()
	builder := indexing.NewMultiIndexBuilder(engine, "events")

	specs := []domain.IndexSpec{
		{Name: "type_ts_1", Fields: []string{"type", "ts"}},
	}
	require.NoError(t, builder.Init(specs))

	// Missing "ts" means this document isn't indexed under the compound key.
	require.NoError(t, builder.Insert("1", domain.Document{"type": "click"}))

	index, ok := engine.GetIndex("events", "type_ts_1")
	require.True(t, ok)
	assert.Empty(t, index.Query("click"))
}
