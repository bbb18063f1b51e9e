package db

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memSource is an in-memory Source for engine tests
type memSource struct {
	docs    map[int64]Document
	last    int64
	lastErr error
}

func newMemSource(docs ...Document) *memSource {
	s := &memSource{docs: make(map[int64]Document)}
	for _, doc := range docs {
		s.last++
		s.docs[s.last] = doc
	}
	return s
}

func (s *memSource) Get(id int64) (Document, bool) {
	doc, ok := s.docs[id]
	return doc, ok
}

func (s *memSource) LastID() (int64, error) {
	return s.last, s.lastErr
}

func people() *memSource {
	return newMemSource(
		Document{"name": "Alice", "age": 30},
		Document{"name": "Bob", "age": 25},
		Document{"name": "Carol", "age": 40},
	)
}

func names(docs []Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d["name"].(string))
	}
	return out
}

func TestEngineFilterKeepsStorageOrder(t *testing.T) {
	results, err := NewEngine(people()).Find(FindOptions{
		Filters: []Query{{Field: "age", Operator: ">", Value: 28}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Carol"}, names(results))
}

func TestEngineSortDescending(t *testing.T) {
	results, err := NewEngine(people()).Find(FindOptions{
		Sort: &SortOption{Field: "age", Direction: SortDesc},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Carol", "Alice", "Bob"}, names(results))
}

func TestEngineSkipLimitNaturalOrder(t *testing.T) {
	results, err := NewEngine(people()).Find(FindOptions{Skip: 1, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"Bob"}, names(results))
}

func TestEngineSearch(t *testing.T) {
	results, err := NewEngine(people()).Find(FindOptions{
		Search: &SearchOption{Keyword: "Alise", Fields: []string{"name"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice"}, names(results))
}

func TestEngineNoConditionsReturnsEverything(t *testing.T) {
	results, err := NewEngine(people()).Find(FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Bob", "Carol"}, names(results))
}

func TestEngineConjunction(t *testing.T) {
	results, err := NewEngine(people()).Find(FindOptions{
		Filters: []Query{
			{Field: "age", Operator: ">=", Value: 25},
			{Field: "name", Operator: "!=", Value: "Alice"},
			{Field: "age", Operator: "<", Value: "40"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Bob"}, names(results))
}

func TestEngineUnresolvedFieldDisqualifies(t *testing.T) {
	src := newMemSource(
		Document{"name": "Alice", "age": 30},
		Document{"name": "Dave"},
	)
	results, err := NewEngine(src).Find(FindOptions{
		Filters: []Query{
			{Field: "name", Operator: "!=", Value: "nobody"},
			{Field: "age", Operator: "!=", Value: 5},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice"}, names(results))
}

func TestEngineNoCrossDocumentCoupling(t *testing.T) {
	filters := []Query{{Field: "age", Operator: ">", Value: 28}}

	full := people()
	before, err := NewEngine(full).Find(FindOptions{Filters: filters})
	require.NoError(t, err)

	// Bob fails the condition; removing him must not change anyone else.
	delete(full.docs, 2)
	after, err := NewEngine(full).Find(FindOptions{Filters: filters})
	require.NoError(t, err)

	assert.Equal(t, names(before), names(after))
}

func TestEngineSkipsMissingIdentifiers(t *testing.T) {
	src := &memSource{
		docs: map[int64]Document{
			1: {"name": "Alice"},
			4: {"name": "Bob"},
		},
		last: 6,
	}
	results, err := NewEngine(src).Find(FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Bob"}, names(results))

	sorted, err := NewEngine(src).Find(FindOptions{Sort: &SortOption{Field: "name", Direction: SortDesc}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Bob", "Alice"}, names(sorted))
}

func TestEngineSortAppliesBeforeFilter(t *testing.T) {
	results, err := NewEngine(people()).Find(FindOptions{
		Filters: []Query{{Field: "age", Operator: ">", Value: 26}},
		Sort:    &SortOption{Field: "age", Direction: SortAsc},
		Limit:   1,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice"}, names(results))
}

func TestEngineSearchOverridesSort(t *testing.T) {
	src := newMemSource(
		Document{"name": "Alice", "age": 20},
		Document{"name": "Alicia", "age": 50},
		Document{"name": "Bob", "age": 35},
	)
	results, err := NewEngine(src).Find(FindOptions{
		Sort:   &SortOption{Field: "age", Direction: SortDesc},
		Search: &SearchOption{Keyword: "Alice", Fields: []string{"name"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Alicia"}, names(results))
}

func TestEngineSearchWithoutMatchesIsEmpty(t *testing.T) {
	results, err := NewEngine(people()).Find(FindOptions{
		Search: &SearchOption{Keyword: "zzzzzz", Fields: []string{"name"}},
	})
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.NotNil(t, results)
}

func TestEngineEmptyKeywordDisablesSearch(t *testing.T) {
	results, err := NewEngine(people()).Find(FindOptions{
		Search: &SearchOption{Keyword: "", Fields: []string{"name"}},
	})
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestEnginePaginationLaw(t *testing.T) {
	src := newMemSource()
	for i := 0; i < 5; i++ {
		src.last++
		src.docs[src.last] = Document{"name": string(rune('A' + i))}
	}
	all := []string{"A", "B", "C", "D", "E"}

	tests := []struct {
		skip, limit int
		want        []string
	}{
		{0, 0, all},
		{0, 2, all[0:2]},
		{2, 0, all[2:]},
		{2, 2, all[2:4]},
		{4, 3, all[4:]},
		{5, 1, []string{}},
		{9, 0, []string{}},
		{0, 10, all},
	}

	for _, tt := range tests {
		results, err := NewEngine(src).Find(FindOptions{Skip: tt.skip, Limit: tt.limit})
		require.NoError(t, err)
		assert.Equal(t, tt.want, names(results), "skip=%d limit=%d", tt.skip, tt.limit)
	}
}

func TestEngineRejectsInvalidOptions(t *testing.T) {
	tests := []FindOptions{
		{Filters: []Query{{Field: "age", Operator: "~", Value: 1}}},
		{Sort: &SortOption{Field: "age", Direction: "sideways"}},
		{Sort: &SortOption{Direction: SortAsc}},
		{Skip: -1},
		{Limit: -3},
	}
	for _, opts := range tests {
		_, err := NewEngine(people()).Find(opts)
		assert.ErrorIs(t, err, ErrInvalidQuery)
	}
}

func TestEngineAcceptsOperatorAliases(t *testing.T) {
	results, err := NewEngine(people()).Find(FindOptions{
		Filters: []Query{{Field: "age", Operator: "gte", Value: 30}},
		Sort:    &SortOption{Field: "age", Direction: "DESC"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Carol", "Alice"}, names(results))
}

func TestEngineLastIDError(t *testing.T) {
	src := people()
	src.lastErr = errors.New("disk on fire")
	_, err := NewEngine(src).Find(FindOptions{})
	assert.Error(t, err)
}

func TestEngineEmptyCollection(t *testing.T) {
	results, err := NewEngine(newMemSource()).Find(FindOptions{
		Search: &SearchOption{Keyword: "x", Fields: []string{"name"}},
		Skip:   3,
	})
	require.NoError(t, err)
	assert.Empty(t, results)
}
