package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func tagged(docs []Document) []interface{} {
	out := make([]interface{}, 0, len(docs))
	for _, d := range docs {
		out = append(out, d["tag"])
	}
	return out
}

func TestSortDocumentsStableBothDirections(t *testing.T) {
	docs := []Document{
		{"tag": "a", "rank": 2},
		{"tag": "b", "rank": 1},
		{"tag": "c", "rank": 2},
		{"tag": "d", "rank": 1},
	}

	assert.Equal(t, []interface{}{"b", "d", "a", "c"}, tagged(SortDocuments(docs, "rank", SortAsc)))
	assert.Equal(t, []interface{}{"a", "c", "b", "d"}, tagged(SortDocuments(docs, "rank", SortDesc)))
}

func TestSortDocumentsMissingKeysAreSmallest(t *testing.T) {
	docs := []Document{
		{"tag": "a", "age": 30},
		{"tag": "b"},
		{"tag": "c", "age": 10},
		{"tag": "d", "age": nil},
	}

	assert.Equal(t, []interface{}{"b", "d", "c", "a"}, tagged(SortDocuments(docs, "age", SortAsc)))
	assert.Equal(t, []interface{}{"a", "c", "b", "d"}, tagged(SortDocuments(docs, "age", SortDesc)))
}

func TestSortDocumentsLooseValues(t *testing.T) {
	docs := []Document{
		{"tag": "a", "n": "10"},
		{"tag": "b", "n": 9},
		{"tag": "c", "n": "9.5"},
	}

	assert.Equal(t, []interface{}{"b", "c", "a"}, tagged(SortDocuments(docs, "n", SortAsc)))
}

func TestSortDocumentsNestedField(t *testing.T) {
	docs := []Document{
		{"tag": "a", "address": map[string]interface{}{"city": "Oslo"}},
		{"tag": "b", "address": map[string]interface{}{"city": "Bergen"}},
	}

	assert.Equal(t, []interface{}{"b", "a"}, tagged(SortDocuments(docs, "address.city", SortAsc)))
}

func TestSortDocumentsLeavesInputUntouched(t *testing.T) {
	docs := []Document{
		{"tag": "a", "rank": 3},
		{"tag": "b", "rank": 1},
	}

	sorted := SortDocuments(docs, "rank", SortAsc)

	assert.Equal(t, []interface{}{"b", "a"}, tagged(sorted))
	assert.Equal(t, []interface{}{"a", "b"}, tagged(docs))
}

func TestSortDocumentsNoDirection(t *testing.T) {
	docs := []Document{{"tag": "b"}, {"tag": "a"}}
	assert.Equal(t, docs, SortDocuments(docs, "tag", SortNone))
}

func TestSortDocumentsMixedTypesTotalOrder(t *testing.T) {
	docs := []Document{
		{"tag": "two", "v": 2},
		{"tag": "map", "v": map[string]interface{}{"x": 1}},
		{"tag": "one", "v": 1},
		{"tag": "list", "v": []interface{}{1.0}},
	}

	assert.Equal(t, []interface{}{"one", "two", "list", "map"}, tagged(SortDocuments(docs, "v", SortAsc)))
	assert.Equal(t, []interface{}{"map", "list", "two", "one"}, tagged(SortDocuments(docs, "v", SortDesc)))
}
