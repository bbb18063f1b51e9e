package db

import "sort"

// sortKey is a resolved sort value; missing keys sort before every present
// value.
type sortKey struct {
	value   interface{}
	missing bool
}

func compareKeys(a, b sortKey) int {
	switch {
	case a.missing && b.missing:
		return 0
	case a.missing:
		return -1
	case b.missing:
		return 1
	}
	c, ok := Compare(a.value, b.value)
	if !ok {
		return compareInt(typeRank(a.value), typeRank(b.value))
	}
	return c
}

// typeRank orders values Compare cannot relate: scalars < sequences < maps.
func typeRank(v interface{}) int {
	switch v.(type) {
	case []interface{}:
		return 1
	case map[string]interface{}, Document:
		return 2
	}
	return 0
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// SortDocuments returns docs ordered by the value at field. Ties keep their
// original relative order in both directions. A document whose field does not
// resolve gets the smallest key. The input slice is left untouched.
func SortDocuments(docs []Document, field, direction string) []Document {
	if direction != SortAsc && direction != SortDesc {
		return docs
	}

	keys := make([]sortKey, len(docs))
	for i, doc := range docs {
		val, err := Resolve(field, doc)
		keys[i] = sortKey{value: val, missing: err != nil}
	}

	perm := make([]int, len(docs))
	for i := range perm {
		perm[i] = i
	}

	sort.SliceStable(perm, func(i, j int) bool {
		c := compareKeys(keys[perm[i]], keys[perm[j]])
		if direction == SortDesc {
			return c > 0
		}
		return c < 0
	})

	sorted := make([]Document, len(docs))
	for i, idx := range perm {
		sorted[i] = docs[idx]
	}
	return sorted
}
