package db

import (
	"strconv"
	"strings"
)

// Resolve walks a dot-separated field path through node one segment at a
// time. Maps are indexed by key and sequences by decimal position. A segment
// whose value is missing or null fails with a *PathNotFoundError naming that
// segment.
//
// An empty path or a node that is not a container resolves to nil without an
// error; no resolution is performed in that case.
func Resolve(path string, node interface{}) (interface{}, error) {
	if path == "" || !isContainer(node) {
		return nil, nil
	}

	current := node
	for _, segment := range strings.Split(path, ".") {
		next, ok := child(current, segment)
		if !ok {
			return nil, &PathNotFoundError{Path: path, Segment: segment}
		}
		current = next
	}
	return current, nil
}

func isContainer(node interface{}) bool {
	switch node.(type) {
	case Document, map[string]interface{}, []interface{}:
		return true
	}
	return false
}

func child(node interface{}, segment string) (interface{}, bool) {
	var val interface{}
	switch n := node.(type) {
	case Document:
		val = n[segment]
	case map[string]interface{}:
		val = n[segment]
	case []interface{}:
		idx, err := strconv.Atoi(segment)
		if err != nil || idx < 0 || idx >= len(n) {
			return nil, false
		}
		val = n[idx]
	default:
		return nil, false
	}
	// null values count as absent
	return val, val != nil
}
