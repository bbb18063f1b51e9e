package db

import (
	"encoding/json"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var numericPattern = regexp.MustCompile(`^\s*[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?\s*$`)

// equal reports loose equality: 3 and "3" are equal.
func equal(a, b interface{}) bool {
	c, ok := Compare(a, b)
	return ok && c == 0
}

func greaterThan(a, b interface{}) bool {
	c, ok := Compare(a, b)
	return ok && c > 0
}

func greaterThanOrEqual(a, b interface{}) bool {
	c, ok := Compare(a, b)
	return ok && c >= 0
}

func lessThan(a, b interface{}) bool {
	c, ok := Compare(a, b)
	return ok && c < 0
}

func lessThanOrEqual(a, b interface{}) bool {
	c, ok := Compare(a, b)
	return ok && c <= 0
}

// Compare orders two document values with loose, type-coercing rules.
// It returns -1, 0 or 1 and false when the pair is uncomparable.
//
// Rules, first match wins:
//   - nil and nil are equal
//   - nil against a string compares as the empty string
//   - a bool on either side, or nil against a non-string, compares truthiness
//   - numbers and numeric strings compare numerically
//   - a number against a non-numeric string compares as text
//   - strings compare byte-wise
//   - sequences compare by length, then element by element
//   - maps compare by size, then value by value; a missing key is uncomparable
//   - anything else is uncomparable
func Compare(a, b interface{}) (int, bool) {
	if a == nil && b == nil {
		return 0, true
	}

	if a == nil {
		if s, ok := b.(string); ok {
			return strings.Compare("", s), true
		}
		return compareBool(false, truthy(b)), true
	}
	if b == nil {
		if s, ok := a.(string); ok {
			return strings.Compare(s, ""), true
		}
		return compareBool(truthy(a), false), true
	}

	_, aBool := a.(bool)
	_, bBool := b.(bool)
	if aBool || bBool {
		return compareBool(truthy(a), truthy(b)), true
	}

	aNum, aIsNum := toFloat64(a)
	bNum, bIsNum := toFloat64(b)
	if aIsNum && bIsNum {
		return compareFloat(aNum, bNum), true
	}

	aStr, aIsStr := textOf(a)
	bStr, bIsStr := textOf(b)
	if aIsStr && bIsStr {
		return strings.Compare(aStr, bStr), true
	}

	switch av := a.(type) {
	case []interface{}:
		if bv, ok := b.([]interface{}); ok {
			return compareSlices(av, bv)
		}
	case map[string]interface{}:
		if bv, ok := asMap(b); ok {
			return compareMaps(av, bv)
		}
	case Document:
		if bv, ok := asMap(b); ok {
			return compareMaps(av, bv)
		}
	}
	return 0, false
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return 1
	default:
		return -1
	}
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareSlices(a, b []interface{}) (int, bool) {
	if len(a) != len(b) {
		return compareFloat(float64(len(a)), float64(len(b))), true
	}
	for i := range a {
		c, ok := Compare(a[i], b[i])
		if !ok || c != 0 {
			return c, ok
		}
	}
	return 0, true
}

func compareMaps(a, b map[string]interface{}) (int, bool) {
	if len(a) != len(b) {
		return compareFloat(float64(len(a)), float64(len(b))), true
	}
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		bv, ok := b[k]
		if !ok {
			return 0, false
		}
		c, ok := Compare(a[k], bv)
		if !ok || c != 0 {
			return c, ok
		}
	}
	return 0, true
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case Document:
		return m, true
	}
	return nil, false
}

func truthy(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != "" && val != "0"
	case []interface{}:
		return len(val) > 0
	case map[string]interface{}:
		return len(val) > 0
	case Document:
		return len(val) > 0
	}
	if f, ok := toFloat64(v); ok {
		return f != 0
	}
	return true
}

// toFloat64 converts numbers and numeric strings.
func toFloat64(val interface{}) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint64:
		return float64(v), true
	case uint32:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		if !numericPattern.MatchString(v) {
			return 0, false
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

// textOf returns the textual form of a scalar: strings as-is, numbers in
// shortest decimal form, true as "1", false and nil as "".
// Sequences and maps have no textual form.
func textOf(val interface{}) (string, bool) {
	switch v := val.(type) {
	case nil:
		return "", true
	case string:
		return v, true
	case bool:
		if v {
			return "1", true
		}
		return "", true
	case json.Number:
		return v.String(), true
	}
	if f, ok := toFloat64(val); ok {
		return formatNumber(f), true
	}
	return "", false
}

func formatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	if math.Abs(f) >= 1e15 {
		return strconv.FormatFloat(f, 'E', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// toInt64 reads a stored identifier back out of a decoded document.
func toInt64(val interface{}) (int64, bool) {
	f, ok := toFloat64(val)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}
