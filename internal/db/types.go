package db

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors
var (
	ErrDocumentNotFound  = errors.New("document not found")
	ErrInvalidQuery      = errors.New("invalid query")
	ErrInvalidCollection = errors.New("invalid collection")
	ErrInvalidDocument   = errors.New("invalid document")
	ErrPathNotFound      = errors.New("path not found")
)

// PathNotFoundError reports the first segment of a field path that could not
// be resolved against a document.
type PathNotFoundError struct {
	Path    string
	Segment string
}

func (e *PathNotFoundError) Error() string {
	return fmt.Sprintf("%q index was not found in %q", e.Segment, e.Path)
}

// Is lets errors.Is(err, ErrPathNotFound) match.
func (e *PathNotFoundError) Is(target error) bool {
	return target == ErrPathNotFound
}

// Document represents a single document in a collection
type Document map[string]interface{}

// Query represents a filter condition
type Query struct {
	Field    string      `json:"field"`
	Operator string      `json:"operator"` // "=", "!=", ">", ">=", "<", "<=" (or eq, ne, gt, gte, lt, lte)
	Value    interface{} `json:"value"`
}

// FindOptions represents options for find operations
type FindOptions struct {
	Filters []Query       `json:"filters,omitempty"`
	Sort    *SortOption   `json:"sort,omitempty"`
	Search  *SearchOption `json:"search,omitempty"`
	Skip    int           `json:"skip,omitempty"`
	Limit   int           `json:"limit,omitempty"` // 0 means unbounded
}

// SortOption represents sorting configuration
type SortOption struct {
	Field     string `json:"field"`
	Direction string `json:"direction"` // "asc", "desc" or "" (natural order)
}

// SearchOption ranks the filtered documents by fuzzy similarity of the given
// fields to Keyword. An empty keyword disables ranking.
type SearchOption struct {
	Keyword string   `json:"keyword"`
	Fields  []string `json:"fields"`
}

// UpdateOptions represents update operations
type UpdateOptions struct {
	Set   Document `json:"set,omitempty"`   // Field paths to set
	Unset []string `json:"unset,omitempty"` // Field paths to remove
	Merge bool     `json:"merge"`           // If true, merge with existing doc; if false, replace
}

// Operator constants
const (
	OpEq  = "="
	OpNe  = "!="
	OpGt  = ">"
	OpGte = ">="
	OpLt  = "<"
	OpLte = "<="
)

// Sort direction constants
const (
	SortNone = ""
	SortAsc  = "asc"
	SortDesc = "desc"
)

// Reserved document fields maintained by the store.
const (
	FieldID        = "_id"
	FieldCreatedAt = "_created_at"
	FieldUpdatedAt = "_updated_at"
)

var operatorAliases = map[string]string{
	"=": OpEq, "==": OpEq, "eq": OpEq,
	"!=": OpNe, "<>": OpNe, "ne": OpNe,
	">": OpGt, "gt": OpGt,
	">=": OpGte, "gte": OpGte,
	"<": OpLt, "lt": OpLt,
	"<=": OpLte, "lte": OpLte,
}

// NormalizeOperator maps an operator or its word alias to the canonical
// symbol. It returns ErrInvalidQuery for anything else.
func NormalizeOperator(op string) (string, error) {
	if canonical, ok := operatorAliases[strings.ToLower(strings.TrimSpace(op))]; ok {
		return canonical, nil
	}
	return "", fmt.Errorf("%w: unknown operator %q", ErrInvalidQuery, op)
}

// NormalizeDirection maps a sort direction to SortAsc, SortDesc or SortNone.
func NormalizeDirection(dir string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(dir)) {
	case "asc", "ascending":
		return SortAsc, nil
	case "desc", "descending":
		return SortDesc, nil
	case "", "none":
		return SortNone, nil
	}
	return "", fmt.Errorf("%w: unknown sort direction %q", ErrInvalidQuery, dir)
}

// Normalize returns a copy of o with canonical operators and directions and
// rejects malformed options before any document is read. The filters and sort
// of o are left untouched.
func (o FindOptions) Normalize() (FindOptions, error) {
	if o.Filters != nil {
		filters := make([]Query, len(o.Filters))
		for i, q := range o.Filters {
			op, err := NormalizeOperator(q.Operator)
			if err != nil {
				return o, err
			}
			q.Operator = op
			filters[i] = q
		}
		o.Filters = filters
	}
	if o.Sort != nil {
		dir, err := NormalizeDirection(o.Sort.Direction)
		if err != nil {
			return o, err
		}
		if dir != SortNone && o.Sort.Field == "" {
			return o, fmt.Errorf("%w: sort field is required", ErrInvalidQuery)
		}
		o.Sort = &SortOption{Field: o.Sort.Field, Direction: dir}
	}
	if o.Skip < 0 || o.Limit < 0 {
		return o, fmt.Errorf("%w: skip and limit must be non-negative", ErrInvalidQuery)
	}
	return o, nil
}
