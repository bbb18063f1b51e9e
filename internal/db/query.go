package db

import (
	"fmt"
)

// QueryBuilder provides a fluent interface for building queries
type QueryBuilder struct {
	collection *Collection
	filters    []Query
	sort       *SortOption
	search     *SearchOption
	skip       int
	limit      int
}

// NewQueryBuilder creates a query builder that is not bound to a collection;
// use Build to obtain the options.
func NewQueryBuilder() *QueryBuilder {
	return newQueryBuilder(nil)
}

func newQueryBuilder(c *Collection) *QueryBuilder {
	return &QueryBuilder{
		collection: c,
		filters:    []Query{},
	}
}

// Where adds a filter condition
func (qb *QueryBuilder) Where(field, operator string, value interface{}) *QueryBuilder {
	qb.filters = append(qb.filters, Query{
		Field:    field,
		Operator: operator,
		Value:    value,
	})
	return qb
}

// WhereEq adds an equality filter (shorthand)
func (qb *QueryBuilder) WhereEq(field string, value interface{}) *QueryBuilder {
	return qb.Where(field, OpEq, value)
}

// WhereNe adds a not-equal filter (shorthand)
func (qb *QueryBuilder) WhereNe(field string, value interface{}) *QueryBuilder {
	return qb.Where(field, OpNe, value)
}

// WhereGt adds a greater-than filter (shorthand)
func (qb *QueryBuilder) WhereGt(field string, value interface{}) *QueryBuilder {
	return qb.Where(field, OpGt, value)
}

// WhereGte adds a greater-than-or-equal filter (shorthand)
func (qb *QueryBuilder) WhereGte(field string, value interface{}) *QueryBuilder {
	return qb.Where(field, OpGte, value)
}

// WhereLt adds a less-than filter (shorthand)
func (qb *QueryBuilder) WhereLt(field string, value interface{}) *QueryBuilder {
	return qb.Where(field, OpLt, value)
}

// WhereLte adds a less-than-or-equal filter (shorthand)
func (qb *QueryBuilder) WhereLte(field string, value interface{}) *QueryBuilder {
	return qb.Where(field, OpLte, value)
}

// OrderBy sets the sort order
func (qb *QueryBuilder) OrderBy(field, direction string) *QueryBuilder {
	qb.sort = &SortOption{
		Field:     field,
		Direction: direction,
	}
	return qb
}

// OrderByAsc sorts by field in ascending order (shorthand)
func (qb *QueryBuilder) OrderByAsc(field string) *QueryBuilder {
	return qb.OrderBy(field, SortAsc)
}

// OrderByDesc sorts by field in descending order (shorthand)
func (qb *QueryBuilder) OrderByDesc(field string) *QueryBuilder {
	return qb.OrderBy(field, SortDesc)
}

// Search ranks results by similarity of the given fields to keyword
func (qb *QueryBuilder) Search(keyword string, fields ...string) *QueryBuilder {
	qb.search = &SearchOption{
		Keyword: keyword,
		Fields:  fields,
	}
	return qb
}

// Skip sets the number of documents to skip
func (qb *QueryBuilder) Skip(n int) *QueryBuilder {
	qb.skip = n
	return qb
}

// Limit sets the maximum number of documents to return (0 = no limit)
func (qb *QueryBuilder) Limit(n int) *QueryBuilder {
	qb.limit = n
	return qb
}

// Take is an alias for Limit (Prisma-style)
func (qb *QueryBuilder) Take(n int) *QueryBuilder {
	return qb.Limit(n)
}

// Build returns the FindOptions for this query
func (qb *QueryBuilder) Build() FindOptions {
	return FindOptions{
		Filters: qb.filters,
		Sort:    qb.sort,
		Search:  qb.search,
		Skip:    qb.skip,
		Limit:   qb.limit,
	}
}

// Find runs the query against the bound collection
func (qb *QueryBuilder) Find() ([]Document, error) {
	if qb.collection == nil {
		return nil, fmt.Errorf("%w: query is not bound to a collection", ErrInvalidQuery)
	}
	return qb.collection.Find(qb.Build())
}

// First returns the first matching document
func (qb *QueryBuilder) First() (Document, error) {
	if qb.collection == nil {
		return nil, fmt.Errorf("%w: query is not bound to a collection", ErrInvalidQuery)
	}
	return qb.collection.FindOne(qb.Build())
}

// Count returns the number of matching documents
func (qb *QueryBuilder) Count() (int64, error) {
	if qb.collection == nil {
		return 0, fmt.Errorf("%w: query is not bound to a collection", ErrInvalidQuery)
	}
	return qb.collection.Count(qb.Build())
}

// String returns a string representation of the query
func (qb *QueryBuilder) String() string {
	name := ""
	if qb.collection != nil {
		name = qb.collection.name
	}
	return fmt.Sprintf("Query{collection=%s, filters=%d, skip=%d, limit=%d}",
		name, len(qb.filters), qb.skip, qb.limit)
}

// UpdateBuilder provides a fluent interface for building updates
type UpdateBuilder struct {
	collection  *Collection
	filters     []Query
	setFields   Document
	unsetFields []string
	merge       bool
}

// UpdateWhere returns an update builder for the collection
func (c *Collection) UpdateWhere() *UpdateBuilder {
	return &UpdateBuilder{
		collection:  c,
		filters:     []Query{},
		setFields:   make(Document),
		unsetFields: []string{},
		merge:       true, // Default to merge mode
	}
}

// Where adds a filter condition
func (ub *UpdateBuilder) Where(field, operator string, value interface{}) *UpdateBuilder {
	ub.filters = append(ub.filters, Query{
		Field:    field,
		Operator: operator,
		Value:    value,
	})
	return ub
}

// Set sets a field value
func (ub *UpdateBuilder) Set(field string, value interface{}) *UpdateBuilder {
	ub.setFields[field] = value
	return ub
}

// SetMany sets multiple field values
func (ub *UpdateBuilder) SetMany(fields Document) *UpdateBuilder {
	for k, v := range fields {
		ub.setFields[k] = v
	}
	return ub
}

// Unset removes a field
func (ub *UpdateBuilder) Unset(field string) *UpdateBuilder {
	ub.unsetFields = append(ub.unsetFields, field)
	return ub
}

// Replace sets replace mode (instead of merge)
func (ub *UpdateBuilder) Replace() *UpdateBuilder {
	ub.merge = false
	return ub
}

// Build returns the update options
func (ub *UpdateBuilder) Build() (FindOptions, UpdateOptions) {
	findOpts := FindOptions{
		Filters: ub.filters,
	}
	updateOpts := UpdateOptions{
		Set:   ub.setFields,
		Unset: ub.unsetFields,
		Merge: ub.merge,
	}
	return findOpts, updateOpts
}

// Exec applies the update and returns the number of documents changed
func (ub *UpdateBuilder) Exec() (int64, error) {
	findOpts, updateOpts := ub.Build()
	return ub.collection.UpdateMany(findOpts, updateOpts)
}

// DeleteBuilder provides a fluent interface for building deletes
type DeleteBuilder struct {
	collection *Collection
	filters    []Query
}

// DeleteWhere returns a delete builder for the collection
func (c *Collection) DeleteWhere() *DeleteBuilder {
	return &DeleteBuilder{
		collection: c,
		filters:    []Query{},
	}
}

// Where adds a filter condition
func (db *DeleteBuilder) Where(field, operator string, value interface{}) *DeleteBuilder {
	db.filters = append(db.filters, Query{
		Field:    field,
		Operator: operator,
		Value:    value,
	})
	return db
}

// Build returns the find options for deletion
func (db *DeleteBuilder) Build() FindOptions {
	return FindOptions{
		Filters: db.filters,
	}
}

// Exec deletes the matching documents and returns how many were removed
func (db *DeleteBuilder) Exec() (int64, error) {
	return db.collection.DeleteMany(db.Build())
}
