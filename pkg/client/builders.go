package client

import (
	"github.com/skshohagmiah/fawldb/internal/db"
)

// QueryBuilder builds a remote find
type QueryBuilder struct {
	client     *Client
	collection string
	opts       db.FindOptions
}

// Query returns a query builder for collection
func (c *Client) Query(collection string) *QueryBuilder {
	return &QueryBuilder{
		client:     c,
		collection: collection,
		opts:       db.FindOptions{Filters: []db.Query{}},
	}
}

// Where adds a filter condition
func (qb *QueryBuilder) Where(field, operator string, value interface{}) *QueryBuilder {
	qb.opts.Filters = append(qb.opts.Filters, db.Query{
		Field:    field,
		Operator: operator,
		Value:    value,
	})
	return qb
}

// OrderBy sets the sort order
func (qb *QueryBuilder) OrderBy(field, direction string) *QueryBuilder {
	qb.opts.Sort = &db.SortOption{Field: field, Direction: direction}
	return qb
}

// Search ranks results by similarity of fields to keyword
func (qb *QueryBuilder) Search(keyword string, fields ...string) *QueryBuilder {
	qb.opts.Search = &db.SearchOption{Keyword: keyword, Fields: fields}
	return qb
}

// Skip sets the number of documents to skip
func (qb *QueryBuilder) Skip(n int) *QueryBuilder {
	qb.opts.Skip = n
	return qb
}

// Take sets the maximum number of documents to return (0 = no limit)
func (qb *QueryBuilder) Take(n int) *QueryBuilder {
	qb.opts.Limit = n
	return qb
}

// Find executes the query
func (qb *QueryBuilder) Find() ([]Document, error) {
	return qb.client.Find(qb.collection, qb.opts)
}

// Count returns how many documents the query would return
func (qb *QueryBuilder) Count() (int64, error) {
	return qb.client.Count(qb.collection, qb.opts)
}

// UpdateBuilder builds a remote update
type UpdateBuilder struct {
	client     *Client
	collection string
	filters    []db.Query
	update     db.UpdateOptions
}

// UpdateWhere returns an update builder for collection; it merges by default
func (c *Client) UpdateWhere(collection string) *UpdateBuilder {
	return &UpdateBuilder{
		client:     c,
		collection: collection,
		filters:    []db.Query{},
		update:     db.UpdateOptions{Set: db.Document{}, Merge: true},
	}
}

// Where adds a filter condition
func (ub *UpdateBuilder) Where(field, operator string, value interface{}) *UpdateBuilder {
	ub.filters = append(ub.filters, db.Query{Field: field, Operator: operator, Value: value})
	return ub
}

// Set sets a field path
func (ub *UpdateBuilder) Set(field string, value interface{}) *UpdateBuilder {
	ub.update.Set[field] = value
	return ub
}

// Unset removes a field path
func (ub *UpdateBuilder) Unset(field string) *UpdateBuilder {
	ub.update.Unset = append(ub.update.Unset, field)
	return ub
}

// Replace switches from merge to replace mode
func (ub *UpdateBuilder) Replace() *UpdateBuilder {
	ub.update.Merge = false
	return ub
}

// Exec applies the update and returns how many documents changed
func (ub *UpdateBuilder) Exec() (int64, error) {
	return ub.client.Update(ub.collection, db.FindOptions{Filters: ub.filters}, ub.update)
}

// DeleteBuilder builds a remote delete
type DeleteBuilder struct {
	client     *Client
	collection string
	filters    []db.Query
}

// DeleteWhere returns a delete builder for collection
func (c *Client) DeleteWhere(collection string) *DeleteBuilder {
	return &DeleteBuilder{client: c, collection: collection, filters: []db.Query{}}
}

// Where adds a filter condition
func (b *DeleteBuilder) Where(field, operator string, value interface{}) *DeleteBuilder {
	b.filters = append(b.filters, db.Query{Field: field, Operator: operator, Value: value})
	return b
}

// Exec deletes the matching documents and returns how many were removed
func (b *DeleteBuilder) Exec() (int64, error) {
	return b.client.Delete(b.collection, db.FindOptions{Filters: b.filters})
}
