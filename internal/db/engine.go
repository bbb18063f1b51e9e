package db

import "fmt"

// Source is the read side of a collection as seen by the query engine.
type Source interface {
	// Get returns the document stored under id. Missing or unreadable
	// documents report false; Get never fails.
	Get(id int64) (Document, bool)
	// LastID is the highest identifier ever assigned.
	LastID() (int64, error)
}

// Engine evaluates queries against a Source by scanning every identifier in
// [0, LastID]. It keeps no state between queries.
type Engine struct {
	source Source
}

// NewEngine creates a query engine over source
func NewEngine(source Source) *Engine {
	return &Engine{source: source}
}

// Find returns the documents matching opts. Sorting happens before filtering;
// search ranking, skip and limit happen after it, in that order. A ranking
// search replaces the sort order in the final output.
func (e *Engine) Find(opts FindOptions) ([]Document, error) {
	opts, err := opts.Normalize()
	if err != nil {
		return nil, err
	}

	lastID, err := e.source.LastID()
	if err != nil {
		return nil, fmt.Errorf("failed to read last id: %w", err)
	}

	var found []Document
	visit := func(doc Document) {
		if len(opts.Filters) == 0 || matchesFilters(doc, opts.Filters) {
			found = append(found, doc)
		}
	}

	if opts.Sort != nil && opts.Sort.Direction != SortNone {
		docs := e.all(lastID)
		for _, doc := range SortDocuments(docs, opts.Sort.Field, opts.Sort.Direction) {
			visit(doc)
		}
	} else {
		for id := int64(0); id <= lastID; id++ {
			if doc, ok := e.source.Get(id); ok {
				visit(doc)
			}
		}
	}

	if len(found) == 0 {
		return []Document{}, nil
	}

	if opts.Search != nil && opts.Search.Keyword != "" {
		found = Rank(found, *opts.Search)
		if len(found) == 0 {
			return []Document{}, nil
		}
	}

	return paginate(found, opts.Skip, opts.Limit), nil
}

// all materializes every existing document in identifier order.
func (e *Engine) all(lastID int64) []Document {
	var docs []Document
	for id := int64(0); id <= lastID; id++ {
		if doc, ok := e.source.Get(id); ok {
			docs = append(docs, doc)
		}
	}
	return docs
}

// paginate returns results[skip : min(len, skip+limit)]; limit 0 is unbounded.
func paginate(results []Document, skip, limit int) []Document {
	if skip > 0 {
		if skip >= len(results) {
			return []Document{}
		}
		results = results[skip:]
	}
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}
