package db

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/skshohagmiah/fawldb/internal/logger"
	"github.com/skshohagmiah/fawldb/internal/storage"
)

var collectionName = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// MaxCollectionNameLen is the longest accepted collection name in bytes; a
// name becomes a directory on the disk backend.
const MaxCollectionNameLen = 255

// ValidateCollectionName returns ErrInvalidCollection unless name is 1 to
// MaxCollectionNameLen letters, digits, '_' or '-'.
func ValidateCollectionName(name string) error {
	if len(name) > MaxCollectionNameLen || !collectionName.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidCollection, name)
	}
	return nil
}

// DocStore provides high-level document database operations
type DocStore struct {
	docs storage.Documents
	seq  storage.Sequence
	log  *slog.Logger
}

// New opens the configured storage backend and wraps it in a document store
func New(opts storage.Options) (*DocStore, error) {
	backend, err := storage.Open(opts)
	if err != nil {
		return nil, err
	}
	return Open(backend, backend), nil
}

// Open creates a document store over an existing document backend and
// identifier sequence.
func Open(docs storage.Documents, seq storage.Sequence) *DocStore {
	return &DocStore{
		docs: docs,
		seq:  seq,
		log:  logger.Component("db"),
	}
}

// Close closes the underlying storage
func (ds *DocStore) Close() error {
	return ds.docs.Close()
}

// Collection initializes (if needed) and returns the named collection
func (ds *DocStore) Collection(name string) (*Collection, error) {
	if err := ValidateCollectionName(name); err != nil {
		return nil, err
	}
	if err := ds.docs.EnsureCollection(name); err != nil {
		return nil, fmt.Errorf("failed to initialize collection %s: %w", name, err)
	}

	c := &Collection{name: name, store: ds}
	c.engine = NewEngine(&collectionSource{c: c})
	return c, nil
}

// Collection is a named set of documents sharing one identifier space
type Collection struct {
	name   string
	store  *DocStore
	engine *Engine
}

// Name returns the collection name
func (c *Collection) Name() string {
	return c.name
}

// collectionSource adapts a collection to the engine's Source
type collectionSource struct {
	c *Collection
}

func (s *collectionSource) Get(id int64) (Document, bool) {
	doc, err := s.c.read(id)
	if err != nil {
		if !errors.Is(err, ErrDocumentNotFound) {
			s.c.store.log.Debug("skipping unreadable document",
				"collection", s.c.name, "id", id, "error", err)
		}
		return nil, false
	}
	return doc, true
}

func (s *collectionSource) LastID() (int64, error) {
	return s.c.store.seq.Last()
}

func (c *Collection) read(id int64) (Document, error) {
	data, err := c.store.docs.Read(c.name, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if doc == nil {
		return nil, ErrInvalidDocument
	}
	return doc, nil
}

func (c *Collection) write(id int64, doc Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	return c.store.docs.Write(c.name, id, data)
}

// Insert stores a new document under the next identifier and returns it
func (c *Collection) Insert(doc Document) (int64, error) {
	stored := make(Document, len(doc)+3)
	for k, v := range doc {
		stored[k] = v
	}

	id, err := c.store.seq.Next()
	if err != nil {
		return 0, fmt.Errorf("failed to allocate id: %w", err)
	}

	now := time.Now().UnixMilli()
	stored[FieldID] = id
	stored[FieldCreatedAt] = now
	stored[FieldUpdatedAt] = now

	if err := c.write(id, stored); err != nil {
		return 0, fmt.Errorf("failed to insert document: %w", err)
	}
	return id, nil
}

// Get retrieves a document by ID
func (c *Collection) Get(id int64) (Document, error) {
	return c.read(id)
}

// Find searches for documents matching the query criteria
func (c *Collection) Find(opts FindOptions) ([]Document, error) {
	return c.engine.Find(opts)
}

// FindOne returns the first document matching the query
func (c *Collection) FindOne(opts FindOptions) (Document, error) {
	opts.Limit = 1
	results, err := c.Find(opts)
	if err != nil {
		return nil, err
	}

	if len(results) == 0 {
		return nil, ErrDocumentNotFound
	}

	return results[0], nil
}

// Count returns the number of documents the query would return
func (c *Collection) Count(opts FindOptions) (int64, error) {
	results, err := c.Find(opts)
	if err != nil {
		return 0, err
	}
	return int64(len(results)), nil
}

// Update modifies a document
func (c *Collection) Update(id int64, opts UpdateOptions) error {
	doc, err := c.read(id)
	if err != nil {
		return err
	}

	if opts.Merge {
		for path, v := range opts.Set {
			if err := setPath(doc, path, v); err != nil {
				return err
			}
		}
	} else {
		replaced := make(Document, len(opts.Set)+3)
		for k, v := range opts.Set {
			replaced[k] = v
		}
		replaced[FieldID] = id // Preserve ID
		replaced[FieldCreatedAt] = doc[FieldCreatedAt]
		doc = replaced
	}

	for _, path := range opts.Unset {
		if isReserved(path) {
			continue
		}
		unsetPath(doc, path)
	}

	doc[FieldUpdatedAt] = time.Now().UnixMilli()

	return c.write(id, doc)
}

// UpdateMany applies opts to every document matching the query
func (c *Collection) UpdateMany(query FindOptions, opts UpdateOptions) (int64, error) {
	results, err := c.Find(query)
	if err != nil {
		return 0, err
	}

	var updated int64
	for _, doc := range results {
		id, ok := toInt64(doc[FieldID])
		if !ok {
			continue
		}
		if err := c.Update(id, opts); err != nil {
			return updated, err
		}
		updated++
	}
	return updated, nil
}

// Delete removes a document
func (c *Collection) Delete(id int64) error {
	if err := c.store.docs.Delete(c.name, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrDocumentNotFound
		}
		return err
	}
	return nil
}

// DeleteMany removes all documents matching a query
func (c *Collection) DeleteMany(opts FindOptions) (int64, error) {
	results, err := c.Find(opts)
	if err != nil {
		return 0, err
	}

	var deleted int64
	for _, doc := range results {
		id, ok := toInt64(doc[FieldID])
		if !ok {
			continue
		}
		if err := c.Delete(id); err != nil {
			// removed by someone else since the scan
			if errors.Is(err, ErrDocumentNotFound) {
				continue
			}
			return deleted, err
		}
		deleted++
	}

	return deleted, nil
}

// Query returns a query builder for the collection
func (c *Collection) Query() *QueryBuilder {
	return newQueryBuilder(c)
}

func isReserved(path string) bool {
	return path == FieldID || path == FieldCreatedAt
}

// setPath writes v at a dot-separated path, creating intermediate maps
func setPath(doc Document, path string, v interface{}) error {
	if path == "" || isReserved(path) {
		return fmt.Errorf("%w: cannot set %q", ErrInvalidDocument, path)
	}
	segments := strings.Split(path, ".")
	current := map[string]interface{}(doc)
	for _, seg := range segments[:len(segments)-1] {
		next, exists := current[seg]
		if !exists || next == nil {
			m := map[string]interface{}{}
			current[seg] = m
			current = m
			continue
		}
		m, ok := next.(map[string]interface{})
		if !ok {
			return fmt.Errorf("%w: %q is not an object in %q", ErrInvalidDocument, seg, path)
		}
		current = m
	}
	current[segments[len(segments)-1]] = v
	return nil
}

// unsetPath removes the value at a dot-separated path if it exists
func unsetPath(doc Document, path string) {
	segments := strings.Split(path, ".")
	current := map[string]interface{}(doc)
	for _, seg := range segments[:len(segments)-1] {
		m, ok := current[seg].(map[string]interface{})
		if !ok {
			return
		}
		current = m
	}
	delete(current, segments[len(segments)-1])
}
