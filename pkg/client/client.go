// Package client is the Go client for a fawldb server speaking the binary
// document protocol.
package client

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/skshohagmiah/fawldb/internal/db"
	"github.com/skshohagmiah/fawldb/internal/net"
	"github.com/skshohagmiah/fawldb/internal/protocol"
)

// ErrNotFound is returned when the requested document does not exist
var ErrNotFound = errors.New("document not found")

// Document is a JSON object as returned by the server
type Document = map[string]interface{}

// Client talks to one server over a connection pool
type Client struct {
	pool *net.ConnectionPool
}

// New connects to addr with the default pool options
func New(addr string) (*Client, error) {
	return NewWithOptions(net.DefaultPoolOptions(addr))
}

// NewWithOptions connects with custom pool options
func NewWithOptions(opts *net.PoolOptions) (*Client, error) {
	pool, err := net.NewConnectionPool(opts)
	if err != nil {
		return nil, err
	}
	return &Client{pool: pool}, nil
}

// Close closes every pooled connection
func (c *Client) Close() error {
	return c.pool.Close()
}

// do runs one request on a pooled connection and returns the OK payload
func (c *Client) do(frame []byte) ([]byte, error) {
	conn, err := c.pool.Get()
	if err != nil {
		return nil, err
	}
	defer c.pool.Put(conn)

	resp, err := conn.Do(frame)
	if err != nil {
		return nil, err
	}

	switch resp.Status {
	case protocol.StatusOK:
		return resp.Value, nil
	case protocol.StatusNotFound:
		return nil, ErrNotFound
	case protocol.StatusError:
		return nil, fmt.Errorf("server error: %s", resp.Error)
	default:
		return nil, fmt.Errorf("unexpected status: %d", resp.Status)
	}
}

// Insert stores doc in collection and returns its id
func (c *Client) Insert(collection string, doc Document) (int64, error) {
	if err := db.ValidateCollectionName(collection); err != nil {
		return 0, err
	}
	docBytes, err := json.Marshal(doc)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal document: %w", err)
	}

	value, err := c.do(protocol.EncodeInsertRequest(collection, docBytes))
	if err != nil {
		return 0, err
	}

	var out struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(value, &out); err != nil {
		return 0, fmt.Errorf("failed to unmarshal insert response: %w", err)
	}
	return out.ID, nil
}

// Get fetches one document by id
func (c *Client) Get(collection string, id int64) (Document, error) {
	if err := db.ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	value, err := c.do(protocol.EncodeGetRequest(collection, id))
	if err != nil {
		return nil, err
	}

	var doc Document
	if err := json.Unmarshal(value, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return doc, nil
}

// Find runs a query and returns the matching documents
func (c *Client) Find(collection string, opts db.FindOptions) ([]Document, error) {
	if err := db.ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	query, err := json.Marshal(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query options: %w", err)
	}

	value, err := c.do(protocol.EncodeFindRequest(collection, query))
	if err != nil {
		return nil, err
	}

	var results []Document
	if err := json.Unmarshal(value, &results); err != nil {
		return nil, fmt.Errorf("failed to unmarshal results: %w", err)
	}
	return results, nil
}

// Count returns how many documents a query would return
func (c *Client) Count(collection string, opts db.FindOptions) (int64, error) {
	if err := db.ValidateCollectionName(collection); err != nil {
		return 0, err
	}
	query, err := json.Marshal(opts)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal query options: %w", err)
	}
	return c.counted(protocol.EncodeCountRequest(collection, query), "count")
}

// Update applies update to every document matching opts
func (c *Client) Update(collection string, opts db.FindOptions, update db.UpdateOptions) (int64, error) {
	if err := db.ValidateCollectionName(collection); err != nil {
		return 0, err
	}
	query, err := json.Marshal(opts)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal query options: %w", err)
	}
	updateBytes, err := json.Marshal(update)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal update options: %w", err)
	}
	return c.counted(protocol.EncodeUpdateRequest(collection, query, updateBytes), "updated")
}

// Delete removes every document matching opts
func (c *Client) Delete(collection string, opts db.FindOptions) (int64, error) {
	if err := db.ValidateCollectionName(collection); err != nil {
		return 0, err
	}
	query, err := json.Marshal(opts)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal query options: %w", err)
	}
	return c.counted(protocol.EncodeDeleteRequest(collection, query), "deleted")
}

// DeleteByID removes one document
func (c *Client) DeleteByID(collection string, id int64) error {
	n, err := c.Delete(collection, db.FindOptions{
		Filters: []db.Query{{Field: db.FieldID, Operator: db.OpEq, Value: id}},
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// counted runs a request whose reply is {"<key>": n}
func (c *Client) counted(frame []byte, key string) (int64, error) {
	value, err := c.do(frame)
	if err != nil {
		return 0, err
	}

	var out map[string]int64
	if err := json.Unmarshal(value, &out); err != nil {
		return 0, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return out[key], nil
}
