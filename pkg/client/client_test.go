package client

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skshohagmiah/fawldb/internal/db"
	"github.com/skshohagmiah/fawldb/internal/server"
	"github.com/skshohagmiah/fawldb/internal/storage"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	store, err := db.New(storage.Options{Backend: storage.BackendBadger, Path: t.TempDir()})
	require.NoError(t, err)

	srv, err := server.NewServer(store, "127.0.0.1:0", 8, server.NewMetrics(prometheus.NewRegistry()))
	require.NoError(t, err)
	go srv.Start()

	c, err := New(srv.Addr().String())
	require.NoError(t, err)

	t.Cleanup(func() {
		c.Close()
		srv.Stop()
		store.Close()
	})
	return c
}

func TestClientRoundTrip(t *testing.T) {
	c := newTestClient(t)

	for _, doc := range []Document{
		{"name": "Alice", "age": 30, "address": map[string]interface{}{"city": "Oslo"}},
		{"name": "Bob", "age": 25, "address": map[string]interface{}{"city": "Bergen"}},
		{"name": "Carol", "age": 40, "address": map[string]interface{}{"city": "Oslo"}},
	} {
		_, err := c.Insert("users", doc)
		require.NoError(t, err)
	}

	doc, err := c.Get("users", 3)
	require.NoError(t, err)
	assert.Equal(t, "Carol", doc["name"])

	_, err = c.Get("users", 99)
	assert.ErrorIs(t, err, ErrNotFound)

	results, err := c.Query("users").
		Where("address.city", "=", "Oslo").
		OrderBy("age", "asc").
		Find()
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Alice", results[0]["name"])
	assert.Equal(t, "Carol", results[1]["name"])

	results, err = c.Query("users").Search("Karol", "name").Find()
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Carol", results[0]["name"])

	n, err := c.Query("users").Skip(1).Take(1).Count()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = c.UpdateWhere("users").Where("name", "=", "Bob").Set("age", 26).Exec()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	bob, err := c.Get("users", 2)
	require.NoError(t, err)
	assert.Equal(t, 26.0, bob["age"])

	require.NoError(t, c.DeleteByID("users", 2))
	assert.ErrorIs(t, c.DeleteByID("users", 2), ErrNotFound)

	n, err = c.DeleteWhere("users").Where("age", ">", 35).Exec()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = c.Query("users").Count()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestClientServerError(t *testing.T) {
	c := newTestClient(t)

	_, err := c.Query("users").Where("age", "~", 1).Find()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid query")

	// the connection stays usable after an error reply
	_, err = c.Insert("users", Document{"name": "Alice"})
	assert.NoError(t, err)
}

func TestClientRejectsBadCollectionNames(t *testing.T) {
	c := newTestClient(t)

	long := strings.Repeat("c", 70000)
	_, err := c.Insert(long, Document{"name": "Alice"})
	assert.ErrorIs(t, err, db.ErrInvalidCollection)

	_, err = c.Find("bad name", db.FindOptions{})
	assert.ErrorIs(t, err, db.ErrInvalidCollection)

	_, err = c.Get(long, 1)
	assert.ErrorIs(t, err, db.ErrInvalidCollection)

	// nothing was written to the wire, so the pooled connection still works
	id, err := c.Insert("users", Document{"name": "Alice"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}
