package storage

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
)

var (
	ErrNotFound       = errors.New("document not found")
	ErrUnknownBackend = errors.New("unknown storage backend")
)

// Backend names accepted by Open
const (
	BackendDisk   = "disk"
	BackendBadger = "badger"
)

// Documents persists raw document bodies addressed by collection and id.
type Documents interface {
	// EnsureCollection creates the collection if it does not exist yet.
	EnsureCollection(collection string) error
	// Read returns ErrNotFound when nothing is stored under id.
	Read(collection string, id int64) ([]byte, error)
	Write(collection string, id int64, data []byte) error
	Delete(collection string, id int64) error
	Close() error
}

// Sequence hands out document identifiers. Next performs an atomic
// read-increment-write of the counter; Last reads it without changing it and
// returns 0 before the first allocation.
type Sequence interface {
	Next() (int64, error)
	Last() (int64, error)
}

// Backend is a document store together with its identifier counter.
type Backend interface {
	Documents
	Sequence
}

// Options configures Open
type Options struct {
	Backend   string
	Path      string
	CacheSize uint64 // bytes of document cache, 0 disables caching
}

// Open creates the backend named in opts rooted at opts.Path.
func Open(opts Options) (Backend, error) {
	switch opts.Backend {
	case BackendDisk, "":
		return NewDiskStorage(opts.Path, opts.CacheSize)
	case BackendBadger:
		return NewBadgerStorage(opts.Path, opts.CacheSize)
	default:
		return nil, errors.Wrapf(ErrUnknownBackend, "backend %q", opts.Backend)
	}
}

func makeDocKey(collection string, id int64) string {
	return fmt.Sprintf("doc:%s:%d", collection, id)
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
