package storage

import (
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/peterbourgon/diskv/v3"
	"github.com/pkg/errors"
)

const (
	dataStoreDir   = "data_store"
	systemIndexDir = "system_index"
	tempDir        = "tmp"
	documentExt    = ".json"
	counterKey     = "counter"
	counterExt     = ".sdb"
)

// DiskStorage keeps every document in its own JSON file:
//
//	<path>/data_store/<collection>/<id>.json
//	<path>/system_index/counter.sdb
//
// The counter file holds the last assigned id in decimal and is shared by all
// collections under path.
type DiskStorage struct {
	root    string
	docs    *diskv.Diskv
	system  *diskv.Diskv
	counter sync.Mutex
}

// NewDiskStorage creates the directory layout under path and opens it.
func NewDiskStorage(path string, cacheSize uint64) (*DiskStorage, error) {
	if path == "" {
		return nil, errors.New("storage path is required")
	}
	for _, dir := range []string{dataStoreDir, systemIndexDir, tempDir} {
		if err := os.MkdirAll(filepath.Join(path, dir), 0o755); err != nil {
			return nil, errors.Wrapf(err, "failed to create %s", dir)
		}
	}

	docs := diskv.New(diskv.Options{
		BasePath:          filepath.Join(path, dataStoreDir),
		AdvancedTransform: documentTransform,
		InverseTransform:  documentInverse,
		CacheSizeMax:      cacheSize,
		TempDir:           filepath.Join(path, tempDir),
	})
	system := diskv.New(diskv.Options{
		BasePath:          filepath.Join(path, systemIndexDir),
		AdvancedTransform: counterTransform,
		InverseTransform:  counterInverse,
		TempDir:           filepath.Join(path, tempDir),
	})

	return &DiskStorage{root: path, docs: docs, system: system}, nil
}

// documentTransform maps "<collection>/<id>" to <collection>/<id>.json
func documentTransform(key string) *diskv.PathKey {
	idx := strings.LastIndex(key, "/")
	return &diskv.PathKey{
		Path:     []string{key[:idx]},
		FileName: key[idx+1:] + documentExt,
	}
}

func documentInverse(pathKey *diskv.PathKey) string {
	return strings.Join(pathKey.Path, "/") + "/" + strings.TrimSuffix(pathKey.FileName, documentExt)
}

func counterTransform(key string) *diskv.PathKey {
	return &diskv.PathKey{Path: []string{}, FileName: key + counterExt}
}

func counterInverse(pathKey *diskv.PathKey) string {
	return strings.TrimSuffix(pathKey.FileName, counterExt)
}

func diskKey(collection string, id int64) string {
	return collection + "/" + formatID(id)
}

// EnsureCollection creates the collection directory
func (ds *DiskStorage) EnsureCollection(collection string) error {
	dir := filepath.Join(ds.root, dataStoreDir, collection)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create collection %s", collection)
	}
	return nil
}

// Read returns the raw document stored under id
func (ds *DiskStorage) Read(collection string, id int64) ([]byte, error) {
	data, err := ds.docs.Read(diskKey(collection, id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "failed to read %s/%d", collection, id)
	}
	return data, nil
}

// Write stores a document, replacing any previous version
func (ds *DiskStorage) Write(collection string, id int64, data []byte) error {
	if err := ds.docs.Write(diskKey(collection, id), data); err != nil {
		return errors.Wrapf(err, "failed to write %s/%d", collection, id)
	}
	return nil
}

// Delete removes a document file
func (ds *DiskStorage) Delete(collection string, id int64) error {
	if err := ds.docs.Erase(diskKey(collection, id)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return errors.Wrapf(err, "failed to delete %s/%d", collection, id)
	}
	return nil
}

// Next allocates the next identifier
func (ds *DiskStorage) Next() (int64, error) {
	ds.counter.Lock()
	defer ds.counter.Unlock()

	last, err := ds.readCounter()
	if err != nil {
		return 0, err
	}
	next := last + 1
	if err := ds.system.Write(counterKey, []byte(formatID(next))); err != nil {
		return 0, errors.Wrap(err, "failed to write counter")
	}
	return next, nil
}

// Last returns the last allocated identifier
func (ds *DiskStorage) Last() (int64, error) {
	ds.counter.Lock()
	defer ds.counter.Unlock()
	return ds.readCounter()
}

func (ds *DiskStorage) readCounter() (int64, error) {
	data, err := ds.system.Read(counterKey)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, errors.Wrap(err, "failed to read counter")
	}
	last, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "corrupt counter %q", data)
	}
	return last, nil
}

// Close is a no-op; every write is already on disk.
func (ds *DiskStorage) Close() error {
	return nil
}
