package storage

import (
	"strconv"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
)

const (
	collectionPrefix = "col:"
	sequenceKey      = "seq:last"
)

// BadgerStorage keeps documents and the id counter in a single BadgerDB
// instance. Documents live under doc:<collection>:<id>.
type BadgerStorage struct {
	db  *badger.DB
	seq sync.Mutex // serializes Next
}

// NewBadgerStorage opens (or creates) a BadgerDB at path
func NewBadgerStorage(path string, cacheSize uint64) (*BadgerStorage, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	// Small documents, one version each
	opts.NumVersionsToKeep = 1
	opts.ValueThreshold = 1024
	opts.SyncWrites = true
	opts.CompactL0OnClose = false
	if cacheSize > 0 {
		opts.BlockCacheSize = int64(cacheSize)
	}

	badgerDB, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open BadgerDB")
	}

	return &BadgerStorage{db: badgerDB}, nil
}

// Close closes the BadgerDB instance
func (bs *BadgerStorage) Close() error {
	return bs.db.Close()
}

// EnsureCollection records the collection name
func (bs *BadgerStorage) EnsureCollection(collection string) error {
	return bs.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(collectionPrefix+collection), nil)
	})
}

// Read retrieves a document by id
func (bs *BadgerStorage) Read(collection string, id int64) ([]byte, error) {
	var data []byte

	err := bs.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(makeDocKey(collection, id)))
		if err != nil {
			return err
		}

		data, err = item.ValueCopy(nil)
		return err
	})

	if err == badger.ErrKeyNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s/%d", collection, id)
	}
	return data, nil
}

// Write stores a document with the given id
func (bs *BadgerStorage) Write(collection string, id int64, data []byte) error {
	err := bs.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(makeDocKey(collection, id)), data)
	})
	return errors.Wrapf(err, "failed to write %s/%d", collection, id)
}

// Delete removes a document by id
func (bs *BadgerStorage) Delete(collection string, id int64) error {
	key := []byte(makeDocKey(collection, id))
	return bs.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			if err == badger.ErrKeyNotFound {
				return ErrNotFound
			}
			return err
		}
		return txn.Delete(key)
	})
}

// Next increments the counter inside one transaction
func (bs *BadgerStorage) Next() (int64, error) {
	bs.seq.Lock()
	defer bs.seq.Unlock()

	var next int64
	err := bs.db.Update(func(txn *badger.Txn) error {
		last, err := readSequence(txn)
		if err != nil {
			return err
		}
		next = last + 1
		return txn.Set([]byte(sequenceKey), []byte(formatID(next)))
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to allocate id")
	}
	return next, nil
}

// Last returns the last allocated identifier
func (bs *BadgerStorage) Last() (int64, error) {
	var last int64
	err := bs.db.View(func(txn *badger.Txn) error {
		var err error
		last, err = readSequence(txn)
		return err
	})
	return last, err
}

func readSequence(txn *badger.Txn) (int64, error) {
	item, err := txn.Get([]byte(sequenceKey))
	if err == badger.ErrKeyNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var last int64
	err = item.Value(func(val []byte) error {
		var perr error
		last, perr = strconv.ParseInt(string(val), 10, 64)
		return perr
	})
	return last, errors.Wrap(err, "corrupt sequence")
}
