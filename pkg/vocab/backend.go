package vocab

import (
	"errors"

	"github.com/dgraph-io/badger/v4"
)

// Backend is a minimal key-value store for the saved-word list.
type Backend interface {
	// Load returns nil, nil when key is absent.
	Load(key string) ([]byte, error)
	Store(key string, value []byte) error
	Close() error
}

// BadgerBackend keeps saved words in a badger database.
type BadgerBackend struct {
	db *badger.DB
}

// OpenBadger opens (or creates) a database under dir. An empty dir opens an
// in-memory database.
func OpenBadger(dir string) (*BadgerBackend, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerBackend{db: db}, nil
}

func (b *BadgerBackend) Load(key string) ([]byte, error) {
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	return out, err
}

func (b *BadgerBackend) Store(key string, value []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

func (b *BadgerBackend) Close() error {
	return b.db.Close()
}
