package ledger

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"

	"github.com/fortiblox/X1-Sentry/internal/types"
)

// prefixRecord is the key prefix for account records.
// Key format: prefixRecord + pubkey (32 bytes).
var prefixRecord = []byte{0x01}

// BadgerConfig contains configuration for the BadgerDB-backed store.
type BadgerConfig struct {
	// Path is the directory path for the database.
	Path string

	// InMemory runs the database in memory (for testing).
	InMemory bool

	// SyncWrites ensures writes are synced to disk.
	// Setting to false improves performance but risks data loss on crash.
	SyncWrites bool
}

// DefaultBadgerConfig returns default configuration.
func DefaultBadgerConfig(path string) BadgerConfig {
	return BadgerConfig{
		Path:       path,
		InMemory:   false,
		SyncWrites: false,
	}
}

// BadgerDB is a BadgerDB-backed implementation of the account store.
// Records are keyed by pubkey under a type prefix so other key spaces can
// share the database later without a migration.
type BadgerDB struct {
	db     *badger.DB
	closed atomic.Bool
}

// OpenBadgerDB opens (creating if needed) a BadgerDB store.
func OpenBadgerDB(cfg BadgerConfig) (*BadgerDB, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerDB{db: db}, nil
}

func recordKey(pubkey types.Pubkey) []byte {
	key := make([]byte, 0, len(prefixRecord)+types.PubkeySize)
	key = append(key, prefixRecord...)
	return append(key, pubkey[:]...)
}

// GetRecord returns the record for an address.
func (b *BadgerDB) GetRecord(pubkey types.Pubkey) (*Record, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}

	var rec *Record
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(pubkey))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s", ErrNotFound, pubkey)
			}
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		rec, err = DeserializeRecord(raw)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// SetRecord stores the record for an address.
func (b *BadgerDB) SetRecord(pubkey types.Pubkey, record *Record) error {
	if b.closed.Load() {
		return ErrClosed
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(pubkey), record.Serialize())
	})
}

// HasRecord reports whether an address has a record.
func (b *BadgerDB) HasRecord(pubkey types.Pubkey) (bool, error) {
	if b.closed.Load() {
		return false, ErrClosed
	}

	exists := false
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(recordKey(pubkey))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		exists = true
		return nil
	})
	return exists, err
}

// DeleteRecord removes an address's record.
func (b *BadgerDB) DeleteRecord(pubkey types.Pubkey) error {
	if b.closed.Load() {
		return ErrClosed
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(recordKey(pubkey))
	})
}

// RecordCount returns the number of stored records.
func (b *BadgerDB) RecordCount() (uint64, error) {
	if b.closed.Load() {
		return 0, ErrClosed
	}

	var count uint64
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefixRecord
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// ForEach calls fn for every stored record.
func (b *BadgerDB) ForEach(fn func(pubkey types.Pubkey, record *Record) error) error {
	if b.closed.Load() {
		return ErrClosed
	}

	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefixRecord
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := item.Key()
			if len(key) != len(prefixRecord)+types.PubkeySize {
				return fmt.Errorf("%w: bad key length %d", ErrInvalidData, len(key))
			}
			pubkey, err := types.PubkeyFromBytes(key[len(prefixRecord):])
			if err != nil {
				return err
			}
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			rec, err := DeserializeRecord(raw)
			if err != nil {
				return err
			}
			if err := fn(pubkey, rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close releases the store.
func (b *BadgerDB) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	return b.db.Close()
}
