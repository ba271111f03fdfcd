// Package ledger implements the account store backing the runtime.
//
// The store holds the persistent record for every account address:
// lamports, owner program and raw record data. The validation core never
// touches this package directly — the runtime reads records here, freezes
// them into immutable snapshots for validation, and writes results back
// after a transaction succeeds.
//
// Two implementations are provided: a BadgerDB-backed store for durable
// deployments and an in-memory store for tests and the demo harness. Every
// stored record carries a BLAKE3 checksum that is verified on read, so
// silent on-disk corruption surfaces as ErrCorrupted instead of as a
// plausible-looking record.
package ledger

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/zeebo/blake3"

	"github.com/fortiblox/X1-Sentry/internal/types"
)

var (
	// ErrNotFound is returned when an account doesn't exist.
	ErrNotFound = errors.New("account not found")

	// ErrCorrupted is returned when a stored record fails its checksum.
	ErrCorrupted = errors.New("record corrupted")

	// ErrClosed is returned when operating on a closed store.
	ErrClosed = errors.New("store closed")

	// ErrInvalidData is returned when a stored record is malformed.
	ErrInvalidData = errors.New("invalid record data")
)

// Record is the persistent state of one account.
type Record struct {
	// Lamports is the account balance in lamports.
	Lamports uint64

	// Owner is the program that controls writes to this account.
	Owner types.Pubkey

	// Data is the raw record content.
	Data []byte
}

// Clone creates a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	data := make([]byte, len(r.Data))
	copy(data, r.Data)
	return &Record{Lamports: r.Lamports, Owner: r.Owner, Data: data}
}

// recordChecksumSize is the width of the trailing BLAKE3 checksum.
const recordChecksumSize = 32

// Serialize encodes the record for storage.
// Format: lamports (8) | owner (32) | data_len (8) | data | blake3 (32).
// The checksum covers everything before it.
func (r *Record) Serialize() []byte {
	n := 8 + types.PubkeySize + 8 + len(r.Data)
	buf := make([]byte, n, n+recordChecksumSize)
	binary.LittleEndian.PutUint64(buf[0:8], r.Lamports)
	copy(buf[8:], r.Owner[:])
	binary.LittleEndian.PutUint64(buf[8+types.PubkeySize:], uint64(len(r.Data)))
	copy(buf[8+types.PubkeySize+8:], r.Data)

	sum := blake3.Sum256(buf)
	return append(buf, sum[:]...)
}

// DeserializeRecord decodes a stored record, verifying its checksum.
func DeserializeRecord(buf []byte) (*Record, error) {
	const header = 8 + types.PubkeySize + 8
	if len(buf) < header+recordChecksumSize {
		return nil, ErrInvalidData
	}

	payload := buf[:len(buf)-recordChecksumSize]
	var stored [recordChecksumSize]byte
	copy(stored[:], buf[len(buf)-recordChecksumSize:])
	if blake3.Sum256(payload) != stored {
		return nil, ErrCorrupted
	}

	var r Record
	r.Lamports = binary.LittleEndian.Uint64(payload[0:8])
	copy(r.Owner[:], payload[8:8+types.PubkeySize])

	dataLen := binary.LittleEndian.Uint64(payload[8+types.PubkeySize:])
	data := payload[header:]
	if uint64(len(data)) != dataLen {
		return nil, ErrInvalidData
	}
	r.Data = make([]byte, dataLen)
	copy(r.Data, data)
	return &r, nil
}

// DB is the account store interface.
type DB interface {
	// GetRecord returns the record for an address.
	GetRecord(pubkey types.Pubkey) (*Record, error)

	// SetRecord stores the record for an address.
	SetRecord(pubkey types.Pubkey, record *Record) error

	// HasRecord reports whether an address has a record.
	HasRecord(pubkey types.Pubkey) (bool, error)

	// DeleteRecord removes an address's record.
	DeleteRecord(pubkey types.Pubkey) error

	// RecordCount returns the number of stored records.
	RecordCount() (uint64, error)

	// ForEach calls fn for every stored record. Iteration stops at the
	// first error, which is returned.
	ForEach(fn func(pubkey types.Pubkey, record *Record) error) error

	// Close releases the store.
	Close() error
}

// MemoryDB is an in-memory DB implementation for tests and the demo
// harness.
type MemoryDB struct {
	mu      sync.RWMutex
	records map[types.Pubkey]*Record
	closed  bool
}

// NewMemoryDB creates an empty in-memory store.
func NewMemoryDB() *MemoryDB {
	return &MemoryDB{records: make(map[types.Pubkey]*Record)}
}

// GetRecord returns the record for an address.
func (db *MemoryDB) GetRecord(pubkey types.Pubkey) (*Record, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return nil, ErrClosed
	}
	rec, ok := db.records[pubkey]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, pubkey)
	}
	return rec.Clone(), nil
}

// SetRecord stores the record for an address.
func (db *MemoryDB) SetRecord(pubkey types.Pubkey, record *Record) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ErrClosed
	}
	db.records[pubkey] = record.Clone()
	return nil
}

// HasRecord reports whether an address has a record.
func (db *MemoryDB) HasRecord(pubkey types.Pubkey) (bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return false, ErrClosed
	}
	_, ok := db.records[pubkey]
	return ok, nil
}

// DeleteRecord removes an address's record.
func (db *MemoryDB) DeleteRecord(pubkey types.Pubkey) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ErrClosed
	}
	delete(db.records, pubkey)
	return nil
}

// RecordCount returns the number of stored records.
func (db *MemoryDB) RecordCount() (uint64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return 0, ErrClosed
	}
	return uint64(len(db.records)), nil
}

// ForEach calls fn for every stored record.
func (db *MemoryDB) ForEach(fn func(pubkey types.Pubkey, record *Record) error) error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return ErrClosed
	}
	for pk, rec := range db.records {
		if err := fn(pk, rec.Clone()); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the store.
func (db *MemoryDB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.closed = true
	db.records = nil
	return nil
}
