// Package journal provides the persistent transaction journal.
//
// Every transaction processed by the runtime — successful or rejected — is
// recorded here once, keyed by its transaction ID. The journal serves two
// purposes: it is the replay guard (a transaction ID can never be processed
// twice) and the audit trail an operator inspects to see why an operation
// was rejected. Receipts carry a Keccak-256 digest over their canonical
// encoding so an exported receipt can be matched against the journal later.
package journal

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
	"golang.org/x/crypto/sha3"

	"github.com/fortiblox/X1-Sentry/internal/types"
)

var (
	// ErrNotFound is returned when a receipt doesn't exist.
	ErrNotFound = errors.New("receipt not found")

	// ErrDuplicate is returned when a transaction ID was already journaled.
	ErrDuplicate = errors.New("transaction already journaled")

	// ErrClosed is returned when operating on a closed journal.
	ErrClosed = errors.New("journal closed")
)

// Bucket names for BoltDB.
var (
	// bucketReceipts stores receipts keyed by transaction ID.
	bucketReceipts = []byte("receipts")

	// bucketSequence indexes transaction IDs by append order.
	bucketSequence = []byte("sequence")
)

// Receipt records the outcome of one processed transaction.
type Receipt struct {
	// TxID is the transaction's unique identifier.
	TxID types.Hash

	// Seq is the journal append sequence, assigned on Append.
	Seq uint64

	// Err holds the rejection reason; empty for a successful transaction.
	Err string

	// Logs are the program log lines emitted during execution.
	Logs []string

	// Digest is the Keccak-256 digest of the canonical receipt content.
	Digest types.Hash
}

// Succeeded reports whether the transaction was applied.
func (r *Receipt) Succeeded() bool {
	return r.Err == ""
}

// NewReceipt builds a receipt and seals it with its content digest.
func NewReceipt(txID types.Hash, execErr error, logs []string) *Receipt {
	r := &Receipt{TxID: txID, Logs: logs}
	if execErr != nil {
		r.Err = execErr.Error()
	}
	r.Digest = digest(r)
	return r
}

// digest computes the Keccak-256 digest over the length-prefixed canonical
// content: txID, error string and each log line. Seq is excluded so the
// digest is stable before and after Append.
func digest(r *Receipt) types.Hash {
	h := sha3.NewLegacyKeccak256()
	h.Write(r.TxID[:])

	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(r.Err)))
	h.Write(lenBuf[:])
	h.Write([]byte(r.Err))

	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(r.Logs)))
	h.Write(lenBuf[:])
	for _, line := range r.Logs {
		binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(line)))
		h.Write(lenBuf[:])
		h.Write([]byte(line))
	}

	var out types.Hash
	copy(out[:], h.Sum(nil))
	return out
}

// VerifyDigest recomputes the receipt digest and compares it to the sealed
// value.
func (r *Receipt) VerifyDigest() bool {
	return digest(r) == r.Digest
}

// Journal is the BoltDB-backed receipt log.
type Journal struct {
	db *bolt.DB
}

// Open opens (creating if needed) a journal at path.
func Open(path string) (*Journal, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketReceipts, bucketSequence} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init journal buckets: %w", err)
	}
	return &Journal{db: db}, nil
}

// Append journals a receipt. The receipt's sequence number is assigned
// here. A transaction ID may be journaled at most once.
func (j *Journal) Append(r *Receipt) error {
	return j.update(func(tx *bolt.Tx) error {
		receipts := tx.Bucket(bucketReceipts)
		if receipts.Get(r.TxID[:]) != nil {
			return fmt.Errorf("%w: %s", ErrDuplicate, r.TxID)
		}

		seqBucket := tx.Bucket(bucketSequence)
		seq, err := seqBucket.NextSequence()
		if err != nil {
			return err
		}
		r.Seq = seq

		var encoded bytes.Buffer
		if err := gob.NewEncoder(&encoded).Encode(r); err != nil {
			return fmt.Errorf("encode receipt: %w", err)
		}
		if err := receipts.Put(r.TxID[:], encoded.Bytes()); err != nil {
			return err
		}

		var seqKey [8]byte
		binary.BigEndian.PutUint64(seqKey[:], seq)
		return seqBucket.Put(seqKey[:], r.TxID[:])
	})
}

// Get returns the receipt for a transaction ID.
func (j *Journal) Get(txID types.Hash) (*Receipt, error) {
	var r *Receipt
	err := j.view(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketReceipts).Get(txID[:])
		if raw == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, txID)
		}
		r = new(Receipt)
		return gob.NewDecoder(bytes.NewReader(raw)).Decode(r)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Has reports whether a transaction ID was already journaled.
func (j *Journal) Has(txID types.Hash) (bool, error) {
	exists := false
	err := j.view(func(tx *bolt.Tx) error {
		exists = tx.Bucket(bucketReceipts).Get(txID[:]) != nil
		return nil
	})
	return exists, err
}

// Count returns the number of journaled receipts.
func (j *Journal) Count() (uint64, error) {
	var count uint64
	err := j.view(func(tx *bolt.Tx) error {
		count = uint64(tx.Bucket(bucketReceipts).Stats().KeyN)
		return nil
	})
	return count, err
}

// Close releases the journal.
func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) update(fn func(*bolt.Tx) error) error {
	if err := j.db.Update(fn); err != nil {
		if errors.Is(err, bolt.ErrDatabaseNotOpen) {
			return ErrClosed
		}
		return err
	}
	return nil
}

func (j *Journal) view(fn func(*bolt.Tx) error) error {
	if err := j.db.View(fn); err != nil {
		if errors.Is(err, bolt.ErrDatabaseNotOpen) {
			return ErrClosed
		}
		return err
	}
	return nil
}
