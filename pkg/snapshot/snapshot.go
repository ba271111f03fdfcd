// Package snapshot implements export and import of the account ledger.
//
// A snapshot is a zstd-compressed stream of account records with a
// versioned header, used for operator backup and for seeding a fresh node
// from a known state. Record checksums travel inside the serialized
// records, so a corrupted snapshot fails on import instead of loading
// silently wrong state.
package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/fortiblox/X1-Sentry/internal/types"
	"github.com/fortiblox/X1-Sentry/pkg/ledger"
)

// Stream framing.
var snapshotMagic = [8]byte{'X', '1', 'S', 'E', 'N', 'T', 'R', 'Y'}

// FormatVersion is the current snapshot format version.
const FormatVersion uint32 = 1

// maxRecordSize bounds a single serialized record; anything larger is a
// corrupt or hostile stream, not a real account.
const maxRecordSize = 16 << 20

var (
	// ErrBadMagic is returned when the stream is not a sentry snapshot.
	ErrBadMagic = errors.New("not a sentry snapshot")

	// ErrUnsupportedVersion is returned for snapshot versions this build
	// cannot read.
	ErrUnsupportedVersion = errors.New("unsupported snapshot version")

	// ErrTruncated is returned when the stream ends mid-record.
	ErrTruncated = errors.New("truncated snapshot")
)

// Export writes every record in the ledger to w as a compressed snapshot.
// Returns the number of exported records.
func Export(db ledger.DB, w io.Writer) (uint64, error) {
	count, err := db.RecordCount()
	if err != nil {
		return 0, err
	}

	enc, err := zstd.NewWriter(w)
	if err != nil {
		return 0, fmt.Errorf("zstd writer: %w", err)
	}

	header := make([]byte, 8+4+8)
	copy(header, snapshotMagic[:])
	binary.LittleEndian.PutUint32(header[8:], FormatVersion)
	binary.LittleEndian.PutUint64(header[12:], count)
	if _, err := enc.Write(header); err != nil {
		enc.Close()
		return 0, err
	}

	var written uint64
	err = db.ForEach(func(pubkey types.Pubkey, record *ledger.Record) error {
		raw := record.Serialize()
		frame := make([]byte, types.PubkeySize+8, types.PubkeySize+8+len(raw))
		copy(frame, pubkey[:])
		binary.LittleEndian.PutUint64(frame[types.PubkeySize:], uint64(len(raw)))
		frame = append(frame, raw...)

		if _, err := enc.Write(frame); err != nil {
			return err
		}
		written++
		return nil
	})
	if err != nil {
		enc.Close()
		return 0, err
	}
	if err := enc.Close(); err != nil {
		return 0, err
	}
	return written, nil
}

// Import loads a snapshot stream into the ledger. Returns the number of
// imported records. Records already present in the ledger are overwritten.
func Import(r io.Reader, db ledger.DB) (uint64, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return 0, fmt.Errorf("zstd reader: %w", err)
	}
	defer dec.Close()

	header := make([]byte, 8+4+8)
	if _, err := io.ReadFull(dec, header); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	if [8]byte(header[:8]) != snapshotMagic {
		return 0, ErrBadMagic
	}
	if v := binary.LittleEndian.Uint32(header[8:]); v != FormatVersion {
		return 0, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}
	count := binary.LittleEndian.Uint64(header[12:])

	frameHeader := make([]byte, types.PubkeySize+8)
	for i := uint64(0); i < count; i++ {
		if _, err := io.ReadFull(dec, frameHeader); err != nil {
			return i, fmt.Errorf("%w: record %d: %v", ErrTruncated, i, err)
		}
		pubkey, err := types.PubkeyFromBytes(frameHeader[:types.PubkeySize])
		if err != nil {
			return i, err
		}
		size := binary.LittleEndian.Uint64(frameHeader[types.PubkeySize:])
		if size > maxRecordSize {
			return i, fmt.Errorf("record %d: oversized (%d bytes)", i, size)
		}

		raw := make([]byte, size)
		if _, err := io.ReadFull(dec, raw); err != nil {
			return i, fmt.Errorf("%w: record %d: %v", ErrTruncated, i, err)
		}
		record, err := ledger.DeserializeRecord(raw)
		if err != nil {
			return i, fmt.Errorf("record %d: %w", i, err)
		}
		if err := db.SetRecord(pubkey, record); err != nil {
			return i, err
		}
	}
	return count, nil
}

// SaveFile exports the ledger to a snapshot file.
func SaveFile(db ledger.DB, path string) (uint64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	count, err := Export(db, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return count, err
}

// LoadFile imports a snapshot file into the ledger.
func LoadFile(path string, db ledger.DB) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return Import(f, db)
}
