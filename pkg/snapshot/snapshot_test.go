package snapshot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"

	"github.com/fortiblox/X1-Sentry/internal/types"
	"github.com/fortiblox/X1-Sentry/pkg/ledger"
)

func populatedDB(t *testing.T, n int) *ledger.MemoryDB {
	t.Helper()
	db := ledger.NewMemoryDB()
	for i := 0; i < n; i++ {
		pk := types.Pubkey(types.ComputeHash([]byte(fmt.Sprintf("account-%d", i))))
		rec := &ledger.Record{
			Lamports: uint64(i) * 1000,
			Owner:    types.VaultProgramAddr,
			Data:     []byte(fmt.Sprintf("data-%d", i)),
		}
		if err := db.SetRecord(pk, rec); err != nil {
			t.Fatalf("SetRecord failed: %v", err)
		}
	}
	return db
}

func TestExportImportRoundtrip(t *testing.T) {
	src := populatedDB(t, 25)

	var buf bytes.Buffer
	exported, err := Export(src, &buf)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if exported != 25 {
		t.Fatalf("exported %d records, want 25", exported)
	}

	dst := ledger.NewMemoryDB()
	imported, err := Import(&buf, dst)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if imported != 25 {
		t.Fatalf("imported %d records, want 25", imported)
	}

	err = src.ForEach(func(pk types.Pubkey, want *ledger.Record) error {
		got, err := dst.GetRecord(pk)
		if err != nil {
			return err
		}
		if got.Lamports != want.Lamports || !got.Owner.Equals(want.Owner) || !bytes.Equal(got.Data, want.Data) {
			t.Errorf("record %s differs after roundtrip", pk)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("comparison failed: %v", err)
	}
}

// tamperedStream builds a compressed stream whose header is modified by fn.
func tamperedStream(t *testing.T, fn func(header []byte)) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		t.Fatalf("zstd writer: %v", err)
	}
	header := make([]byte, 8+4+8)
	copy(header, snapshotMagic[:])
	binary.LittleEndian.PutUint32(header[8:], FormatVersion)
	fn(header)
	if _, err := enc.Write(header); err != nil {
		t.Fatalf("write header: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	return &buf
}

func TestImportRejectsBadMagic(t *testing.T) {
	stream := tamperedStream(t, func(header []byte) {
		header[0] = 'Z'
	})
	if _, err := Import(stream, ledger.NewMemoryDB()); !errors.Is(err, ErrBadMagic) {
		t.Fatalf("error = %v, want ErrBadMagic", err)
	}

	// A stream that is not zstd at all fails too, just earlier.
	junk := bytes.NewBufferString("definitely not a snapshot")
	if _, err := Import(junk, ledger.NewMemoryDB()); err == nil {
		t.Fatal("Import accepted junk input")
	}
}

func TestImportRejectsTruncated(t *testing.T) {
	src := populatedDB(t, 10)
	var buf bytes.Buffer
	if _, err := Export(src, &buf); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	truncated := bytes.NewReader(buf.Bytes()[:buf.Len()/2])
	if _, err := Import(truncated, ledger.NewMemoryDB()); err == nil {
		t.Fatal("Import accepted a truncated snapshot")
	}
}

func TestEmptySnapshot(t *testing.T) {
	var buf bytes.Buffer
	exported, err := Export(ledger.NewMemoryDB(), &buf)
	if err != nil || exported != 0 {
		t.Fatalf("Export empty = (%d, %v), want (0, nil)", exported, err)
	}

	imported, err := Import(&buf, ledger.NewMemoryDB())
	if err != nil || imported != 0 {
		t.Fatalf("Import empty = (%d, %v), want (0, nil)", imported, err)
	}
}

func TestSaveLoadFile(t *testing.T) {
	src := populatedDB(t, 5)
	path := filepath.Join(t.TempDir(), "ledger.snap.zst")

	if _, err := SaveFile(src, path); err != nil {
		t.Fatalf("SaveFile failed: %v", err)
	}

	dst := ledger.NewMemoryDB()
	imported, err := LoadFile(path, dst)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if imported != 5 {
		t.Errorf("imported %d records, want 5", imported)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.zst"), dst); err == nil {
		t.Error("LoadFile accepted a missing file")
	}
}

func TestImportVersionCheck(t *testing.T) {
	stream := tamperedStream(t, func(header []byte) {
		binary.LittleEndian.PutUint32(header[8:], FormatVersion+1)
	})
	if _, err := Import(stream, ledger.NewMemoryDB()); !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("error = %v, want ErrUnsupportedVersion", err)
	}
}
