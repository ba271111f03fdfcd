package account

import (
	"encoding/binary"

	"github.com/fortiblox/X1-Sentry/internal/types"
)

// Record layouts are fixed and versioned by their discriminator. All
// integers are little-endian. Decoding demands an exact length match; a
// short or long buffer is a validation failure, never a partial read.
//
//	Vault:       tag (8) | authority (32) | balance (8) | bump (1)
//	UserRecord:  tag (8) | authority (32) | balance (8)
//	AdminRecord: tag (8) | authority (32) | privileges (8)
const (
	VaultLen       = TagSize + types.PubkeySize + 8 + 1
	UserRecordLen  = TagSize + types.PubkeySize + 8
	AdminRecordLen = TagSize + types.PubkeySize + 8
)

// Vault is the validated view of a vault record. It is a one-way owned
// projection: it carries no reference back to the raw snapshot it was
// decoded from, and mutating it never touches stored state until the
// caller writes the re-encoded bytes back through the runtime.
type Vault struct {
	// Authority is the only party allowed to withdraw.
	Authority types.Pubkey

	// Balance is the vault's token balance.
	Balance uint64

	// Bump is the bump seed the vault's address was derived with.
	Bump uint8
}

// Encode serializes the vault with its discriminator.
func (v *Vault) Encode() []byte {
	buf := make([]byte, VaultLen)
	copy(buf[:TagSize], TagVault[:])
	copy(buf[TagSize:], v.Authority[:])
	binary.LittleEndian.PutUint64(buf[TagSize+types.PubkeySize:], v.Balance)
	buf[VaultLen-1] = v.Bump
	return buf
}

func decodeVault(data []byte) (*Vault, error) {
	if ReadTag(data) != TagVault {
		return nil, ErrSchemaMismatch
	}
	if len(data) != VaultLen {
		return nil, ErrDataLength
	}
	var v Vault
	copy(v.Authority[:], data[TagSize:TagSize+types.PubkeySize])
	v.Balance = binary.LittleEndian.Uint64(data[TagSize+types.PubkeySize:])
	v.Bump = data[VaultLen-1]
	return &v, nil
}

// UserRecord is the validated view of a user record.
type UserRecord struct {
	Authority types.Pubkey
	Balance   uint64
}

// Encode serializes the user record with its discriminator.
func (u *UserRecord) Encode() []byte {
	buf := make([]byte, UserRecordLen)
	copy(buf[:TagSize], TagUserRecord[:])
	copy(buf[TagSize:], u.Authority[:])
	binary.LittleEndian.PutUint64(buf[TagSize+types.PubkeySize:], u.Balance)
	return buf
}

func decodeUserRecord(data []byte) (*UserRecord, error) {
	if ReadTag(data) != TagUserRecord {
		return nil, ErrSchemaMismatch
	}
	if len(data) != UserRecordLen {
		return nil, ErrDataLength
	}
	var u UserRecord
	copy(u.Authority[:], data[TagSize:TagSize+types.PubkeySize])
	u.Balance = binary.LittleEndian.Uint64(data[TagSize+types.PubkeySize:])
	return &u, nil
}

// AdminRecord is the validated view of an admin record. Its byte layout is
// identical to UserRecord; only the tag distinguishes them.
type AdminRecord struct {
	Authority  types.Pubkey
	Privileges uint64
}

// Encode serializes the admin record with its discriminator.
func (a *AdminRecord) Encode() []byte {
	buf := make([]byte, AdminRecordLen)
	copy(buf[:TagSize], TagAdminRecord[:])
	copy(buf[TagSize:], a.Authority[:])
	binary.LittleEndian.PutUint64(buf[TagSize+types.PubkeySize:], a.Privileges)
	return buf
}

func decodeAdminRecord(data []byte) (*AdminRecord, error) {
	if ReadTag(data) != TagAdminRecord {
		return nil, ErrSchemaMismatch
	}
	if len(data) != AdminRecordLen {
		return nil, ErrDataLength
	}
	var a AdminRecord
	copy(a.Authority[:], data[TagSize:TagSize+types.PubkeySize])
	a.Privileges = binary.LittleEndian.Uint64(data[TagSize+types.PubkeySize:])
	return &a, nil
}
