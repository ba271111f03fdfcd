package account

import "crypto/sha256"

// TagSize is the width of the discriminator written at the front of every
// program-owned record.
const TagSize = 8

// Tag is an 8-byte discriminator identifying a record's logical type.
//
// Two record types with byte-identical field layouts still carry different
// tags, so the validator can never be tricked into reading one type as the
// other ("type cosplay"). The tag is the only authority on a record's type;
// layout and length are never used to infer it.
type Tag [TagSize]byte

// NewTag derives the discriminator for a named record type. The derivation
// follows the Anchor convention: the first 8 bytes of
// SHA256("account:" + name).
func NewTag(name string) Tag {
	h := sha256.Sum256([]byte("account:" + name))
	var t Tag
	copy(t[:], h[:TagSize])
	return t
}

// Discriminators for the closed set of record types owned by the vault
// program. UserRecord and AdminRecord share a byte layout on purpose: the
// tag is what keeps them apart.
var (
	TagVault       = NewTag("Vault")
	TagUserRecord  = NewTag("UserRecord")
	TagAdminRecord = NewTag("AdminRecord")
)

// ReadTag extracts the discriminator from raw record data.
// Returns the zero Tag when the data is too short to hold one.
func ReadTag(data []byte) Tag {
	var t Tag
	if len(data) >= TagSize {
		copy(t[:], data[:TagSize])
	}
	return t
}

// Initialized reports whether raw record data has a discriminator set.
// Freshly allocated accounts are all zeros; writing the tag is the last
// step of initialization, so a non-zero tag slice means the record has
// already been initialized.
func Initialized(data []byte) bool {
	return ReadTag(data) != Tag{}
}
