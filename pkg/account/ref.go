// Package account implements the account authorization and integrity
// validation core.
//
// Every account referenced by a transaction is caller-suppliable and
// therefore hostile until proven otherwise. Before any byte of an account's
// content is trusted, the validator confirms, in order:
//
//  1. signer   — the party controlling the address authorized this
//     transaction (when the operation requires it)
//  2. owner    — the account is controlled by the expected program
//  3. tag      — the record's discriminator matches the expected type
//  4. address  — the account sits at the program-derived address the
//     protocol requires (when the operation binds one)
//  5. decode   — the content parses under the fixed, versioned layout with
//     an exact length match
//
// The order is load-bearing: later checks assume earlier invariants hold.
// The first failing check wins and short-circuits the rest, so a returned
// error always names the first violated invariant.
package account

import (
	"errors"
	"fmt"

	"github.com/fortiblox/X1-Sentry/internal/types"
	"github.com/fortiblox/X1-Sentry/pkg/pda"
)

var (
	// ErrMissingSignature is returned when a policy requires the account
	// to have signed the transaction and it has not.
	ErrMissingSignature = errors.New("missing required signature")

	// ErrOwnerMismatch is returned when the account is controlled by a
	// program other than the expected one.
	ErrOwnerMismatch = errors.New("account owner mismatch")

	// ErrSchemaMismatch is returned when the record discriminator does not
	// match the expected type.
	ErrSchemaMismatch = errors.New("account discriminator mismatch")

	// ErrSeedsMismatch is returned when the account's address (or its
	// stored bump) does not match the required derivation.
	ErrSeedsMismatch = errors.New("account address does not match derivation")

	// ErrDataLength is returned when record data is not exactly the length
	// the layout requires.
	ErrDataLength = errors.New("account data length mismatch")

	// ErrAlreadyInitialized is returned when initialization targets a
	// record whose discriminator is already set. Distinct from the
	// validation failures above so callers can tell a re-initialization
	// attempt from a malformed account.
	ErrAlreadyInitialized = errors.New("account already initialized")
)

// Ref is an immutable per-transaction snapshot of an account, captured by
// the runtime before execution begins. The validation core only ever reads
// it; mutation of the underlying storage happens through the runtime's own
// write path after validation succeeds.
//
// IsSigner answers "did the party holding this address's private key
// authorize this exact transaction". It is resolved by the runtime from the
// transaction's signature list and trusted as ground truth here; it must
// never be inferred from an address comparison.
type Ref struct {
	Address  types.Pubkey
	Owner    types.Pubkey
	Data     []byte
	IsSigner bool
}

// NewRef builds a snapshot, defensively copying data so later storage
// writes cannot alias into it.
func NewRef(address, owner types.Pubkey, data []byte, isSigner bool) *Ref {
	buf := make([]byte, len(data))
	copy(buf, data)
	return &Ref{Address: address, Owner: owner, Data: buf, IsSigner: isSigner}
}

// Clone returns a deep copy of the snapshot.
func (r *Ref) Clone() *Ref {
	if r == nil {
		return nil
	}
	return NewRef(r.Address, r.Owner, r.Data, r.IsSigner)
}

// SeedSpec names the derivation an account must satisfy: the seed sequence
// and the program the address is derived under. The bump is not part of the
// spec; the canonical bump is found by the derivation search itself.
type SeedSpec struct {
	Seeds     [][]byte
	ProgramID types.Pubkey
}

// Policy enumerates which checks are mandatory for one operation on one
// account. Policies are plain values built at the call site; there is no
// process-wide registry of expected owners.
type Policy struct {
	// RequireSigner demands that the account signed the transaction.
	RequireSigner bool

	// Owner is the program that must control the account.
	Owner types.Pubkey

	// Tag, when non-nil, is the discriminator the record must carry.
	Tag *Tag

	// Seeds, when non-nil, binds the account to a program-derived address.
	Seeds *SeedSpec
}

// Validate runs checks 1–4 against the snapshot. It does not decode the
// record; use the typed Decode helpers for check 5. Validation is pure and
// idempotent: the same ref and policy always produce the same result.
func Validate(ref *Ref, p Policy) error {
	_, err := validate(ref, p)
	return err
}

// validate returns the canonical bump of the policy derivation (when one is
// required) so that decode helpers can compare it against a stored bump
// without re-running the search.
func validate(ref *Ref, p Policy) (bump uint8, err error) {
	if p.RequireSigner && !ref.IsSigner {
		return 0, fmt.Errorf("account %s: %w", ref.Address, ErrMissingSignature)
	}

	if !ref.Owner.Equals(p.Owner) {
		return 0, fmt.Errorf("account %s: %w: got %s, want %s",
			ref.Address, ErrOwnerMismatch, ref.Owner, p.Owner)
	}

	if p.Tag != nil {
		if ReadTag(ref.Data) != *p.Tag {
			return 0, fmt.Errorf("account %s: %w", ref.Address, ErrSchemaMismatch)
		}
	}

	if p.Seeds != nil {
		derived, b, derr := pda.FindProgramAddress(p.Seeds.Seeds, p.Seeds.ProgramID)
		if derr != nil {
			return 0, fmt.Errorf("account %s: derive expected address: %w", ref.Address, derr)
		}
		if !derived.Equals(ref.Address) {
			return 0, fmt.Errorf("account %s: %w: derived %s", ref.Address, ErrSeedsMismatch, derived)
		}
		bump = b
	}

	return bump, nil
}
