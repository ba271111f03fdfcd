// Package cpi implements delegated-authority proofs for cross-program
// invocation.
//
// When a program acts with program-level authority, the authority it
// presents must be an address derived from seeds under that program's
// control. Possessing the address value proves nothing — anyone can copy an
// address out of a transaction. Control is proven by supplying the seed
// sequence that reproduces the derivation, which only the controlling
// program can do. AuthorizeSigned performs exactly that replay and refuses
// to mint a SignedAuthority from an address alone.
package cpi

import (
	"errors"
	"fmt"

	"github.com/fortiblox/X1-Sentry/internal/types"
	"github.com/fortiblox/X1-Sentry/pkg/pda"
)

// Signer seed limits, matching the invoke_signed syscall.
const (
	MaxSignerSeeds   = 16
	MaxSignerSeedLen = 32
)

var (
	// ErrUnprovenAuthority is returned when the supplied seeds do not
	// derive the claimed authority address.
	ErrUnprovenAuthority = errors.New("delegated authority not proven by seeds")

	// ErrTooManySignerSeeds is returned when the seed count exceeds the limit.
	ErrTooManySignerSeeds = errors.New("too many signer seeds")

	// ErrSignerSeedTooLong is returned when a single seed exceeds the limit.
	ErrSignerSeedTooLong = errors.New("signer seed too long")
)

// AccountMeta describes an account referenced by an instruction.
type AccountMeta struct {
	Pubkey     types.Pubkey
	IsSigner   bool
	IsWritable bool
}

// Instruction is a program invocation: target program, account list and
// opaque instruction data.
type Instruction struct {
	ProgramID types.Pubkey
	Accounts  []AccountMeta
	Data      []byte
}

// SignedAuthority is a proven delegated authority: the derived address plus
// the full seed material (seeds and bump) the runtime needs to co-sign an
// invocation as that address. Values of this type are only produced by
// AuthorizeSigned; constructing one any other way bypasses the proof.
type SignedAuthority struct {
	Address types.Pubkey
	seeds   [][]byte
	bump    uint8
}

// SignerSeeds returns the seed sequence, bump included, in the form the
// runtime consumes when signing for the derived address.
func (a *SignedAuthority) SignerSeeds() [][]byte {
	out := make([][]byte, len(a.seeds)+1)
	for i, s := range a.seeds {
		c := make([]byte, len(s))
		copy(c, s)
		out[i] = c
	}
	out[len(a.seeds)] = []byte{a.bump}
	return out
}

// AuthorizeSigned proves control of a claimed delegated authority.
//
// The caller supplies the seeds and bump; the derivation is replayed under
// programID and must reproduce the claimed address exactly. Any failure —
// too many seeds, an on-curve derivation, a different resulting address —
// yields ErrUnprovenAuthority and no SignedAuthority.
func AuthorizeSigned(claimed types.Pubkey, seeds [][]byte, bump uint8, programID types.Pubkey) (*SignedAuthority, error) {
	if len(seeds) > MaxSignerSeeds-1 { // the bump occupies one slot
		return nil, ErrTooManySignerSeeds
	}
	for _, seed := range seeds {
		if len(seed) > MaxSignerSeedLen {
			return nil, ErrSignerSeedTooLong
		}
	}

	if !pda.Verify(claimed, seeds, programID, bump) {
		return nil, fmt.Errorf("authority %s: %w", claimed, ErrUnprovenAuthority)
	}

	held := make([][]byte, len(seeds))
	for i, s := range seeds {
		c := make([]byte, len(s))
		copy(c, s)
		held[i] = c
	}
	return &SignedAuthority{Address: claimed, seeds: held, bump: bump}, nil
}

// NewSignedInstruction builds an instruction in which the proven authority
// is marked as a signer. The runtime accepts the signer flag only because
// the SignedAuthority carries the reproducing seeds.
func NewSignedInstruction(auth *SignedAuthority, programID types.Pubkey, accounts []AccountMeta, data []byte) Instruction {
	metas := make([]AccountMeta, 0, len(accounts)+1)
	metas = append(metas, AccountMeta{Pubkey: auth.Address, IsSigner: true})
	metas = append(metas, accounts...)
	return Instruction{ProgramID: programID, Accounts: metas, Data: data}
}
