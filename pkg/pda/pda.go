// Package pda implements program-derived address (PDA) derivation.
//
// A PDA binds an account to a protocol-defined relationship ("the vault
// belonging to this user") instead of trusting whatever account a caller
// supplies. Derivation is a pure function of the seed sequence and the
// controlling program's address:
//
//	addr = SHA256(seed_0 || ... || seed_n || program_id || "ProgramDerivedAddress")
//
// An address is only accepted if it is NOT a valid point on the ed25519
// curve. Off-curve addresses have no corresponding private key, so no one
// can independently generate a keypair that collides with a PDA; control is
// proven by reproducing the seeds, never by holding a key.
package pda

import (
	"crypto/sha256"
	"errors"
	"math/big"

	"github.com/fortiblox/X1-Sentry/internal/types"
)

// Derivation limits, matching the Solana runtime.
const (
	MaxSeeds   = 16
	MaxSeedLen = 32
)

// pdaMarker is appended to the hash input to domain-separate PDA hashes
// from everything else derived with SHA256.
var pdaMarker = []byte("ProgramDerivedAddress")

var (
	// ErrMaxSeedsExceeded is returned when more than MaxSeeds seeds are given.
	ErrMaxSeedsExceeded = errors.New("max seeds exceeded")

	// ErrMaxSeedLengthExceeded is returned when a seed is longer than MaxSeedLen.
	ErrMaxSeedLengthExceeded = errors.New("max seed length exceeded")

	// ErrOnCurve is returned when the derived address is a valid curve point
	// and therefore unusable as a PDA.
	ErrOnCurve = errors.New("derived address is on the ed25519 curve")

	// ErrNoViableBump is returned when no bump in [0, 255] yields an
	// off-curve address. Probability is negligible for honest inputs.
	ErrNoViableBump = errors.New("unable to find a viable bump seed")
)

// CreateProgramAddress derives a program address from seeds and a program ID.
// The result is rejected with ErrOnCurve if it happens to be a valid
// ed25519 point; callers that need a guaranteed-valid address should use
// FindProgramAddress instead.
func CreateProgramAddress(seeds [][]byte, programID types.Pubkey) (types.Pubkey, error) {
	if len(seeds) > MaxSeeds {
		return types.Pubkey{}, ErrMaxSeedsExceeded
	}
	for _, seed := range seeds {
		if len(seed) > MaxSeedLen {
			return types.Pubkey{}, ErrMaxSeedLengthExceeded
		}
	}

	h := sha256.New()
	for _, seed := range seeds {
		h.Write(seed)
	}
	h.Write(programID[:])
	h.Write(pdaMarker)

	var addr types.Pubkey
	copy(addr[:], h.Sum(nil))

	if isOnCurve(addr[:]) {
		return types.Pubkey{}, ErrOnCurve
	}
	return addr, nil
}

// FindProgramAddress finds a valid PDA by appending a bump seed to the seed
// sequence, searching from 255 down to 0. The first off-curve result is
// canonical. The search is deterministic: identical inputs always yield the
// identical (address, bump) pair.
func FindProgramAddress(seeds [][]byte, programID types.Pubkey) (types.Pubkey, uint8, error) {
	if len(seeds) > MaxSeeds-1 { // need room for the bump seed
		return types.Pubkey{}, 0, ErrMaxSeedsExceeded
	}

	seedsWithBump := make([][]byte, len(seeds)+1)
	copy(seedsWithBump, seeds)

	for bump := uint8(255); ; bump-- {
		seedsWithBump[len(seeds)] = []byte{bump}

		addr, err := CreateProgramAddress(seedsWithBump, programID)
		if err == nil {
			return addr, bump, nil
		}
		if !errors.Is(err, ErrOnCurve) {
			return types.Pubkey{}, 0, err
		}
		if bump == 0 {
			break
		}
	}
	return types.Pubkey{}, 0, ErrNoViableBump
}

// Verify reports whether addr is the program address derived from seeds,
// programID and bump. Used by the account validator to confirm that a
// caller-supplied account sits at the protocol-required address.
func Verify(addr types.Pubkey, seeds [][]byte, programID types.Pubkey, bump uint8) bool {
	seedsWithBump := make([][]byte, len(seeds)+1)
	copy(seedsWithBump, seeds)
	seedsWithBump[len(seeds)] = []byte{bump}

	derived, err := CreateProgramAddress(seedsWithBump, programID)
	if err != nil {
		return false
	}
	return derived.Equals(addr)
}

// Ed25519 field parameters for the on-curve test.
// Curve: -x^2 + y^2 = 1 + d*x^2*y^2 over GF(2^255 - 19).
var (
	curveP = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 255), big.NewInt(19))
	curveD = func() *big.Int {
		d := new(big.Int).Mul(big.NewInt(-121665), new(big.Int).ModInverse(big.NewInt(121666), curveP))
		return d.Mod(d, curveP)
	}()
	curveLegendreExp = new(big.Int).Rsh(new(big.Int).Sub(curveP, big.NewInt(1)), 1)
)

// isOnCurve reports whether the 32 bytes decode to a valid compressed
// ed25519 point. A compressed point stores the y-coordinate little-endian
// with the sign of x in the top bit; the point is valid iff
// x^2 = (y^2 - 1) / (d*y^2 + 1) has a square root in the field.
func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}

	// y-coordinate, little-endian, sign bit cleared.
	yBytes := make([]byte, 32)
	copy(yBytes, point)
	yBytes[31] &= 0x7F

	y := new(big.Int)
	for i := 31; i >= 0; i-- {
		y.Lsh(y, 8)
		y.Or(y, big.NewInt(int64(yBytes[i])))
	}
	if y.Cmp(curveP) >= 0 {
		return false
	}

	y2 := new(big.Int).Mul(y, y)
	y2.Mod(y2, curveP)

	num := new(big.Int).Sub(y2, big.NewInt(1))
	num.Mod(num, curveP)

	den := new(big.Int).Mul(curveD, y2)
	den.Add(den, big.NewInt(1))
	den.Mod(den, curveP)

	denInv := new(big.Int).ModInverse(den, curveP)
	if denInv == nil {
		return false
	}
	x2 := new(big.Int).Mul(num, denInv)
	x2.Mod(x2, curveP)

	// Euler's criterion: x^2 is a quadratic residue iff x2^((p-1)/2) = 1.
	legendre := new(big.Int).Exp(x2, curveLegendreExp, curveP)
	return legendre.Cmp(big.NewInt(1)) == 0 || x2.Sign() == 0
}
