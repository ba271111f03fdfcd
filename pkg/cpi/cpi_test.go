package cpi

import (
	"bytes"
	"errors"
	"testing"

	"github.com/fortiblox/X1-Sentry/internal/types"
	"github.com/fortiblox/X1-Sentry/pkg/pda"
)

var programID = types.VaultProgramAddr

func TestAuthorizeSigned(t *testing.T) {
	vaultAddr := types.Pubkey(types.ComputeHash([]byte("some-vault")))
	seeds := [][]byte{[]byte("authority"), vaultAddr.Bytes()}

	addr, bump, err := pda.FindProgramAddress(seeds, programID)
	if err != nil {
		t.Fatalf("FindProgramAddress failed: %v", err)
	}

	auth, err := AuthorizeSigned(addr, seeds, bump, programID)
	if err != nil {
		t.Fatalf("AuthorizeSigned rejected a valid proof: %v", err)
	}
	if !auth.Address.Equals(addr) {
		t.Errorf("Address = %s, want %s", auth.Address, addr)
	}

	signerSeeds := auth.SignerSeeds()
	if len(signerSeeds) != len(seeds)+1 {
		t.Fatalf("SignerSeeds length = %d, want %d", len(signerSeeds), len(seeds)+1)
	}
	if !bytes.Equal(signerSeeds[len(signerSeeds)-1], []byte{bump}) {
		t.Errorf("last signer seed = %v, want bump %d", signerSeeds[len(signerSeeds)-1], bump)
	}
}

func TestAuthorizeSignedAddressAloneInsufficient(t *testing.T) {
	vaultAddr := types.Pubkey(types.ComputeHash([]byte("some-vault")))
	seeds := [][]byte{[]byte("authority"), vaultAddr.Bytes()}

	addr, bump, err := pda.FindProgramAddress(seeds, programID)
	if err != nil {
		t.Fatalf("FindProgramAddress failed: %v", err)
	}

	// Correct address, wrong seeds: knowing the address proves nothing.
	wrong := [][]byte{[]byte("authority"), []byte("guessed")}
	if _, err := AuthorizeSigned(addr, wrong, bump, programID); !errors.Is(err, ErrUnprovenAuthority) {
		t.Fatalf("error = %v, want ErrUnprovenAuthority", err)
	}

	// Correct seeds, arbitrary claimed address.
	claimed := types.Pubkey(types.ComputeHash([]byte("attacker-chosen")))
	if _, err := AuthorizeSigned(claimed, seeds, bump, programID); !errors.Is(err, ErrUnprovenAuthority) {
		t.Fatalf("error = %v, want ErrUnprovenAuthority", err)
	}

	// Correct seeds, wrong program: another program's derivation is not ours.
	if _, err := AuthorizeSigned(addr, seeds, bump, types.SystemProgramAddr); !errors.Is(err, ErrUnprovenAuthority) {
		t.Fatalf("error = %v, want ErrUnprovenAuthority", err)
	}
}

func TestAuthorizeSignedSeedLimits(t *testing.T) {
	addr := types.Pubkey(types.ComputeHash([]byte("addr")))

	tooMany := make([][]byte, MaxSignerSeeds)
	for i := range tooMany {
		tooMany[i] = []byte{byte(i)}
	}
	if _, err := AuthorizeSigned(addr, tooMany, 255, programID); !errors.Is(err, ErrTooManySignerSeeds) {
		t.Errorf("error = %v, want ErrTooManySignerSeeds", err)
	}

	tooLong := [][]byte{bytes.Repeat([]byte{0x01}, MaxSignerSeedLen+1)}
	if _, err := AuthorizeSigned(addr, tooLong, 255, programID); !errors.Is(err, ErrSignerSeedTooLong) {
		t.Errorf("error = %v, want ErrSignerSeedTooLong", err)
	}
}

func TestSignedAuthorityDetachedFromCaller(t *testing.T) {
	vaultAddr := types.Pubkey(types.ComputeHash([]byte("some-vault")))
	seeds := [][]byte{[]byte("authority"), vaultAddr.Bytes()}

	addr, bump, err := pda.FindProgramAddress(seeds, programID)
	if err != nil {
		t.Fatalf("FindProgramAddress failed: %v", err)
	}
	auth, err := AuthorizeSigned(addr, seeds, bump, programID)
	if err != nil {
		t.Fatalf("AuthorizeSigned failed: %v", err)
	}

	// Mutating the caller's seed slice after the proof must not alter the
	// authority's held material.
	seeds[0][0] = 'X'
	got := auth.SignerSeeds()
	if !bytes.Equal(got[0], []byte("authority")) {
		t.Error("SignedAuthority aliases caller-owned seed bytes")
	}
}

func TestNewSignedInstruction(t *testing.T) {
	vaultAddr := types.Pubkey(types.ComputeHash([]byte("some-vault")))
	seeds := [][]byte{[]byte("authority"), vaultAddr.Bytes()}
	addr, bump, err := pda.FindProgramAddress(seeds, programID)
	if err != nil {
		t.Fatalf("FindProgramAddress failed: %v", err)
	}
	auth, err := AuthorizeSigned(addr, seeds, bump, programID)
	if err != nil {
		t.Fatalf("AuthorizeSigned failed: %v", err)
	}

	ix := NewSignedInstruction(auth, programID, []AccountMeta{{Pubkey: vaultAddr, IsWritable: true}}, []byte{0x01})
	if len(ix.Accounts) != 2 {
		t.Fatalf("accounts = %d, want 2", len(ix.Accounts))
	}
	if !ix.Accounts[0].IsSigner || !ix.Accounts[0].Pubkey.Equals(addr) {
		t.Error("proven authority not marked as signer in instruction")
	}
}
