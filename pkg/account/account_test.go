package account

import (
	"errors"
	"testing"

	"github.com/fortiblox/X1-Sentry/internal/types"
	"github.com/fortiblox/X1-Sentry/pkg/pda"
)

var (
	programID = types.VaultProgramAddr
	authority = types.Pubkey(types.ComputeHash([]byte("authority")))
	attacker  = types.Pubkey(types.ComputeHash([]byte("attacker")))
)

// makeVaultRef builds a vault account at its canonical PDA.
func makeVaultRef(t *testing.T, balance uint64, signer bool) (*Ref, *SeedSpec) {
	t.Helper()
	seeds := &SeedSpec{
		Seeds:     [][]byte{[]byte("vault"), authority.Bytes()},
		ProgramID: programID,
	}
	addr, bump, err := pda.FindProgramAddress(seeds.Seeds, seeds.ProgramID)
	if err != nil {
		t.Fatalf("FindProgramAddress failed: %v", err)
	}
	v := &Vault{Authority: authority, Balance: balance, Bump: bump}
	return NewRef(addr, programID, v.Encode(), signer), seeds
}

func TestValidateMissingSignature(t *testing.T) {
	ref, seeds := makeVaultRef(t, 1000, false)

	// Every other field matches; the absent signature must still fail,
	// and must fail first.
	err := Validate(ref, Policy{
		RequireSigner: true,
		Owner:         programID,
		Tag:           &TagVault,
		Seeds:         seeds,
	})
	if !errors.Is(err, ErrMissingSignature) {
		t.Fatalf("error = %v, want ErrMissingSignature", err)
	}
}

func TestValidateOwnerMismatch(t *testing.T) {
	ref, _ := makeVaultRef(t, 1000, true)
	ref.Owner = attacker // hostile controller, well-formed content

	err := Validate(ref, Policy{Owner: programID, Tag: &TagVault})
	if !errors.Is(err, ErrOwnerMismatch) {
		t.Fatalf("error = %v, want ErrOwnerMismatch", err)
	}
}

func TestValidateChecksRunInOrder(t *testing.T) {
	ref, seeds := makeVaultRef(t, 0, false)
	ref.Owner = attacker

	// Both signer and owner are wrong; the signer check runs first so the
	// failure must name the missing signature.
	err := Validate(ref, Policy{
		RequireSigner: true,
		Owner:         programID,
		Tag:           &TagVault,
		Seeds:         seeds,
	})
	if !errors.Is(err, ErrMissingSignature) {
		t.Fatalf("error = %v, want ErrMissingSignature (first violated invariant)", err)
	}

	// With the signature present the owner failure surfaces next.
	ref.IsSigner = true
	err = Validate(ref, Policy{
		RequireSigner: true,
		Owner:         programID,
		Tag:           &TagVault,
		Seeds:         seeds,
	})
	if !errors.Is(err, ErrOwnerMismatch) {
		t.Fatalf("error = %v, want ErrOwnerMismatch", err)
	}
}

func TestTypeCosplayRejected(t *testing.T) {
	// UserRecord and AdminRecord have byte-identical layouts. An admin
	// record presented where a user record is expected must be rejected on
	// its tag, never accepted because the layout fits.
	admin := &AdminRecord{Authority: authority, Privileges: ^uint64(0)}
	ref := NewRef(attacker, programID, admin.Encode(), false)

	err := Validate(ref, Policy{Owner: programID, Tag: &TagUserRecord})
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("error = %v, want ErrSchemaMismatch", err)
	}

	if _, err := DecodeUserRecord(ref, Policy{Owner: programID}); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("DecodeUserRecord error = %v, want ErrSchemaMismatch", err)
	}

	// The genuine type decodes fine.
	got, err := DecodeAdminRecord(ref, Policy{Owner: programID})
	if err != nil {
		t.Fatalf("DecodeAdminRecord failed: %v", err)
	}
	if got.Privileges != ^uint64(0) {
		t.Errorf("Privileges = %d, want max", got.Privileges)
	}
}

func TestTagsAreDistinct(t *testing.T) {
	tags := map[Tag]string{}
	for name, tag := range map[string]Tag{
		"Vault":       TagVault,
		"UserRecord":  TagUserRecord,
		"AdminRecord": TagAdminRecord,
	} {
		if prev, dup := tags[tag]; dup {
			t.Fatalf("tag collision between %s and %s", prev, name)
		}
		tags[tag] = name
	}
}

func TestValidateSeedsMismatch(t *testing.T) {
	ref, _ := makeVaultRef(t, 500, true)

	// The account is syntactically valid but sits at the wrong address for
	// these seeds.
	wrongSeeds := &SeedSpec{
		Seeds:     [][]byte{[]byte("vault"), attacker.Bytes()},
		ProgramID: programID,
	}
	err := Validate(ref, Policy{Owner: programID, Tag: &TagVault, Seeds: wrongSeeds})
	if !errors.Is(err, ErrSeedsMismatch) {
		t.Fatalf("error = %v, want ErrSeedsMismatch", err)
	}
}

func TestDecodeVaultStoredBumpChecked(t *testing.T) {
	ref, seeds := makeVaultRef(t, 100, true)

	// Corrupt the stored bump; the decoded record no longer matches the
	// canonical derivation.
	data := make([]byte, len(ref.Data))
	copy(data, ref.Data)
	data[VaultLen-1] ^= 0x01
	bad := NewRef(ref.Address, ref.Owner, data, true)

	_, err := DecodeVault(bad, Policy{Owner: programID, Tag: &TagVault, Seeds: seeds})
	if !errors.Is(err, ErrSeedsMismatch) {
		t.Fatalf("error = %v, want ErrSeedsMismatch", err)
	}
}

func TestDecodeVaultLengthExact(t *testing.T) {
	ref, _ := makeVaultRef(t, 100, true)

	truncated := NewRef(ref.Address, ref.Owner, ref.Data[:VaultLen-1], true)
	if _, err := DecodeVault(truncated, Policy{Owner: programID}); !errors.Is(err, ErrDataLength) {
		t.Fatalf("truncated: error = %v, want ErrDataLength", err)
	}

	padded := NewRef(ref.Address, ref.Owner, append(append([]byte{}, ref.Data...), 0x00), true)
	if _, err := DecodeVault(padded, Policy{Owner: programID}); !errors.Is(err, ErrDataLength) {
		t.Fatalf("padded: error = %v, want ErrDataLength", err)
	}
}

func TestDecodeVaultHappyPath(t *testing.T) {
	ref, seeds := makeVaultRef(t, 1234, true)

	v, err := DecodeVault(ref, Policy{
		RequireSigner: true,
		Owner:         programID,
		Tag:           &TagVault,
		Seeds:         seeds,
	})
	if err != nil {
		t.Fatalf("DecodeVault failed: %v", err)
	}
	if v.Balance != 1234 {
		t.Errorf("Balance = %d, want 1234", v.Balance)
	}
	if !v.Authority.Equals(authority) {
		t.Errorf("Authority = %s, want %s", v.Authority, authority)
	}

	// Re-validation is idempotent.
	again, err := DecodeVault(ref, Policy{
		RequireSigner: true,
		Owner:         programID,
		Tag:           &TagVault,
		Seeds:         seeds,
	})
	if err != nil {
		t.Fatalf("second DecodeVault failed: %v", err)
	}
	if *again != *v {
		t.Error("repeated validation produced a different view")
	}
}

func TestDecodedViewIsDetached(t *testing.T) {
	ref, _ := makeVaultRef(t, 77, true)
	v, err := DecodeVault(ref, Policy{Owner: programID})
	if err != nil {
		t.Fatalf("DecodeVault failed: %v", err)
	}

	// Mutating the raw snapshot after decoding must not reach the view.
	for i := range ref.Data {
		ref.Data[i] = 0xFF
	}
	if v.Balance != 77 || !v.Authority.Equals(authority) {
		t.Error("view aliases the raw snapshot")
	}
}

func TestInitialized(t *testing.T) {
	if Initialized(make([]byte, VaultLen)) {
		t.Error("all-zero record reported initialized")
	}
	v := &Vault{Authority: authority}
	if !Initialized(v.Encode()) {
		t.Error("encoded record reported uninitialized")
	}
	if Initialized(nil) {
		t.Error("empty record reported initialized")
	}
}

func TestNewRefCopiesData(t *testing.T) {
	raw := []byte{1, 2, 3}
	ref := NewRef(authority, programID, raw, false)
	raw[0] = 9
	if ref.Data[0] != 1 {
		t.Error("NewRef did not copy data")
	}
}
