package account

import "fmt"

// DecodeVault validates ref against the policy and, only after every check
// passes, decodes the content into a Vault view. When the policy binds a
// derivation, the bump stored in the record must equal the canonical bump
// found by the search; a vault initialized under a non-canonical bump is
// rejected.
func DecodeVault(ref *Ref, p Policy) (*Vault, error) {
	bump, err := validate(ref, p)
	if err != nil {
		return nil, err
	}
	v, err := decodeVault(ref.Data)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", ref.Address, err)
	}
	if p.Seeds != nil && v.Bump != bump {
		return nil, fmt.Errorf("account %s: stored bump %d != canonical bump %d: %w",
			ref.Address, v.Bump, bump, ErrSeedsMismatch)
	}
	return v, nil
}

// DecodeUserRecord validates ref against the policy and decodes the content
// into a UserRecord view.
func DecodeUserRecord(ref *Ref, p Policy) (*UserRecord, error) {
	if _, err := validate(ref, p); err != nil {
		return nil, err
	}
	u, err := decodeUserRecord(ref.Data)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", ref.Address, err)
	}
	return u, nil
}

// DecodeAdminRecord validates ref against the policy and decodes the
// content into an AdminRecord view.
func DecodeAdminRecord(ref *Ref, p Policy) (*AdminRecord, error) {
	if _, err := validate(ref, p); err != nil {
		return nil, err
	}
	a, err := decodeAdminRecord(ref.Data)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", ref.Address, err)
	}
	return a, nil
}
