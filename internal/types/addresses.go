package types

import "crypto/sha256"

// Well-known program addresses.
var (
	// SystemProgramAddr is the System Program address.
	SystemProgramAddr = MustPubkeyFromBase58("11111111111111111111111111111111")

	// VaultProgramAddr is the address of the built-in vault program.
	// Derived from a fixed string rather than a keypair so that it is
	// stable across builds and provably has no corresponding private key.
	VaultProgramAddr = Pubkey(sha256.Sum256([]byte("x1-sentry/vault-program/v1")))
)

// IsNativeProgram returns true if the pubkey is a native program.
func IsNativeProgram(p Pubkey) bool {
	switch p {
	case SystemProgramAddr, VaultProgramAddr:
		return true
	default:
		return false
	}
}
