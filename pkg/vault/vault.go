// Package vault implements the vault program.
//
// The vault program keeps one token vault per authority at the
// program-derived address ["vault", authority]. It is the consumer of the
// validation core: every instruction validates its accounts before reading
// a byte of them, routes every balance change through checked arithmetic,
// and proves delegated authority by seed replay before acting with it.
package vault

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/fortiblox/X1-Sentry/internal/types"
	"github.com/fortiblox/X1-Sentry/pkg/account"
	"github.com/fortiblox/X1-Sentry/pkg/cpi"
	"github.com/fortiblox/X1-Sentry/pkg/pda"
	"github.com/fortiblox/X1-Sentry/pkg/safemath"
)

// ProgramID is the vault program's address.
var ProgramID = types.VaultProgramAddr

// Seed prefixes for the program's derived addresses.
var (
	// SeedVault prefixes the per-authority vault PDA: ["vault", authority].
	SeedVault = []byte("vault")

	// SeedAuthority prefixes the per-vault delegated authority PDA:
	// ["authority", vaultAddress].
	SeedAuthority = []byte("authority")
)

// Instruction discriminants.
const (
	InstructionInitialize = iota
	InstructionDeposit
	InstructionWithdraw
	InstructionTransferAuthority
	InstructionDelegatedTransfer
)

var (
	// ErrInvalidInstructionData is returned for malformed instruction data.
	ErrInvalidInstructionData = errors.New("invalid instruction data")

	// ErrNotEnoughAccountKeys is returned when an instruction references an
	// account index the transaction did not supply.
	ErrNotEnoughAccountKeys = errors.New("not enough account keys")

	// ErrInvalidAuthority is returned when the presented authority is not
	// the vault's recorded authority.
	ErrInvalidAuthority = errors.New("invalid vault authority")

	// ErrInsufficientFunds is returned when a withdrawal exceeds the
	// vault balance.
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// InvokeContext provides account access and logging during execution.
// Accounts are immutable snapshots; SetAccountData stages a write that the
// runtime commits only if the whole instruction succeeds.
type InvokeContext interface {
	// Account returns the snapshot at the given instruction index.
	Account(index int) (*account.Ref, error)

	// SetAccountData stages new record data for the account at index.
	SetAccountData(index int, data []byte) error

	// ProgramID returns the executing program's address.
	ProgramID() types.Pubkey

	// Log records a log message.
	Log(msg string)
}

// Processor executes vault program instructions.
type Processor struct{}

// NewProcessor creates a new vault program processor.
func NewProcessor() *Processor {
	return &Processor{}
}

// Process executes one vault program instruction.
func (p *Processor) Process(ctx InvokeContext, data []byte) error {
	if len(data) < 4 {
		return ErrInvalidInstructionData
	}

	instruction := binary.LittleEndian.Uint32(data[:4])

	switch instruction {
	case InstructionInitialize:
		return p.processInitialize(ctx, data[4:])
	case InstructionDeposit:
		return p.processDeposit(ctx, data[4:])
	case InstructionWithdraw:
		return p.processWithdraw(ctx, data[4:])
	case InstructionTransferAuthority:
		return p.processTransferAuthority(ctx, data[4:])
	case InstructionDelegatedTransfer:
		return p.processDelegatedTransfer(ctx, data[4:])
	default:
		return ErrInvalidInstructionData
	}
}

// processInitialize creates the caller's vault.
//
// Accounts:
//
//	[0] vault — writable, at PDA ["vault", authority] with the canonical bump
//	[1] authority — signer, funds and controls the vault
//
// Data: bump (1).
//
// Initializing an account that already carries a discriminator fails with
// ErrAlreadyInitialized: re-running initialize must never silently reset an
// existing vault's authority or balance.
func (p *Processor) processInitialize(ctx InvokeContext, data []byte) error {
	if len(data) < 1 {
		return ErrInvalidInstructionData
	}
	bump := data[0]

	vaultRef, err := ctx.Account(0)
	if err != nil {
		return err
	}
	authRef, err := ctx.Account(1)
	if err != nil {
		return err
	}

	// The authority is a wallet: system-owned and it must have signed.
	if err := account.Validate(authRef, account.Policy{
		RequireSigner: true,
		Owner:         types.SystemProgramAddr,
	}); err != nil {
		return err
	}

	// The vault account must already be allocated to this program and
	// still be untouched.
	if err := account.Validate(vaultRef, account.Policy{Owner: ctx.ProgramID()}); err != nil {
		return err
	}
	if account.Initialized(vaultRef.Data) {
		return fmt.Errorf("account %s: %w", vaultRef.Address, account.ErrAlreadyInitialized)
	}

	// The caller supplies the bump, but only the canonical one is
	// accepted: a vault created under a stray off-curve bump would take
	// deposits yet never match the withdraw-side derivation, stranding
	// the funds.
	derived, canonical, err := pda.FindProgramAddress(
		[][]byte{SeedVault, authRef.Address.Bytes()}, ctx.ProgramID())
	if err != nil || bump != canonical || !derived.Equals(vaultRef.Address) {
		return fmt.Errorf("account %s: %w", vaultRef.Address, account.ErrSeedsMismatch)
	}

	v := &account.Vault{Authority: authRef.Address, Balance: 0, Bump: bump}
	if err := ctx.SetAccountData(0, v.Encode()); err != nil {
		return err
	}

	ctx.Log(fmt.Sprintf("initialized vault %s for authority %s", vaultRef.Address, authRef.Address))
	return nil
}

// processDeposit credits a vault. Open to any caller; depositing into
// someone's vault requires no authorization.
//
// Accounts:
//
//	[0] vault — writable
//
// Data: amount (8).
func (p *Processor) processDeposit(ctx InvokeContext, data []byte) error {
	if len(data) < 8 {
		return ErrInvalidInstructionData
	}
	amount := binary.LittleEndian.Uint64(data[:8])

	vaultRef, err := ctx.Account(0)
	if err != nil {
		return err
	}

	v, err := account.DecodeVault(vaultRef, account.Policy{
		Owner: ctx.ProgramID(),
		Tag:   &account.TagVault,
	})
	if err != nil {
		return err
	}

	v.Balance, err = safemath.Add(v.Balance, amount)
	if err != nil {
		return fmt.Errorf("deposit %d: %w", amount, err)
	}
	if err := ctx.SetAccountData(0, v.Encode()); err != nil {
		return err
	}

	ctx.Log(fmt.Sprintf("deposited %d into vault %s", amount, vaultRef.Address))
	return nil
}

// processWithdraw debits a vault. Only the recorded authority may withdraw,
// and it must have signed this transaction — an address match alone never
// suffices.
//
// Accounts:
//
//	[0] vault — writable, at PDA ["vault", authority]
//	[1] authority — signer
//
// Data: amount (8).
func (p *Processor) processWithdraw(ctx InvokeContext, data []byte) error {
	if len(data) < 8 {
		return ErrInvalidInstructionData
	}
	amount := binary.LittleEndian.Uint64(data[:8])

	vaultRef, err := ctx.Account(0)
	if err != nil {
		return err
	}
	authRef, err := ctx.Account(1)
	if err != nil {
		return err
	}

	if err := account.Validate(authRef, account.Policy{
		RequireSigner: true,
		Owner:         types.SystemProgramAddr,
	}); err != nil {
		return err
	}

	v, err := account.DecodeVault(vaultRef, account.Policy{
		Owner: ctx.ProgramID(),
		Tag:   &account.TagVault,
		Seeds: &account.SeedSpec{
			Seeds:     [][]byte{SeedVault, authRef.Address.Bytes()},
			ProgramID: ctx.ProgramID(),
		},
	})
	if err != nil {
		return err
	}

	if !v.Authority.Equals(authRef.Address) {
		return fmt.Errorf("vault %s: %w", vaultRef.Address, ErrInvalidAuthority)
	}

	v.Balance, err = safemath.Sub(v.Balance, amount)
	if err != nil {
		return fmt.Errorf("withdraw %d: %w: %w", amount, ErrInsufficientFunds, err)
	}
	if err := ctx.SetAccountData(0, v.Encode()); err != nil {
		return err
	}

	ctx.Log(fmt.Sprintf("withdrew %d from vault %s", amount, vaultRef.Address))
	return nil
}

// processTransferAuthority hands a vault to a new authority. The current
// authority must sign.
//
// Accounts:
//
//	[0] vault — writable
//	[1] current authority — signer
//
// Data: new authority (32).
func (p *Processor) processTransferAuthority(ctx InvokeContext, data []byte) error {
	if len(data) < types.PubkeySize {
		return ErrInvalidInstructionData
	}
	newAuthority, err := types.PubkeyFromBytes(data[:types.PubkeySize])
	if err != nil {
		return ErrInvalidInstructionData
	}

	vaultRef, err := ctx.Account(0)
	if err != nil {
		return err
	}
	authRef, err := ctx.Account(1)
	if err != nil {
		return err
	}

	if err := account.Validate(authRef, account.Policy{
		RequireSigner: true,
		Owner:         types.SystemProgramAddr,
	}); err != nil {
		return err
	}

	v, err := account.DecodeVault(vaultRef, account.Policy{
		Owner: ctx.ProgramID(),
		Tag:   &account.TagVault,
	})
	if err != nil {
		return err
	}
	if !v.Authority.Equals(authRef.Address) {
		return fmt.Errorf("vault %s: %w", vaultRef.Address, ErrInvalidAuthority)
	}

	v.Authority = newAuthority
	if err := ctx.SetAccountData(0, v.Encode()); err != nil {
		return err
	}

	ctx.Log(fmt.Sprintf("vault %s authority transferred to %s", vaultRef.Address, newAuthority))
	return nil
}

// processDelegatedTransfer moves funds between two vaults under the
// program's own delegated authority, the PDA ["authority", fromVault].
// The caller supplies the bump as proof material; the authority is only
// trusted once AuthorizeSigned reproduces its address from the seeds.
//
// Accounts:
//
//	[0] from vault — writable
//	[1] to vault — writable
//	[2] delegated authority — PDA ["authority", fromVault]
//
// Data: amount (8) | authority bump (1).
func (p *Processor) processDelegatedTransfer(ctx InvokeContext, data []byte) error {
	if len(data) < 9 {
		return ErrInvalidInstructionData
	}
	amount := binary.LittleEndian.Uint64(data[:8])
	authBump := data[8]

	fromRef, err := ctx.Account(0)
	if err != nil {
		return err
	}
	toRef, err := ctx.Account(1)
	if err != nil {
		return err
	}
	authRef, err := ctx.Account(2)
	if err != nil {
		return err
	}

	from, err := account.DecodeVault(fromRef, account.Policy{
		Owner: ctx.ProgramID(),
		Tag:   &account.TagVault,
	})
	if err != nil {
		return err
	}
	to, err := account.DecodeVault(toRef, account.Policy{
		Owner: ctx.ProgramID(),
		Tag:   &account.TagVault,
	})
	if err != nil {
		return err
	}

	// Prove control of the delegated authority by replaying its
	// derivation. An attacker-chosen authority address fails here.
	seeds := [][]byte{SeedAuthority, fromRef.Address.Bytes()}
	auth, err := cpi.AuthorizeSigned(authRef.Address, seeds, authBump, ctx.ProgramID())
	if err != nil {
		return err
	}

	from.Balance, err = safemath.Sub(from.Balance, amount)
	if err != nil {
		return fmt.Errorf("delegated transfer %d: %w: %w", amount, ErrInsufficientFunds, err)
	}
	to.Balance, err = safemath.Add(to.Balance, amount)
	if err != nil {
		return fmt.Errorf("delegated transfer %d: %w", amount, err)
	}

	if err := ctx.SetAccountData(0, from.Encode()); err != nil {
		return err
	}
	if err := ctx.SetAccountData(1, to.Encode()); err != nil {
		return err
	}

	ctx.Log(fmt.Sprintf("transferred %d from %s to %s signed as %s",
		amount, fromRef.Address, toRef.Address, auth.Address))
	return nil
}

// EncodeInitialize builds instruction data for Initialize.
func EncodeInitialize(bump uint8) []byte {
	data := make([]byte, 5)
	binary.LittleEndian.PutUint32(data, InstructionInitialize)
	data[4] = bump
	return data
}

// EncodeDeposit builds instruction data for Deposit.
func EncodeDeposit(amount uint64) []byte {
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data, InstructionDeposit)
	binary.LittleEndian.PutUint64(data[4:], amount)
	return data
}

// EncodeWithdraw builds instruction data for Withdraw.
func EncodeWithdraw(amount uint64) []byte {
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data, InstructionWithdraw)
	binary.LittleEndian.PutUint64(data[4:], amount)
	return data
}

// EncodeTransferAuthority builds instruction data for TransferAuthority.
func EncodeTransferAuthority(newAuthority types.Pubkey) []byte {
	data := make([]byte, 4+types.PubkeySize)
	binary.LittleEndian.PutUint32(data, InstructionTransferAuthority)
	copy(data[4:], newAuthority[:])
	return data
}

// EncodeDelegatedTransfer builds instruction data for DelegatedTransfer.
func EncodeDelegatedTransfer(amount uint64, authBump uint8) []byte {
	data := make([]byte, 13)
	binary.LittleEndian.PutUint32(data, InstructionDelegatedTransfer)
	binary.LittleEndian.PutUint64(data[4:], amount)
	data[12] = authBump
	return data
}
