// Package runtime executes transactions against the ledger.
//
// The engine is the glue the validation core is written for: it loads each
// referenced account from the ledger, freezes it into an immutable snapshot
// with the signer flag resolved from the transaction's signer list, hands
// the snapshots to the program processor, and commits staged writes back to
// the ledger only when the whole instruction succeeds. Every processed
// transaction — applied or rejected — is journaled once, and a journaled
// transaction ID can never run again.
//
// One Process call touches no shared mutable state besides the stores,
// which synchronize internally. Callers running transactions concurrently
// must serialize transactions that write the same accounts, as a scheduler
// would.
package runtime

import (
	"errors"
	"fmt"

	"github.com/fortiblox/X1-Sentry/internal/types"
	"github.com/fortiblox/X1-Sentry/pkg/account"
	"github.com/fortiblox/X1-Sentry/pkg/journal"
	"github.com/fortiblox/X1-Sentry/pkg/ledger"
	"github.com/fortiblox/X1-Sentry/pkg/vault"
)

var (
	// ErrDuplicateTransaction is returned when a transaction ID has
	// already been processed.
	ErrDuplicateTransaction = errors.New("transaction already processed")

	// ErrAccountExists is returned when allocating an address that
	// already has a record.
	ErrAccountExists = errors.New("account already allocated")

	// ErrDuplicateAccount is returned when a transaction references the
	// same account address at more than one index.
	ErrDuplicateAccount = errors.New("duplicate account in transaction")
)

// Transaction is one instruction to execute: the accounts it references,
// the parties that signed it, and the instruction data.
type Transaction struct {
	// ID uniquely identifies the transaction.
	ID types.Hash

	// Signers lists the pubkeys whose signatures the surrounding runtime
	// verified. Signature verification itself happens upstream; the
	// engine treats this list as ground truth.
	Signers []types.Pubkey

	// Accounts are the referenced account addresses, in instruction order.
	Accounts []types.Pubkey

	// Data is the program instruction data.
	Data []byte
}

func (tx *Transaction) signedBy(pk types.Pubkey) bool {
	for _, s := range tx.Signers {
		if s.Equals(pk) {
			return true
		}
	}
	return false
}

// Engine processes transactions with the vault program.
type Engine struct {
	db      ledger.DB
	journal *journal.Journal
	proc    *vault.Processor
}

// NewEngine creates an engine over the given stores.
func NewEngine(db ledger.DB, j *journal.Journal) *Engine {
	return &Engine{db: db, journal: j, proc: vault.NewProcessor()}
}

// Allocate creates a zeroed record of the given size assigned to owner,
// modeling the system program's create-account path. Fails if the address
// already has a record.
func (e *Engine) Allocate(pubkey, owner types.Pubkey, size int) error {
	exists, err := e.db.HasRecord(pubkey)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrAccountExists, pubkey)
	}
	return e.db.SetRecord(pubkey, &ledger.Record{
		Owner: owner,
		Data:  make([]byte, size),
	})
}

// Process executes one transaction.
//
// The returned receipt is always journaled, including for rejected
// transactions; the error mirrors the receipt's Err field. A duplicate
// transaction ID, or a transaction naming the same account at two
// indexes, is refused before execution and journals nothing. Staged
// writes commit in account index order; if the store fails mid-commit,
// writes committed before the failure stay applied and the journaled
// receipt records the failure.
func (e *Engine) Process(tx *Transaction) (*journal.Receipt, error) {
	seen, err := e.journal.Has(tx.ID)
	if err != nil {
		return nil, err
	}
	if seen {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateTransaction, tx.ID)
	}

	// Snapshots and staged writes are keyed by instruction index. One
	// address appearing at two indexes would stage two conflicting writes
	// to the same ledger key, so such transactions are malformed.
	for i, pk := range tx.Accounts {
		for _, prev := range tx.Accounts[:i] {
			if pk.Equals(prev) {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateAccount, pk)
			}
		}
	}

	// Freeze every referenced account into a snapshot. Accounts with no
	// ledger record are treated as empty system-owned accounts, the state
	// a wallet has before it ever holds data.
	records := make([]*ledger.Record, len(tx.Accounts))
	refs := make([]*account.Ref, len(tx.Accounts))
	for i, pk := range tx.Accounts {
		rec, err := e.db.GetRecord(pk)
		if err != nil {
			if !errors.Is(err, ledger.ErrNotFound) {
				return nil, err
			}
			rec = &ledger.Record{Owner: types.SystemProgramAddr}
		}
		records[i] = rec
		refs[i] = account.NewRef(pk, rec.Owner, rec.Data, tx.signedBy(pk))
	}

	ctx := &invokeContext{refs: refs, staged: make(map[int][]byte)}
	execErr := e.proc.Process(ctx, tx.Data)

	if execErr == nil {
		for i := range records {
			data, ok := ctx.staged[i]
			if !ok {
				continue
			}
			rec := records[i]
			rec.Data = data
			if err := e.db.SetRecord(tx.Accounts[i], rec); err != nil {
				// Writes committed before this one are already durable;
				// the receipt below records the failure.
				execErr = fmt.Errorf("commit account %s: %w", tx.Accounts[i], err)
				break
			}
		}
	}

	receipt := journal.NewReceipt(tx.ID, execErr, ctx.logs)
	if err := e.journal.Append(receipt); err != nil {
		return nil, fmt.Errorf("journal receipt: %w", err)
	}
	return receipt, execErr
}

// invokeContext adapts frozen snapshots and staged writes to the program's
// InvokeContext.
type invokeContext struct {
	refs   []*account.Ref
	staged map[int][]byte
	logs   []string
}

func (c *invokeContext) Account(index int) (*account.Ref, error) {
	if index < 0 || index >= len(c.refs) {
		return nil, vault.ErrNotEnoughAccountKeys
	}
	return c.refs[index], nil
}

func (c *invokeContext) SetAccountData(index int, data []byte) error {
	if index < 0 || index >= len(c.refs) {
		return vault.ErrNotEnoughAccountKeys
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	c.staged[index] = buf
	return nil
}

func (c *invokeContext) ProgramID() types.Pubkey {
	return vault.ProgramID
}

func (c *invokeContext) Log(msg string) {
	c.logs = append(c.logs, msg)
}
