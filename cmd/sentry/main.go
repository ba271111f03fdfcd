// X1-Sentry: Account Authorization and Integrity Validation Node
//
// This is the main entry point for X1-Sentry, an operator tool over the
// validation core: it derives program addresses, inspects ledger records,
// runs the vault program end to end against a local ledger, and exports or
// imports ledger snapshots.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fortiblox/X1-Sentry/internal/types"
	"github.com/fortiblox/X1-Sentry/pkg/account"
	"github.com/fortiblox/X1-Sentry/pkg/journal"
	"github.com/fortiblox/X1-Sentry/pkg/ledger"
	"github.com/fortiblox/X1-Sentry/pkg/pda"
	"github.com/fortiblox/X1-Sentry/pkg/runtime"
	"github.com/fortiblox/X1-Sentry/pkg/snapshot"
	"github.com/fortiblox/X1-Sentry/pkg/vault"
)

// Version information
var (
	Version   = "0.1.0"
	GitCommit = "dev"
)

// Configuration flags
var (
	dataDir      = flag.String("data-dir", "/mnt/x1-sentry", "Data directory for ledger and journal")
	deriveSeeds  = flag.String("derive", "", "Derive a PDA from comma-separated seed strings")
	program      = flag.String("program", "", "Program address for -derive (default: vault program)")
	inspectKey   = flag.String("inspect", "", "Inspect the ledger record at a base58 address")
	snapshotPath = flag.String("snapshot", "", "Export the ledger to a snapshot file")
	restorePath  = flag.String("restore", "", "Import a snapshot file into the ledger")
	runDemo      = flag.Bool("demo", false, "Run a vault deposit/withdraw scenario against the local ledger")
	showVersion  = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("X1-Sentry %s (%s)\n", Version, GitCommit)
		os.Exit(0)
	}

	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	switch {
	case *deriveSeeds != "":
		if err := derive(*deriveSeeds, *program); err != nil {
			log.Fatalf("Derivation failed: %v", err)
		}
	case *inspectKey != "":
		if err := withLedger(func(db ledger.DB) error {
			return inspect(db, *inspectKey)
		}); err != nil {
			log.Fatalf("Inspect failed: %v", err)
		}
	case *snapshotPath != "":
		if err := withLedger(func(db ledger.DB) error {
			count, err := snapshot.SaveFile(db, *snapshotPath)
			if err != nil {
				return err
			}
			log.Printf("Exported %d records to %s", count, *snapshotPath)
			return nil
		}); err != nil {
			log.Fatalf("Snapshot failed: %v", err)
		}
	case *restorePath != "":
		if err := withLedger(func(db ledger.DB) error {
			count, err := snapshot.LoadFile(*restorePath, db)
			if err != nil {
				return err
			}
			log.Printf("Imported %d records from %s", count, *restorePath)
			return nil
		}); err != nil {
			log.Fatalf("Restore failed: %v", err)
		}
	case *runDemo:
		if err := demo(); err != nil {
			log.Fatalf("Demo failed: %v", err)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
}

// withLedger opens the badger-backed ledger under the data directory and
// runs fn against it.
func withLedger(fn func(ledger.DB) error) error {
	cfg := ledger.DefaultBadgerConfig(filepath.Join(*dataDir, "ledger"))
	db, err := ledger.OpenBadgerDB(cfg)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer db.Close()
	return fn(db)
}

// derive finds the program address for the given seed strings.
func derive(seedList, programStr string) error {
	programID := vault.ProgramID
	if programStr != "" {
		var err error
		programID, err = types.PubkeyFromBase58(programStr)
		if err != nil {
			return fmt.Errorf("parse program: %w", err)
		}
	}

	var seeds [][]byte
	for _, s := range strings.Split(seedList, ",") {
		seeds = append(seeds, []byte(s))
	}

	addr, bump, err := pda.FindProgramAddress(seeds, programID)
	if err != nil {
		return err
	}
	fmt.Printf("address: %s\nbump:    %d\nprogram: %s\n", addr, bump, programID)
	return nil
}

// inspect prints the ledger record at the given address, decoding it as a
// vault when the discriminator matches.
func inspect(db ledger.DB, keyStr string) error {
	pubkey, err := types.PubkeyFromBase58(keyStr)
	if err != nil {
		return fmt.Errorf("parse address: %w", err)
	}

	rec, err := db.GetRecord(pubkey)
	if err != nil {
		return err
	}

	fmt.Printf("address:  %s\n", pubkey)
	fmt.Printf("owner:    %s\n", rec.Owner)
	fmt.Printf("lamports: %d\n", rec.Lamports)
	fmt.Printf("data:     %d bytes\n", len(rec.Data))

	if account.ReadTag(rec.Data) != account.TagVault {
		return nil
	}
	v, err := account.DecodeVault(
		account.NewRef(pubkey, rec.Owner, rec.Data, false),
		account.Policy{Owner: rec.Owner, Tag: &account.TagVault})
	if err != nil {
		return fmt.Errorf("decode vault: %w", err)
	}
	fmt.Printf("vault authority: %s\n", v.Authority)
	fmt.Printf("vault balance:   %d\n", v.Balance)
	fmt.Printf("vault bump:      %d\n", v.Bump)
	return nil
}

// demo runs an initialize/deposit/withdraw scenario against the local
// ledger and prints the journaled receipts.
func demo() error {
	return withLedger(func(db ledger.DB) error {
		j, err := journal.Open(filepath.Join(*dataDir, "journal.db"))
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer j.Close()

		engine := runtime.NewEngine(db, j)
		authority := types.Pubkey(types.ComputeHash([]byte("demo-authority")))

		vaultAddr, bump, err := pda.FindProgramAddress(
			[][]byte{vault.SeedVault, authority.Bytes()}, vault.ProgramID)
		if err != nil {
			return err
		}
		log.Printf("Demo vault %s (bump %d) for authority %s", vaultAddr, bump, authority)

		err = engine.Allocate(vaultAddr, vault.ProgramID, account.VaultLen)
		if errors.Is(err, runtime.ErrAccountExists) {
			return fmt.Errorf("demo vault already exists; run against a fresh -data-dir")
		}
		if err != nil {
			return fmt.Errorf("allocate vault: %w", err)
		}

		steps := []struct {
			name    string
			signers []types.Pubkey
			keys    []types.Pubkey
			data    []byte
		}{
			{"initialize", []types.Pubkey{authority}, []types.Pubkey{vaultAddr, authority}, vault.EncodeInitialize(bump)},
			{"deposit", nil, []types.Pubkey{vaultAddr}, vault.EncodeDeposit(1000)},
			{"withdraw", []types.Pubkey{authority}, []types.Pubkey{vaultAddr, authority}, vault.EncodeWithdraw(400)},
		}
		for _, step := range steps {
			receipt, err := engine.Process(&runtime.Transaction{
				ID:       types.ComputeHash([]byte("demo:" + step.name)),
				Signers:  step.signers,
				Accounts: step.keys,
				Data:     step.data,
			})
			if err != nil {
				return fmt.Errorf("%s: %w", step.name, err)
			}
			log.Printf("Step %s: seq=%d digest=%s", step.name, receipt.Seq, receipt.Digest)
			for _, line := range receipt.Logs {
				log.Printf("  %s", line)
			}
		}

		return inspect(db, vaultAddr.String())
	})
}
