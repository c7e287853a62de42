package engine_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ledgersafe/internal/database"
	"ledgersafe/internal/engine"
	"ledgersafe/internal/testutil"
)

func TestBackupService_RestoreBackup(t *testing.T) {
	t.Run("round trips the live database", func(t *testing.T) {
		env := newTestEnv(t)

		name, err := env.svc.CreateBackup("manual", false)
		if err != nil {
			t.Fatalf("CreateBackup() error = %v", err)
		}
		wantSum := checksumOrFatal(t, env.dbPath)

		// Mutate the live database so the restore has something to undo.
		testutil.InsertInvoice(t, env.dbPath, testutil.FixtureInvoice{
			PJVNumber: "PJV-999", ReceiptPath: "2026/receipt-999.pdf",
		})
		if checksumOrFatal(t, env.dbPath) == wantSum {
			t.Fatal("fixture mutation did not change the live database")
		}

		if err := env.svc.RestoreBackup(name); err != nil {
			t.Fatalf("RestoreBackup() error = %v", err)
		}
		if got := checksumOrFatal(t, env.dbPath); got != wantSum {
			t.Errorf("live database checksum = %s, want %s", got, wantSum)
		}
	})

	t.Run("takes a pre-restore safety backup", func(t *testing.T) {
		env := newTestEnv(t)

		name, err := env.svc.CreateBackup("manual", false)
		if err != nil {
			t.Fatalf("CreateBackup() error = %v", err)
		}
		if err := env.svc.RestoreBackup(name); err != nil {
			t.Fatalf("RestoreBackup() error = %v", err)
		}

		entries, err := env.svc.ListBackups()
		if err != nil {
			t.Fatal(err)
		}
		found := false
		for _, e := range entries {
			if e.Reason == "pre-restore" {
				found = true
			}
		}
		if !found {
			t.Errorf("no pre-restore artifact in %v", entries)
		}
	})

	t.Run("refuses an unverifiable artifact", func(t *testing.T) {
		env := newTestEnv(t)

		bogus := "2026-01-01_00-00-00_manual.db"
		if err := os.WriteFile(filepath.Join(env.backupDir, bogus), []byte("junk"), 0644); err != nil {
			t.Fatal(err)
		}
		liveSum := checksumOrFatal(t, env.dbPath)

		err := env.svc.RestoreBackup(bogus)
		if !errors.Is(err, engine.ErrSchemaInvalid) {
			t.Errorf("RestoreBackup() error = %v, want ErrSchemaInvalid", err)
		}
		if got := checksumOrFatal(t, env.dbPath); got != liveSum {
			t.Errorf("live database changed by a refused restore")
		}
	})

	t.Run("aborts when the safety backup cannot be taken", func(t *testing.T) {
		env := newTestEnv(t)

		name, err := env.svc.CreateBackup("manual", false)
		if err != nil {
			t.Fatalf("CreateBackup() error = %v", err)
		}
		// No live database means no safety backup is possible.
		if err := os.Remove(env.dbPath); err != nil {
			t.Fatal(err)
		}

		err = env.svc.RestoreBackup(name)
		if !errors.Is(err, engine.ErrSafetyBackup) {
			t.Errorf("RestoreBackup() error = %v, want ErrSafetyBackup", err)
		}
		if _, statErr := os.Stat(env.dbPath); statErr == nil {
			t.Error("aborted restore wrote the live database")
		}
	})

	t.Run("rolls back when the restored database fails verification", func(t *testing.T) {
		env := newTestEnv(t)

		name, err := env.svc.CreateBackup("manual", false)
		if err != nil {
			t.Fatalf("CreateBackup() error = %v", err)
		}
		testutil.InsertInvoice(t, env.dbPath, testutil.FixtureInvoice{
			PJVNumber: "PJV-999", ReceiptPath: "2026/receipt-999.pdf",
		})
		liveSum := checksumOrFatal(t, env.dbPath)

		// Verification of the live path fails only after the swap: the
		// pre-restore snapshot is verified at its staging path, not here.
		failing := &testutil.FailingInspector{
			Real:     database.NewSQLiteInspector(),
			FailPath: env.dbPath,
			Err:      engine.ErrSchemaInvalid,
		}
		svc := env.newService(t, failing)

		err = svc.RestoreBackup(name)
		if !errors.Is(err, engine.ErrVerifyAfterRestore) {
			t.Fatalf("RestoreBackup() error = %v, want ErrVerifyAfterRestore", err)
		}
		if got := checksumOrFatal(t, env.dbPath); got != liveSum {
			t.Errorf("live database checksum after rollback = %s, want %s", got, liveSum)
		}
	})
}

func TestBackupService_RestoreFullBackup(t *testing.T) {
	t.Run("round trips database and receipt store", func(t *testing.T) {
		env := newTestEnv(t)

		name, err := env.svc.CreateFullBackup("manual", false)
		if err != nil {
			t.Fatalf("CreateFullBackup() error = %v", err)
		}
		wantDBSum := checksumOrFatal(t, env.dbPath)
		wantReceiptSum := checksumOrFatal(t, filepath.Join(env.receiptDir, "2026", "receipt-001.pdf"))

		// Drift both resources: mutate the database, change a receipt, add a
		// file the archive does not contain.
		testutil.InsertInvoice(t, env.dbPath, testutil.FixtureInvoice{
			PJVNumber: "PJV-999", ReceiptPath: "2026/receipt-999.pdf",
		})
		testutil.WriteReceipt(t, env.receiptDir, "2026/receipt-001.pdf", "tampered content")
		testutil.WriteReceipt(t, env.receiptDir, "2026/extra.pdf", "not in the archive")

		if err := env.svc.RestoreFullBackup(name); err != nil {
			t.Fatalf("RestoreFullBackup() error = %v", err)
		}

		if got := checksumOrFatal(t, env.dbPath); got != wantDBSum {
			t.Errorf("live database checksum = %s, want %s", got, wantDBSum)
		}
		if got := checksumOrFatal(t, filepath.Join(env.receiptDir, "2026", "receipt-001.pdf")); got != wantReceiptSum {
			t.Errorf("receipt checksum = %s, want %s", got, wantReceiptSum)
		}
		if _, err := os.Stat(filepath.Join(env.receiptDir, "2026", "extra.pdf")); err == nil {
			t.Error("file absent from the archive survived the full restore")
		}
	})

	t.Run("refuses a non-archive filename", func(t *testing.T) {
		env := newTestEnv(t)

		name, err := env.svc.CreateBackup("manual", false)
		if err != nil {
			t.Fatalf("CreateBackup() error = %v", err)
		}

		err = env.svc.RestoreFullBackup(name)
		if !errors.Is(err, engine.ErrArchiveCorrupt) {
			t.Errorf("RestoreFullBackup(%s) error = %v, want ErrArchiveCorrupt", name, err)
		}
	})

	t.Run("rolls back both resources when verification fails after the swap", func(t *testing.T) {
		env := newTestEnv(t)

		name, err := env.svc.CreateFullBackup("manual", false)
		if err != nil {
			t.Fatalf("CreateFullBackup() error = %v", err)
		}

		testutil.InsertInvoice(t, env.dbPath, testutil.FixtureInvoice{
			PJVNumber: "PJV-999", ReceiptPath: "2026/receipt-999.pdf",
		})
		testutil.WriteReceipt(t, env.receiptDir, "2026/extra.pdf", "kept on rollback")
		liveSum := checksumOrFatal(t, env.dbPath)

		failing := &testutil.FailingInspector{
			Real:     database.NewSQLiteInspector(),
			FailPath: env.dbPath,
			Err:      engine.ErrSchemaInvalid,
		}
		svc := env.newService(t, failing)

		err = svc.RestoreFullBackup(name)
		if !errors.Is(err, engine.ErrVerifyAfterRestore) {
			t.Fatalf("RestoreFullBackup() error = %v, want ErrVerifyAfterRestore", err)
		}
		if got := checksumOrFatal(t, env.dbPath); got != liveSum {
			t.Errorf("live database checksum after rollback = %s, want %s", got, liveSum)
		}
		if _, err := os.Stat(filepath.Join(env.receiptDir, "2026", "extra.pdf")); err != nil {
			t.Errorf("receipt store not rolled back: %v", err)
		}
	})

	t.Run("leaves no temporary directories behind", func(t *testing.T) {
		env := newTestEnv(t)

		name, err := env.svc.CreateFullBackup("manual", false)
		if err != nil {
			t.Fatalf("CreateFullBackup() error = %v", err)
		}
		if err := env.svc.RestoreFullBackup(name); err != nil {
			t.Fatalf("RestoreFullBackup() error = %v", err)
		}

		dirEntries, err := os.ReadDir(env.backupDir)
		if err != nil {
			t.Fatal(err)
		}
		for _, e := range dirEntries {
			if e.IsDir() && (strings.HasPrefix(e.Name(), "restore_full_") || strings.HasPrefix(e.Name(), "verify_full_")) {
				t.Errorf("leftover temporary directory: %s", e.Name())
			}
		}
	})
}
