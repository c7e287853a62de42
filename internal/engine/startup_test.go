package engine_test

import (
	"os"
	"path/filepath"
	"testing"

	"ledgersafe/internal/engine"
)

func countByReason(t *testing.T, svc *engine.BackupService, reason string) (db, full int) {
	t.Helper()
	entries, err := svc.ListBackups()
	if err != nil {
		t.Fatalf("ListBackups() error = %v", err)
	}
	for _, e := range entries {
		if e.Reason != reason {
			continue
		}
		if e.Kind == engine.KindFull {
			full++
		} else {
			db++
		}
	}
	return db, full
}

func TestBackupService_AutoBackupOnStart(t *testing.T) {
	t.Run("creates one database and one full backup per day", func(t *testing.T) {
		env := newTestEnv(t)

		if err := env.svc.AutoBackupOnStart(); err != nil {
			t.Fatalf("AutoBackupOnStart() error = %v", err)
		}
		db, full := countByReason(t, env.svc, "auto-daily")
		if db != 1 || full != 1 {
			t.Fatalf("auto-daily backups = %d db, %d full, want 1 and 1", db, full)
		}

		// A second startup on the same day changes nothing.
		if err := env.svc.AutoBackupOnStart(); err != nil {
			t.Fatalf("AutoBackupOnStart() second run error = %v", err)
		}
		db, full = countByReason(t, env.svc, "auto-daily")
		if db != 1 || full != 1 {
			t.Errorf("auto-daily backups after rerun = %d db, %d full, want 1 and 1", db, full)
		}
	})

	t.Run("backfills only the missing daily artifact", func(t *testing.T) {
		env := newTestEnv(t)

		if _, err := env.svc.CreateBackup("auto-daily", false); err != nil {
			t.Fatalf("CreateBackup() error = %v", err)
		}
		if err := env.svc.AutoBackupOnStart(); err != nil {
			t.Fatalf("AutoBackupOnStart() error = %v", err)
		}

		db, full := countByReason(t, env.svc, "auto-daily")
		if db != 1 || full != 1 {
			t.Errorf("auto-daily backups = %d db, %d full, want 1 and 1", db, full)
		}
	})

	t.Run("heals a corrupt live database from the newest valid backup", func(t *testing.T) {
		env := newTestEnv(t)

		name, err := env.svc.CreateBackup("manual", false)
		if err != nil {
			t.Fatalf("CreateBackup() error = %v", err)
		}
		wantSum := checksumOrFatal(t, filepath.Join(env.backupDir, name))

		if err := os.WriteFile(env.dbPath, []byte("corrupted"), 0644); err != nil {
			t.Fatal(err)
		}

		if err := env.svc.AutoBackupOnStart(); err != nil {
			t.Fatalf("AutoBackupOnStart() error = %v", err)
		}
		if got := checksumOrFatal(t, env.dbPath); got != wantSum {
			t.Errorf("live database checksum = %s, want healed copy %s", got, wantSum)
		}

		// The healing run takes no daily backups.
		db, full := countByReason(t, env.svc, "auto-daily")
		if db != 0 || full != 0 {
			t.Errorf("auto-daily backups during self-heal = %d db, %d full, want none", db, full)
		}
	})

	t.Run("self-heal skips newer artifacts that fail verification", func(t *testing.T) {
		env := newTestEnv(t)

		name, err := env.svc.CreateBackup("manual", false)
		if err != nil {
			t.Fatalf("CreateBackup() error = %v", err)
		}
		wantSum := checksumOrFatal(t, filepath.Join(env.backupDir, name))

		// A lexically newer artifact that is not a valid database.
		broken := "2030-01-01_00-00-00_manual.db"
		if err := os.WriteFile(filepath.Join(env.backupDir, broken), []byte("junk"), 0644); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(env.dbPath, []byte("corrupted"), 0644); err != nil {
			t.Fatal(err)
		}

		if err := env.svc.AutoBackupOnStart(); err != nil {
			t.Fatalf("AutoBackupOnStart() error = %v", err)
		}
		if got := checksumOrFatal(t, env.dbPath); got != wantSum {
			t.Errorf("live database checksum = %s, want %s from the valid artifact", got, wantSum)
		}
	})

	t.Run("heals a missing live database", func(t *testing.T) {
		env := newTestEnv(t)

		name, err := env.svc.CreateBackup("manual", false)
		if err != nil {
			t.Fatalf("CreateBackup() error = %v", err)
		}
		wantSum := checksumOrFatal(t, filepath.Join(env.backupDir, name))

		if err := os.Remove(env.dbPath); err != nil {
			t.Fatal(err)
		}

		if err := env.svc.AutoBackupOnStart(); err != nil {
			t.Fatalf("AutoBackupOnStart() error = %v", err)
		}
		if got := checksumOrFatal(t, env.dbPath); got != wantSum {
			t.Errorf("live database checksum = %s, want %s", got, wantSum)
		}
	})

	t.Run("fails when no backup can heal the live database", func(t *testing.T) {
		env := newTestEnv(t)

		if err := os.WriteFile(env.dbPath, []byte("corrupted"), 0644); err != nil {
			t.Fatal(err)
		}

		if err := env.svc.AutoBackupOnStart(); err == nil {
			t.Error("AutoBackupOnStart() with no healing source succeeded, want error")
		}
	})
}
