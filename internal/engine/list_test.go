package engine_test

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ledgersafe/internal/archive"
	"ledgersafe/internal/database"
	"ledgersafe/internal/engine"
)

// writeSyntheticArtifact drops a named file into the backup directory so
// listing and retention can be tested without creating real backups.
func writeSyntheticArtifact(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("artifact"), 0644); err != nil {
		t.Fatalf("writing artifact %s: %v", name, err)
	}
}

func TestBackupService_ListBackups(t *testing.T) {
	t.Run("lists artifacts newest first with parsed metadata", func(t *testing.T) {
		env := newTestEnv(t)

		writeSyntheticArtifact(t, env.backupDir, "2026-08-24_10-00-00_manual.db")
		writeSyntheticArtifact(t, env.backupDir, "2026-08-25_10-00-00_auto-daily_full.zip")
		writeSyntheticArtifact(t, env.backupDir, "2026-08-26_10-00-00_pre-restore.db")

		entries, err := env.svc.ListBackups()
		if err != nil {
			t.Fatalf("ListBackups() error = %v", err)
		}
		if len(entries) != 3 {
			t.Fatalf("ListBackups() returned %d entries, want 3", len(entries))
		}

		if entries[0].Filename != "2026-08-26_10-00-00_pre-restore.db" {
			t.Errorf("entries[0] = %q, want the newest artifact", entries[0].Filename)
		}
		if entries[0].Reason != "pre-restore" || entries[0].Kind != engine.KindDatabase {
			t.Errorf("entries[0] parsed as reason %q kind %q", entries[0].Reason, entries[0].Kind)
		}

		full := entries[1]
		if full.Kind != engine.KindFull {
			t.Errorf("entries[1].Kind = %q, want %q", full.Kind, engine.KindFull)
		}
		if full.Reason != "auto-daily" {
			t.Errorf("entries[1].Reason = %q, want %q (full suffix stripped)", full.Reason, "auto-daily")
		}
		wantTS := time.Date(2026, 8, 25, 10, 0, 0, 0, time.Local)
		if !full.Timestamp.Equal(wantTS) {
			t.Errorf("entries[1].Timestamp = %v, want %v", full.Timestamp, wantTS)
		}
	})

	t.Run("skips directories, hidden files and foreign extensions", func(t *testing.T) {
		env := newTestEnv(t)

		writeSyntheticArtifact(t, env.backupDir, "2026-08-26_10-00-00_manual.db")
		writeSyntheticArtifact(t, env.backupDir, ".tmp-2026-08-26_10-00-01_manual.db")
		writeSyntheticArtifact(t, env.backupDir, "notes.txt")
		if err := os.MkdirAll(filepath.Join(env.backupDir, "restore_drill_x"), 0755); err != nil {
			t.Fatal(err)
		}

		entries, err := env.svc.ListBackups()
		if err != nil {
			t.Fatalf("ListBackups() error = %v", err)
		}
		if len(entries) != 1 {
			t.Fatalf("ListBackups() returned %d entries, want 1: %v", len(entries), entries)
		}
	})

	t.Run("keeps unparseable artifact names with unknown reason", func(t *testing.T) {
		env := newTestEnv(t)

		writeSyntheticArtifact(t, env.backupDir, "legacy-backup.db")

		entries, err := env.svc.ListBackups()
		if err != nil {
			t.Fatalf("ListBackups() error = %v", err)
		}
		if len(entries) != 1 {
			t.Fatalf("ListBackups() returned %d entries, want 1", len(entries))
		}
		if entries[0].Reason != "unknown" {
			t.Errorf("Reason = %q, want %q", entries[0].Reason, "unknown")
		}
		if !entries[0].Timestamp.IsZero() {
			t.Errorf("Timestamp = %v, want zero", entries[0].Timestamp)
		}
	})
}

func TestBackupService_GetBackupStats(t *testing.T) {
	env := newTestEnv(t)

	writeSyntheticArtifact(t, env.backupDir, "2026-08-24_10-00-00_manual.db")
	writeSyntheticArtifact(t, env.backupDir, "2026-08-25_10-00-00_manual_full.zip")
	writeSyntheticArtifact(t, env.backupDir, "2026-08-26_10-00-00_manual.db")

	stats, err := env.svc.GetBackupStats()
	if err != nil {
		t.Fatalf("GetBackupStats() error = %v", err)
	}
	if stats.TotalBackups != 3 || stats.DatabaseBackups != 2 || stats.FullBackups != 1 {
		t.Errorf("stats = %d total, %d db, %d full; want 3, 2, 1",
			stats.TotalBackups, stats.DatabaseBackups, stats.FullBackups)
	}
	if stats.MaxBackups != engine.DefaultMaxBackups {
		t.Errorf("stats.MaxBackups = %d, want %d", stats.MaxBackups, engine.DefaultMaxBackups)
	}
	wantNewest := time.Date(2026, 8, 26, 10, 0, 0, 0, time.Local)
	if !stats.NewestBackup.Equal(wantNewest) {
		t.Errorf("stats.NewestBackup = %v, want %v", stats.NewestBackup, wantNewest)
	}
	wantOldest := time.Date(2026, 8, 24, 10, 0, 0, 0, time.Local)
	if !stats.OldestBackup.Equal(wantOldest) {
		t.Errorf("stats.OldestBackup = %v, want %v", stats.OldestBackup, wantOldest)
	}
}

func TestBackupService_DeleteBackup(t *testing.T) {
	t.Run("refuses to delete the last backup", func(t *testing.T) {
		env := newTestEnv(t)

		name := "2026-08-26_10-00-00_manual.db"
		writeSyntheticArtifact(t, env.backupDir, name)

		err := env.svc.DeleteBackup(name)
		if !errors.Is(err, engine.ErrDeleteRefused) {
			t.Errorf("DeleteBackup() error = %v, want ErrDeleteRefused", err)
		}
		if _, statErr := os.Stat(filepath.Join(env.backupDir, name)); statErr != nil {
			t.Error("refused delete removed the artifact anyway")
		}
	})

	t.Run("removes the artifact and its external copy", func(t *testing.T) {
		env := newTestEnv(t)
		externalDir := t.TempDir()

		svc, err := engine.NewBackupService(engine.Options{
			BackupDir:    env.backupDir,
			DatabasePath: env.dbPath,
			ReceiptDir:   env.receiptDir,
			ExternalDir:  externalDir,
		}, database.NewSQLiteInspector(), archive.NewZipArchiver(), engine.NewNopOperationLog(), engine.NewNopLogger(), env.clock)
		if err != nil {
			t.Fatal(err)
		}

		name := "2026-08-25_10-00-00_manual.db"
		writeSyntheticArtifact(t, env.backupDir, name)
		writeSyntheticArtifact(t, externalDir, name)
		writeSyntheticArtifact(t, env.backupDir, "2026-08-26_10-00-00_manual.db")

		if err := svc.DeleteBackup(name); err != nil {
			t.Fatalf("DeleteBackup() error = %v", err)
		}
		if _, err := os.Stat(filepath.Join(env.backupDir, name)); !os.IsNotExist(err) {
			t.Error("artifact still present after delete")
		}
		if _, err := os.Stat(filepath.Join(externalDir, name)); !os.IsNotExist(err) {
			t.Error("external copy still present after delete")
		}
	})

	t.Run("fails for a missing artifact", func(t *testing.T) {
		env := newTestEnv(t)

		writeSyntheticArtifact(t, env.backupDir, "2026-08-25_10-00-00_manual.db")
		writeSyntheticArtifact(t, env.backupDir, "2026-08-26_10-00-00_manual.db")

		err := env.svc.DeleteBackup("2026-08-20_10-00-00_manual.db")
		if !errors.Is(err, engine.ErrSourceMissing) {
			t.Errorf("DeleteBackup() error = %v, want ErrSourceMissing", err)
		}
	})
}

func TestBackupService_CleanupOldBackups(t *testing.T) {
	t.Run("evicts oldest artifacts past the maximum", func(t *testing.T) {
		env := newTestEnv(t)

		svc, err := engine.NewBackupService(engine.Options{
			BackupDir:    env.backupDir,
			DatabasePath: env.dbPath,
			ReceiptDir:   env.receiptDir,
			MaxBackups:   10,
		}, database.NewSQLiteInspector(), archive.NewZipArchiver(), engine.NewNopOperationLog(), engine.NewNopLogger(), env.clock)
		if err != nil {
			t.Fatal(err)
		}

		for i := 0; i < 15; i++ {
			writeSyntheticArtifact(t, env.backupDir,
				fmt.Sprintf("2026-08-01_%02d-00-00_manual.db", i))
		}

		removed := svc.CleanupOldBackups()
		if removed != 5 {
			t.Errorf("CleanupOldBackups() = %d, want 5", removed)
		}

		entries, err := svc.ListBackups()
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 10 {
			t.Fatalf("retention set has %d artifacts, want 10", len(entries))
		}
		// The survivors are the newest ten.
		if got := entries[len(entries)-1].Filename; got != "2026-08-01_05-00-00_manual.db" {
			t.Errorf("oldest survivor = %q, want %q", got, "2026-08-01_05-00-00_manual.db")
		}
	})

	t.Run("does nothing under the maximum", func(t *testing.T) {
		env := newTestEnv(t)

		writeSyntheticArtifact(t, env.backupDir, "2026-08-26_10-00-00_manual.db")
		if removed := env.svc.CleanupOldBackups(); removed != 0 {
			t.Errorf("CleanupOldBackups() = %d, want 0", removed)
		}
	})
}
