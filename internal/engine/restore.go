package engine

import (
	"fmt"
	"os"
	"path/filepath"

	"ledgersafe/internal/fsutil"
)

// RestoreBackup replaces the live database with a verified database-only
// artifact. A pre-restore safety backup of the current live database is taken
// first; without it the restore never starts. If the live file fails
// verification after the swap it is rolled back from the safety backup, so
// every exit leaves the live database either fully old or fully new.
func (s *BackupService) RestoreBackup(filename string) error {
	artifactPath := filepath.Join(s.opts.BackupDir, filename)

	if _, err := s.inspector.Verify(artifactPath); err != nil {
		err = fmt.Errorf("refusing restore from %s: %w", filename, err)
		s.opLog.Record(opRestoreDB, err.Error(), false)
		return err
	}

	safetyName, err := s.CreateBackup("pre-restore", false)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrSafetyBackup, err)
		s.opLog.Record(opRestoreDB, err.Error(), false)
		return err
	}

	if err := fsutil.CopyFile(artifactPath, s.opts.DatabasePath); err != nil {
		err = fmt.Errorf("copying artifact over live database: %w", err)
		s.opLog.Record(opRestoreDB, err.Error(), false)
		return err
	}

	if _, err := s.inspector.Verify(s.opts.DatabasePath); err != nil {
		safetyPath := filepath.Join(s.opts.BackupDir, safetyName)
		if rbErr := fsutil.CopyFile(safetyPath, s.opts.DatabasePath); rbErr != nil {
			s.logger.Error("rollback from pre-restore backup failed", "error", rbErr)
		}
		err = fmt.Errorf("%w: %v (rolled back to %s)", ErrVerifyAfterRestore, err, safetyName)
		s.opLog.Record(opRestoreDB, err.Error(), false)
		return err
	}

	s.logger.Info("database restored", "filename", filename)
	s.opLog.Record(opRestoreDB, fmt.Sprintf("restored from %s", filename), true)
	return nil
}

// RestoreFullBackup replaces both the live database and the receipt store
// from a verified full backup archive. In addition to the pre-restore full
// backup artifact, fast rollback copies of the current database and receipt
// tree are kept in the temporary area for the duration of the swap.
func (s *BackupService) RestoreFullBackup(filename string) error {
	archivePath := filepath.Join(s.opts.BackupDir, filename)

	if _, err := s.VerifyFullArchive(archivePath); err != nil {
		err = fmt.Errorf("refusing restore from %s: %w", filename, err)
		s.opLog.Record(opRestoreFull, err.Error(), false)
		return err
	}

	if _, err := s.CreateFullBackup("pre-restore", false); err != nil {
		err = fmt.Errorf("%w: %v", ErrSafetyBackup, err)
		s.opLog.Record(opRestoreFull, err.Error(), false)
		return err
	}

	tmpDir, err := os.MkdirTemp(s.opts.BackupDir, "restore_full_")
	if err != nil {
		err = fmt.Errorf("creating restore directory: %w", err)
		s.opLog.Record(opRestoreFull, err.Error(), false)
		return err
	}
	defer os.RemoveAll(tmpDir)

	if err := s.swapFullBackup(archivePath, tmpDir); err != nil {
		s.opLog.Record(opRestoreFull, fmt.Sprintf("%s: %v", filename, err), false)
		return err
	}

	s.logger.Info("full restore completed", "filename", filename)
	s.opLog.Record(opRestoreFull, fmt.Sprintf("restored from %s", filename), true)
	return nil
}

// swapFullBackup extracts the archive, saves rollback copies of the current
// live state, then swaps in the extracted database and receipt tree. Any
// failure during or after the swap restores the saved copies before
// returning: there is no exit in which the live state is half swapped.
func (s *BackupService) swapFullBackup(archivePath, tmpDir string) error {
	extractDir := filepath.Join(tmpDir, "extract")
	if err := s.archiver.Extract(archivePath, extractDir); err != nil {
		return fmt.Errorf("extracting archive: %w (%v)", ErrArchiveCorrupt, err)
	}

	manifest := readManifest(filepath.Join(extractDir, manifestName))
	snapshot := filepath.Join(extractDir, manifest.DatabaseFile)
	receiptSnapshot := filepath.Join(extractDir, filepath.FromSlash(manifest.ReceiptRoot))

	// Rollback copies of the current live state.
	currentDB := filepath.Join(tmpDir, "current_database.db")
	haveCurrentDB := false
	if _, err := os.Stat(s.opts.DatabasePath); err == nil {
		if err := fsutil.CopyFile(s.opts.DatabasePath, currentDB); err != nil {
			return fmt.Errorf("saving current database: %w", err)
		}
		haveCurrentDB = true
	}
	currentReceipts := filepath.Join(tmpDir, "current_receipts")
	if _, err := fsutil.CopyTree(s.opts.ReceiptDir, currentReceipts); err != nil {
		return fmt.Errorf("saving current receipt store: %w", err)
	}

	rollback := func() {
		if haveCurrentDB {
			if err := fsutil.CopyFile(currentDB, s.opts.DatabasePath); err != nil {
				s.logger.Error("rollback of live database failed", "error", err)
			}
		}
		if err := os.RemoveAll(s.opts.ReceiptDir); err != nil {
			s.logger.Error("rollback of receipt store failed", "error", err)
		}
		if err := os.MkdirAll(s.opts.ReceiptDir, 0755); err != nil {
			s.logger.Error("rollback of receipt store failed", "error", err)
			return
		}
		if _, err := fsutil.CopyTree(currentReceipts, s.opts.ReceiptDir); err != nil {
			s.logger.Error("rollback of receipt store failed", "error", err)
		}
	}

	if err := fsutil.CopyFile(snapshot, s.opts.DatabasePath); err != nil {
		rollback()
		return fmt.Errorf("swapping in database snapshot: %w", err)
	}

	if err := os.RemoveAll(s.opts.ReceiptDir); err != nil {
		rollback()
		return fmt.Errorf("clearing receipt store: %w", err)
	}
	if err := os.MkdirAll(s.opts.ReceiptDir, 0755); err != nil {
		rollback()
		return fmt.Errorf("recreating receipt store: %w", err)
	}
	if _, err := fsutil.CopyTree(receiptSnapshot, s.opts.ReceiptDir); err != nil {
		rollback()
		return fmt.Errorf("swapping in receipt store: %w", err)
	}

	if _, err := s.inspector.Verify(s.opts.DatabasePath); err != nil {
		rollback()
		return fmt.Errorf("%w: %v", ErrVerifyAfterRestore, err)
	}
	return nil
}
