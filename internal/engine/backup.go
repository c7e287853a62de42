package engine

import (
	"fmt"
	"os"
	"path/filepath"

	"ledgersafe/internal/fsutil"
)

// Operation names recorded in the operation log.
const (
	opCreateDB     = "CREATE_DB"
	opCreateFull   = "CREATE_FULL"
	opRestoreDB    = "RESTORE_DB"
	opRestoreFull  = "RESTORE_FULL"
	opRestoreDrill = "RESTORE_DRILL"
	opSelfHeal     = "SELF_HEAL"
	opDelete       = "DELETE"
)

// CreateBackup copies the live database into a new timestamped artifact,
// guarding the copy with a checksum match and (unless skipVerify is set)
// schema verification. The artifact only becomes visible under its final
// name after it has passed every check. Returns the artifact filename.
func (s *BackupService) CreateBackup(reason string, skipVerify bool) (string, error) {
	if _, err := os.Stat(s.opts.DatabasePath); err != nil {
		err = fmt.Errorf("live database %s: %w", s.opts.DatabasePath, ErrSourceMissing)
		s.opLog.Record(opCreateDB, err.Error(), false)
		return "", err
	}

	filename := s.timestamp() + "_" + reason + ".db"
	finalPath := filepath.Join(s.opts.BackupDir, filename)
	tmpPath := filepath.Join(s.opts.BackupDir, ".tmp-"+filename)

	if _, err := s.snapshotDatabase(tmpPath, skipVerify); err != nil {
		s.opLog.Record(opCreateDB, fmt.Sprintf("%s: %v", filename, err), false)
		return "", err
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		err = fmt.Errorf("publishing backup: %w", err)
		s.opLog.Record(opCreateDB, fmt.Sprintf("%s: %v", filename, err), false)
		return "", err
	}

	s.copyToExternal(finalPath)

	s.logger.Info("database backup created", "filename", filename, "reason", reason)
	s.opLog.Record(opCreateDB, fmt.Sprintf("%s (%s)", filename, reason), true)
	s.CleanupOldBackups()
	return filename, nil
}

// CreateFullBackup assembles a database snapshot, a mirror of the receipt
// store and a manifest in a staging directory, compresses them into a new
// archive, and re-verifies the finished archive before publishing it.
// Returns the archive filename.
func (s *BackupService) CreateFullBackup(reason string, skipVerify bool) (string, error) {
	if _, err := os.Stat(s.opts.DatabasePath); err != nil {
		err = fmt.Errorf("live database %s: %w", s.opts.DatabasePath, ErrSourceMissing)
		s.opLog.Record(opCreateFull, err.Error(), false)
		return "", err
	}

	ts := s.timestamp()
	filename := ts + "_" + reason + "_full.zip"
	finalPath := filepath.Join(s.opts.BackupDir, filename)
	tmpPath := filepath.Join(s.opts.BackupDir, ".tmp-"+filename)
	stagingDir := filepath.Join(s.opts.BackupDir, ".staging_"+ts+"_"+reason+"_full")

	name, err := s.assembleFullBackup(stagingDir, tmpPath, finalPath, reason, skipVerify)
	// The staging directory and any half-built archive are removed on every
	// exit path, success included.
	os.RemoveAll(stagingDir)
	if err != nil {
		os.Remove(tmpPath)
		s.opLog.Record(opCreateFull, fmt.Sprintf("%s: %v", filename, err), false)
		return "", err
	}

	s.logger.Info("full backup created", "filename", name, "reason", reason)
	s.opLog.Record(opCreateFull, fmt.Sprintf("%s (%s)", name, reason), true)
	s.CleanupOldBackups()
	return name, nil
}

func (s *BackupService) assembleFullBackup(stagingDir, tmpPath, finalPath, reason string, skipVerify bool) (string, error) {
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return "", fmt.Errorf("creating staging directory: %w", err)
	}

	snapshotSum, err := s.snapshotDatabase(filepath.Join(stagingDir, databaseSnapshotName), skipVerify)
	if err != nil {
		return "", err
	}

	receiptStaging := filepath.Join(stagingDir, defaultReceiptRoot)
	if err := os.MkdirAll(receiptStaging, 0755); err != nil {
		return "", fmt.Errorf("creating receipt staging directory: %w", err)
	}
	receiptCount, err := fsutil.CopyTree(s.opts.ReceiptDir, receiptStaging)
	if err != nil {
		return "", fmt.Errorf("mirroring receipt store: %w", err)
	}

	manifest := &Manifest{
		CreatedAt:        s.clock.Now(),
		Reason:           reason,
		DatabaseFile:     databaseSnapshotName,
		DatabaseSHA256:   snapshotSum,
		ReceiptFileCount: receiptCount,
		ReceiptRoot:      defaultReceiptRoot,
	}
	if err := writeManifest(filepath.Join(stagingDir, manifestName), manifest); err != nil {
		return "", err
	}

	if err := s.archiver.Compress(stagingDir, tmpPath); err != nil {
		return "", fmt.Errorf("compressing staging directory: %w", err)
	}

	// Verify the finished archive, not just the staging tree: this catches
	// corruption introduced during compression itself.
	summary, err := s.VerifyFullArchive(tmpPath)
	if err != nil {
		return "", err
	}
	s.logger.Debug("full backup verified", "summary", summary.String())

	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("publishing archive: %w", err)
	}
	s.copyToExternal(finalPath)
	return filepath.Base(finalPath), nil
}

// BackupBeforeDangerousOperation takes a full backup tagged after the
// operation about to run, e.g. "pre-migration".
func (s *BackupService) BackupBeforeDangerousOperation(operation string) (string, error) {
	return s.CreateFullBackup("pre-"+operation, false)
}

// snapshotDatabase copies the live database file to dst, fails on a source
// vs destination checksum mismatch, and verifies the copy unless skipped.
// On any failure the destination is removed. Returns the copy's checksum.
//
// The live database may be written by the running application while the copy
// is in flight; the checksum match detects (not prevents) that race, which
// is safe because a failed attempt declares nothing backed up.
func (s *BackupService) snapshotDatabase(dst string, skipVerify bool) (string, error) {
	sourceSum, err := Checksum(s.opts.DatabasePath)
	if err != nil {
		return "", fmt.Errorf("hashing live database: %w", err)
	}

	if err := fsutil.CopyFile(s.opts.DatabasePath, dst); err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("copying live database: %w", err)
	}

	copySum, err := Checksum(dst)
	if err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("hashing snapshot: %w", err)
	}
	if copySum != sourceSum {
		os.Remove(dst)
		return "", fmt.Errorf("snapshot of %s: %w", s.opts.DatabasePath, ErrChecksumMismatch)
	}

	if !skipVerify {
		summary, err := s.inspector.Verify(dst)
		if err != nil {
			os.Remove(dst)
			return "", fmt.Errorf("verifying snapshot: %w", err)
		}
		s.logger.Debug("snapshot verified", "summary", summary.String())
	}

	return copySum, nil
}

// copyToExternal mirrors an artifact to the configured external directory.
// Failure is logged and never propagated: the primary backup is already safe.
func (s *BackupService) copyToExternal(path string) {
	if s.opts.ExternalDir == "" {
		return
	}
	dst := filepath.Join(s.opts.ExternalDir, filepath.Base(path))
	if err := fsutil.CopyFile(path, dst); err != nil {
		s.logger.Warn("external backup copy failed (primary backup OK)", "path", dst, "error", err)
		return
	}
	s.logger.Info("external backup copy created", "path", dst)
}
