package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ledgersafe/internal/fsutil"
)

// ArchiveSummary describes a full backup archive that passed verification.
type ArchiveSummary struct {
	Database     DatabaseSummary
	ReceiptFiles int
	ReceiptRoot  string
}

func (s *ArchiveSummary) String() string {
	return fmt.Sprintf("valid full backup: %s; %d receipt files", s.Database.String(), s.ReceiptFiles)
}

// VerifyFullArchive checks that the archive at path is a readable zip
// containing a verifiable database snapshot, and counts the receipt files it
// mirrors. Extraction happens in a disposable temporary directory so a
// corrupt archive can never contaminate the live receipt store.
func (s *BackupService) VerifyFullArchive(path string) (*ArchiveSummary, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("archive %s: %w", path, ErrSourceMissing)
	}
	if !strings.EqualFold(filepath.Ext(path), ".zip") {
		return nil, fmt.Errorf("%s is not a full backup archive: %w", path, ErrArchiveCorrupt)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("archive %s is empty: %w", path, ErrArchiveCorrupt)
	}

	tmpDir, err := os.MkdirTemp(s.opts.BackupDir, "verify_full_")
	if err != nil {
		return nil, fmt.Errorf("creating verification directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	extractDir := filepath.Join(tmpDir, "extract")
	if err := s.archiver.Extract(path, extractDir); err != nil {
		return nil, fmt.Errorf("extracting %s: %w (%v)", path, ErrArchiveCorrupt, err)
	}

	manifest := readManifest(filepath.Join(extractDir, manifestName))

	snapshot := filepath.Join(extractDir, manifest.DatabaseFile)
	if _, err := os.Stat(snapshot); err != nil {
		return nil, fmt.Errorf("archive is missing its database snapshot: %w", ErrArchiveCorrupt)
	}

	dbSummary, err := s.inspector.Verify(snapshot)
	if err != nil {
		return nil, fmt.Errorf("database snapshot inside archive: %w", err)
	}

	receiptCount, err := fsutil.CountFiles(filepath.Join(extractDir, filepath.FromSlash(manifest.ReceiptRoot)))
	if err != nil {
		return nil, fmt.Errorf("counting receipt files: %w", err)
	}

	return &ArchiveSummary{
		Database:     *dbSummary,
		ReceiptFiles: receiptCount,
		ReceiptRoot:  manifest.ReceiptRoot,
	}, nil
}
