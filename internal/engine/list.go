package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Kind distinguishes the two artifact types in the retention set.
type Kind string

const (
	KindDatabase Kind = "database"
	KindFull     Kind = "full"
)

// Entry is one artifact's parsed listing metadata.
type Entry struct {
	Filename  string
	Timestamp time.Time // zero when the filename does not parse
	Reason    string
	Kind      Kind
	Size      int64
}

// SizeMB returns the artifact size in megabytes, for display.
func (e Entry) SizeMB() float64 {
	return float64(e.Size) / (1024 * 1024)
}

// ListBackups returns every artifact in the backup directory, newest first.
// Filename ordering is chronological by construction, so sorting by name
// descending yields newest-first.
func (s *BackupService) ListBackups() ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.opts.BackupDir)
	if err != nil {
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	var entries []Entry
	for _, de := range dirEntries {
		if de.IsDir() || strings.HasPrefix(de.Name(), ".") {
			continue
		}
		ext := strings.ToLower(filepath.Ext(de.Name()))
		if ext != ".db" && ext != ".zip" {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		entries = append(entries, parseEntry(de.Name(), info.Size()))
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Filename > entries[j].Filename
	})
	return entries, nil
}

// parseEntry derives an artifact's metadata from its filename:
// <date>_<time>_<reason>.db or <date>_<time>_<reason>_full.zip.
// Unparseable names still list, with an unknown reason and zero timestamp.
func parseEntry(filename string, size int64) Entry {
	kind := KindDatabase
	if strings.ToLower(filepath.Ext(filename)) == ".zip" {
		kind = KindFull
	}

	entry := Entry{Filename: filename, Reason: "unknown", Kind: kind, Size: size}

	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	parts := strings.Split(stem, "_")
	if len(parts) < 3 {
		return entry
	}

	ts, err := time.ParseInLocation(filenameTimestampLayout, parts[0]+"_"+parts[1], time.Local)
	if err != nil {
		return entry
	}
	entry.Timestamp = ts

	reason := strings.Join(parts[2:], "_")
	if kind == KindFull {
		reason = strings.TrimSuffix(reason, "_full")
	}
	if reason != "" {
		entry.Reason = reason
	}
	return entry
}

// Stats summarizes the retention set for the operations dashboard.
type Stats struct {
	TotalBackups    int
	DatabaseBackups int
	FullBackups     int
	TotalSizeMB     float64
	OldestBackup    time.Time
	NewestBackup    time.Time
	MaxBackups      int
	ExternalEnabled bool
}

// GetBackupStats returns aggregate statistics over the retention set.
func (s *BackupService) GetBackupStats() (*Stats, error) {
	entries, err := s.ListBackups()
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		TotalBackups:    len(entries),
		MaxBackups:      s.opts.maxBackups(),
		ExternalEnabled: s.opts.ExternalDir != "",
	}
	for _, e := range entries {
		stats.TotalSizeMB += e.SizeMB()
		if e.Kind == KindFull {
			stats.FullBackups++
		} else {
			stats.DatabaseBackups++
		}
	}
	if len(entries) > 0 {
		stats.NewestBackup = entries[0].Timestamp
		stats.OldestBackup = entries[len(entries)-1].Timestamp
	}
	return stats, nil
}

// DeleteBackup removes a named artifact. It refuses when the artifact is the
// only one left: the retention set never reaches zero through deletion. The
// external mirror copy, if any, is removed best-effort.
func (s *BackupService) DeleteBackup(filename string) error {
	entries, err := s.ListBackups()
	if err != nil {
		return err
	}
	if len(entries) <= 1 {
		err := fmt.Errorf("%s is the only backup: %w", filename, ErrDeleteRefused)
		s.opLog.Record(opDelete, err.Error(), false)
		return err
	}

	path := filepath.Join(s.opts.BackupDir, filename)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("backup %s: %w", filename, ErrSourceMissing)
	}

	if err := os.Remove(path); err != nil {
		err = fmt.Errorf("deleting backup: %w", err)
		s.opLog.Record(opDelete, fmt.Sprintf("%s: %v", filename, err), false)
		return err
	}
	s.logger.Info("backup deleted", "filename", filename)
	s.opLog.Record(opDelete, filename, true)

	if s.opts.ExternalDir != "" {
		external := filepath.Join(s.opts.ExternalDir, filename)
		if err := os.Remove(external); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("external backup copy not removed", "path", external, "error", err)
		}
	}
	return nil
}

// CleanupOldBackups prunes the retention set down to the configured maximum,
// evicting oldest-first. Individual deletion failures are logged and do not
// abort the sweep; pruning is idempotent and safe to re-run after a crash.
// Returns the number of artifacts removed.
func (s *BackupService) CleanupOldBackups() int {
	entries, err := s.ListBackups()
	if err != nil {
		s.logger.Warn("retention sweep skipped", "error", err)
		return 0
	}

	max := s.opts.maxBackups()
	if len(entries) <= max {
		return 0
	}

	removed := 0
	for _, e := range entries[max:] {
		path := filepath.Join(s.opts.BackupDir, e.Filename)
		if err := os.Remove(path); err != nil {
			s.logger.Warn("failed to remove old backup", "filename", e.Filename, "error", err)
			continue
		}
		s.logger.Info("old backup removed", "filename", e.Filename)
		removed++
	}
	return removed
}
