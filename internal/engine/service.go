package engine

import (
	"fmt"
	"os"
	"time"
)

// DefaultMaxBackups bounds the retention set when Options leaves it unset.
const DefaultMaxBackups = 50

// filenameTimestampLayout orders artifact names chronologically when sorted
// lexically, which the retention set relies on.
const filenameTimestampLayout = "2006-01-02_15-04-05"

// Options holds the paths and limits a BackupService operates on. There is
// no global state: everything the service touches is named here.
type Options struct {
	// BackupDir is where artifacts, staging directories and temporary
	// extraction areas live.
	BackupDir string

	// DatabasePath is the live database file.
	DatabasePath string

	// ReceiptDir is the root of the live receipt file store.
	ReceiptDir string

	// ExternalDir, when non-empty, receives a best-effort copy of every
	// successfully created artifact.
	ExternalDir string

	// MaxBackups bounds the retention set. Zero means DefaultMaxBackups.
	MaxBackups int
}

func (o Options) maxBackups() int {
	if o.MaxBackups <= 0 {
		return DefaultMaxBackups
	}
	return o.MaxBackups
}

// BackupService creates, verifies, lists, restores and prunes backup
// artifacts of the live database and receipt store.
//
// Operations are synchronous and single-flight by convention: the service
// holds no internal lock across the staging, verify and swap sequence, so
// callers must not run two restores of the live state concurrently.
type BackupService struct {
	opts      Options
	inspector DatabaseInspector
	archiver  Archiver
	opLog     OperationLog
	logger    Logger
	clock     Clock
}

// NewBackupService creates a BackupService and ensures the backup directory
// exists.
func NewBackupService(opts Options, inspector DatabaseInspector, archiver Archiver, opLog OperationLog, logger Logger, clock Clock) (*BackupService, error) {
	if err := os.MkdirAll(opts.BackupDir, 0755); err != nil {
		return nil, fmt.Errorf("creating backup directory: %w", err)
	}
	if opts.ExternalDir != "" {
		if err := os.MkdirAll(opts.ExternalDir, 0755); err != nil {
			return nil, fmt.Errorf("creating external backup directory: %w", err)
		}
	}
	return &BackupService{
		opts:      opts,
		inspector: inspector,
		archiver:  archiver,
		opLog:     opLog,
		logger:    logger,
		clock:     clock,
	}, nil
}

// OperationLogTail returns the newest n operation log entries, newest first.
func (s *BackupService) OperationLogTail(n int) ([]string, error) {
	return s.opLog.Tail(n)
}

// timestamp formats the current clock time for artifact names.
func (s *BackupService) timestamp() string {
	return s.clock.Now().Format(filenameTimestampLayout)
}

// sameDay reports whether two times fall on the same calendar date.
func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
