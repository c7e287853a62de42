// Package app is the application layer between the CLI and the engine
// services. It constructs all dependencies from config and exposes the
// administrative operations one-to-one.
package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ledgersafe/internal/archive"
	"ledgersafe/internal/config"
	"ledgersafe/internal/database"
	"ledgersafe/internal/database/migrations"
	"ledgersafe/internal/engine"
	"ledgersafe/internal/oplog"
)

// operationLogName is the operation log file inside the backup directory.
const operationLogName = "backup_log.txt"

// App wires the configured paths into the backup and integrity services.
// The caller must call Close when done.
type App struct {
	cfg       *config.Config
	backup    *engine.BackupService
	integrity *engine.ReceiptIntegrityService
	idgen     engine.IDGenerator
	logger    engine.Logger
	logFile   *os.File
}

// NewApp creates a fully wired App from the given config.
// operation identifies the CLI command being run (e.g. "CreateBackup").
func NewApp(cfg *config.Config, operation string) (*App, error) {
	clock := engine.RealClock{}

	opID := clock.Now().UTC().Format("20060102T150405Z")
	slogger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger.With("op", operation)}

	inspector := database.NewSQLiteInspector()
	archiver := archive.NewZipArchiver()
	opLog := oplog.NewFileLog(filepath.Join(cfg.Backup.Dir, operationLogName), clock, logger)

	backup, err := engine.NewBackupService(engine.Options{
		BackupDir:    cfg.Backup.Dir,
		DatabasePath: cfg.DatabasePath,
		ReceiptDir:   cfg.Receipts.Dir,
		ExternalDir:  cfg.Backup.ExternalDir,
		MaxBackups:   cfg.Backup.MaxBackups,
	}, inspector, archiver, opLog, logger, clock)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating backup service: %w", err)
	}

	integrity, err := engine.NewReceiptIntegrityService(engine.IntegrityOptions{
		DatabasePath: cfg.DatabasePath,
		ReceiptDir:   cfg.Receipts.Dir,
		ReportDir:    cfg.Integrity.ReportDir,
		BaselinePath: cfg.Integrity.BaselinePath,
	}, inspector, logger, clock, engine.UUIDGenerator{})
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating integrity service: %w", err)
	}

	return &App{
		cfg:       cfg,
		backup:    backup,
		integrity: integrity,
		idgen:     engine.UUIDGenerator{},
		logger:    logger,
		logFile:   logFile,
	}, nil
}

// Close releases the log file.
func (a *App) Close() error {
	if a.logFile != nil {
		return a.logFile.Close()
	}
	return nil
}

// Startup runs the self-healing backup pass and the once-per-day integrity
// audit, in that order. It is what the host application calls on boot.
func (a *App) Startup() error {
	if err := a.backup.AutoBackupOnStart(); err != nil {
		return fmt.Errorf("startup backup pass: %w", err)
	}
	if err := a.integrity.AutoCheckOnStart(); err != nil {
		return fmt.Errorf("startup integrity check: %w", err)
	}
	return nil
}

// CreateBackup takes a database-only or full backup with the given reason.
func (a *App) CreateBackup(reason string, full, skipVerify bool) (string, error) {
	if reason == "" {
		reason = "manual"
	}
	if full {
		return a.backup.CreateFullBackup(reason, skipVerify)
	}
	return a.backup.CreateBackup(reason, skipVerify)
}

// Restore restores a named artifact, choosing the database-only or full path
// by the artifact kind. After a successful full restore the integrity
// baseline is recomputed: the receipt store was legitimately replaced.
func (a *App) Restore(filename string) error {
	if strings.EqualFold(filepath.Ext(filename), ".zip") {
		if err := a.backup.RestoreFullBackup(filename); err != nil {
			return err
		}
		if err := a.integrity.UpdateBaseline(); err != nil {
			a.logger.Warn("baseline refresh after restore failed", "error", err)
		}
		return nil
	}
	return a.backup.RestoreBackup(filename)
}

// ListBackups returns the retention set, newest first.
func (a *App) ListBackups() ([]engine.Entry, error) {
	return a.backup.ListBackups()
}

// BackupStats returns aggregate statistics over the retention set.
func (a *App) BackupStats() (*engine.Stats, error) {
	return a.backup.GetBackupStats()
}

// DeleteBackup removes a named artifact, respecting the last-artifact guard.
func (a *App) DeleteBackup(filename string) error {
	return a.backup.DeleteBackup(filename)
}

// PruneBackups applies retention and returns the number of artifacts removed.
func (a *App) PruneBackups() int {
	return a.backup.CleanupOldBackups()
}

// OperationLog returns the newest n operation log entries, newest first.
func (a *App) OperationLog(n int) ([]string, error) {
	return a.backup.OperationLogTail(n)
}

// RunRestoreDrill rehearses a restore of the named (or most recent) full
// backup without mutating production state.
func (a *App) RunRestoreDrill(filename string) (*engine.DrillReport, error) {
	return a.backup.RunRestoreDrill(filename, a.idgen)
}

// RunIntegrityCheck audits the receipt store against the database.
func (a *App) RunIntegrityCheck(updateBaseline, saveReport bool) (*engine.IntegrityReport, error) {
	return a.integrity.Run(updateBaseline, saveReport)
}

// IntegrityReports lists persisted integrity reports, newest first.
func (a *App) IntegrityReports(limit int) ([]engine.ReportListing, error) {
	return a.integrity.ListReports(limit)
}

// InitDatabase creates the live database file with the bookkeeping schema.
// Migrating an existing database is a schema mutation, so a full backup is
// taken first.
func (a *App) InitDatabase() error {
	if err := os.MkdirAll(filepath.Dir(a.cfg.DatabasePath), 0755); err != nil {
		return fmt.Errorf("creating database directory: %w", err)
	}

	if _, err := os.Stat(a.cfg.DatabasePath); err == nil {
		if _, err := a.backup.BackupBeforeDangerousOperation("init-db"); err != nil {
			return fmt.Errorf("backup before migration: %w", err)
		}
	}

	db, err := database.OpenConnection(a.cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrations.MigrateUp(db); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	if err := migrations.CheckDBMigrationStatus(db); err != nil {
		return fmt.Errorf("schema check after migration: %w", err)
	}
	a.logger.Info("database initialized", "path", a.cfg.DatabasePath)
	return nil
}
