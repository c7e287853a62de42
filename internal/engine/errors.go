package engine

import "errors"

// Failure taxonomy for backup and restore operations. Call sites dispatch
// with errors.Is; every error returned by the services wraps one of these.
var (
	// ErrSourceMissing reports that the file an operation needs to read
	// (live database, named artifact) does not exist.
	ErrSourceMissing = errors.New("source file missing")

	// ErrChecksumMismatch reports that a copy's checksum differs from its
	// source. The copy has already been deleted when this is returned.
	ErrChecksumMismatch = errors.New("checksum mismatch after copy")

	// ErrSchemaInvalid reports that a database file is empty, structurally
	// invalid, or missing a required table.
	ErrSchemaInvalid = errors.New("database schema invalid")

	// ErrArchiveCorrupt reports that a full backup archive is empty, not a
	// readable zip, or missing its database snapshot.
	ErrArchiveCorrupt = errors.New("archive corrupt")

	// ErrVerifyAfterRestore reports that the live database failed
	// verification after a restore copy. The live state has already been
	// rolled back when this is returned.
	ErrVerifyAfterRestore = errors.New("verification failed after restore")

	// ErrSafetyBackup reports that the pre-restore safety backup could not
	// be created. The restore was aborted before any live mutation.
	ErrSafetyBackup = errors.New("pre-restore safety backup failed")

	// ErrDeleteRefused reports a deletion that would leave zero artifacts.
	ErrDeleteRefused = errors.New("refusing to delete the last backup")
)
