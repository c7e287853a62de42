package engine

// Archiver builds and unpacks full backup archives.
type Archiver interface {
	// Compress packs the contents of srcDir (recursively, preserving
	// relative paths) into a new archive at destPath.
	Compress(srcDir, destPath string) error

	// Extract unpacks the archive at srcPath into destDir. Entries that
	// would escape destDir are rejected.
	Extract(srcPath, destDir string) error
}
