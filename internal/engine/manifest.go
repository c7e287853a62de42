package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

const (
	// manifestName is the metadata entry inside every full backup archive.
	manifestName = "manifest.json"

	// databaseSnapshotName is the database snapshot entry inside every
	// full backup archive.
	databaseSnapshotName = "database.db"

	// defaultReceiptRoot is the archive-relative directory holding the
	// mirrored receipt store. Manifests record it so the layout can evolve
	// without breaking older archives.
	defaultReceiptRoot = "receipts"
)

// Manifest describes the contents of a full backup archive.
type Manifest struct {
	CreatedAt        time.Time `json:"created_at"`
	Reason           string    `json:"reason"`
	DatabaseFile     string    `json:"database_file"`
	DatabaseSHA256   string    `json:"database_sha256"`
	ReceiptFileCount int       `json:"receipt_file_count"`
	ReceiptRoot      string    `json:"receipt_root"`
}

func writeManifest(path string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

// readManifest loads the manifest from an extracted archive. A missing or
// unreadable manifest is not fatal: older archives carry the default layout.
func readManifest(path string) *Manifest {
	m := &Manifest{DatabaseFile: databaseSnapshotName, ReceiptRoot: defaultReceiptRoot}
	data, err := os.ReadFile(path)
	if err != nil {
		return m
	}
	if err := json.Unmarshal(data, m); err != nil {
		return &Manifest{DatabaseFile: databaseSnapshotName, ReceiptRoot: defaultReceiptRoot}
	}
	if m.DatabaseFile == "" {
		m.DatabaseFile = databaseSnapshotName
	}
	if m.ReceiptRoot == "" {
		m.ReceiptRoot = defaultReceiptRoot
	}
	return m
}
