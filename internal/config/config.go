// Package config reads and writes the TOML configuration file.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for ledgersafe.
type Config struct {
	DatabasePath string          `toml:"database_path"`
	LogDir       string          `toml:"log_dir"`
	Backup       BackupConfig    `toml:"backup"`
	Receipts     ReceiptConfig   `toml:"receipts"`
	Integrity    IntegrityConfig `toml:"integrity"`
}

// BackupConfig holds the backup directory layout and retention settings.
type BackupConfig struct {
	Dir string `toml:"dir"`

	// ExternalDir, when set, receives a best-effort copy of every artifact.
	ExternalDir string `toml:"external_dir,omitempty"`

	// MaxBackups bounds the retention set; 0 means the engine default (50).
	MaxBackups int `toml:"max_backups"`
}

// ReceiptConfig locates the receipt file store.
type ReceiptConfig struct {
	Dir string `toml:"dir"`
}

// IntegrityConfig locates the integrity audit's report directory and
// checksum baseline file.
type IntegrityConfig struct {
	ReportDir    string `toml:"report_dir"`
	BaselinePath string `toml:"baseline_path"`
}

// NewConfig creates a Config with the default layout under baseDir.
func NewConfig(baseDir string) *Config {
	backupDir := filepath.Join(baseDir, "backups")
	return &Config{
		DatabasePath: filepath.Join(baseDir, "invoice_management.db"),
		LogDir:       filepath.Join(baseDir, "log"),
		Backup: BackupConfig{
			Dir: backupDir,
		},
		Receipts: ReceiptConfig{
			Dir: filepath.Join(baseDir, "uploads", "fiscal_receipts"),
		},
		Integrity: IntegrityConfig{
			ReportDir:    filepath.Join(backupDir, "receipt_integrity_reports"),
			BaselinePath: filepath.Join(backupDir, "receipt_integrity_baseline.json"),
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided
// Config. It refuses to overwrite an existing file.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
