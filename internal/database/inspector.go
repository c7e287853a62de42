// Package database provides read-only inspection of the bookkeeping SQLite
// database. The engine never performs row-level writes; the write side of
// this package (OpenConnection, migrations) exists for init-db and tests.
package database

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"ledgersafe/internal/engine"
)

// requiredTables must be present for a database file to be trusted as a
// restorable artifact.
var requiredTables = []string{"invoices", "suppliers"}

// SQLiteInspector implements engine.DatabaseInspector over SQLite files.
type SQLiteInspector struct{}

func NewSQLiteInspector() *SQLiteInspector { return &SQLiteInspector{} }

// Verify checks that the file at path is a structurally valid SQLite
// database containing the required tables, and returns their row counts.
func (SQLiteInspector) Verify(path string) (*engine.DatabaseSummary, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("database file %s: %w", path, engine.ErrSourceMissing)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("database file %s is empty: %w", path, engine.ErrSchemaInvalid)
	}

	db, err := openReadOnly(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type = 'table'")
	if err != nil {
		return nil, fmt.Errorf("%w: reading schema of %s: %v", engine.ErrSchemaInvalid, path, err)
	}
	tables := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%w: scanning schema: %v", engine.ErrSchemaInvalid, err)
		}
		tables[name] = true
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("%w: reading schema: %v", engine.ErrSchemaInvalid, err)
	}

	for _, required := range requiredTables {
		if !tables[required] {
			return nil, fmt.Errorf("%w: missing table %q", engine.ErrSchemaInvalid, required)
		}
	}

	summary := &engine.DatabaseSummary{}
	if err := db.QueryRow("SELECT COUNT(*) FROM invoices").Scan(&summary.Invoices); err != nil {
		return nil, fmt.Errorf("%w: counting invoices: %v", engine.ErrSchemaInvalid, err)
	}
	if err := db.QueryRow("SELECT COUNT(*) FROM suppliers").Scan(&summary.Suppliers); err != nil {
		return nil, fmt.Errorf("%w: counting suppliers: %v", engine.ErrSchemaInvalid, err)
	}
	return summary, nil
}

// LinkedReceipts returns the receipt references of all active invoice rows.
func (SQLiteInspector) LinkedReceipts(path string) ([]engine.LinkedReceipt, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("database file %s: %w", path, engine.ErrSourceMissing)
	}

	db, err := openReadOnly(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query(`
		SELECT id, pjv_number, fiscal_receipt_path
		FROM invoices
		WHERE is_deleted = 0
		  AND fiscal_receipt_path IS NOT NULL
		  AND TRIM(fiscal_receipt_path) != ''`)
	if err != nil {
		return nil, fmt.Errorf("%w: querying linked receipts: %v", engine.ErrSchemaInvalid, err)
	}
	defer rows.Close()

	var linked []engine.LinkedReceipt
	for rows.Next() {
		var rec engine.LinkedReceipt
		var pjv sql.NullString
		if err := rows.Scan(&rec.InvoiceID, &pjv, &rec.ReceiptPath); err != nil {
			return nil, fmt.Errorf("scanning linked receipt: %w", err)
		}
		rec.PJVNumber = pjv.String
		linked = append(linked, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading linked receipts: %w", err)
	}
	return linked, nil
}

// openReadOnly opens a SQLite file without write access: verification and
// drill checks must never mutate the file they inspect.
func openReadOnly(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

// Compile-time check that SQLiteInspector implements engine.DatabaseInspector
var _ engine.DatabaseInspector = SQLiteInspector{}
