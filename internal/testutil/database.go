package testutil

import (
	"testing"

	"ledgersafe/internal/database"
	"ledgersafe/internal/database/migrations"
)

// FixtureInvoice is one invoice row to seed into a fixture database.
type FixtureInvoice struct {
	PJVNumber   string
	ReceiptPath string
	Deleted     bool
}

// CreateFixtureDatabase writes a bookkeeping database at path with the
// current schema, one supplier, and the given invoices.
func CreateFixtureDatabase(t *testing.T, path string, invoices ...FixtureInvoice) {
	t.Helper()

	db, err := database.OpenConnection(path)
	if err != nil {
		t.Fatalf("failed to open fixture database: %v", err)
	}
	defer db.Close()

	if err := migrations.MigrateUp(db); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}

	if _, err := db.Exec(`INSERT INTO suppliers (name) VALUES ('Fixture Supplier Ltd')`); err != nil {
		t.Fatalf("failed to insert supplier: %v", err)
	}

	for i, inv := range invoices {
		deleted := 0
		if inv.Deleted {
			deleted = 1
		}
		_, err := db.Exec(
			`INSERT INTO invoices (supplier_id, invoice_number, pjv_number, fiscal_receipt_path, is_deleted)
			 VALUES (1, ?, ?, ?, ?)`,
			"INV-"+itoa4(i+1), inv.PJVNumber, inv.ReceiptPath, deleted)
		if err != nil {
			t.Fatalf("failed to insert invoice: %v", err)
		}
	}
}

// InsertInvoice adds one more invoice to an existing fixture database,
// mutating the file so checksum-based tests can observe the change.
func InsertInvoice(t *testing.T, path string, inv FixtureInvoice) {
	t.Helper()

	db, err := database.OpenConnection(path)
	if err != nil {
		t.Fatalf("failed to open fixture database: %v", err)
	}
	defer db.Close()

	deleted := 0
	if inv.Deleted {
		deleted = 1
	}
	_, err = db.Exec(
		`INSERT INTO invoices (supplier_id, pjv_number, fiscal_receipt_path, is_deleted)
		 VALUES (1, ?, ?, ?)`,
		inv.PJVNumber, inv.ReceiptPath, deleted)
	if err != nil {
		t.Fatalf("failed to insert invoice: %v", err)
	}
}
