package engine

import "fmt"

// DatabaseInspector provides read-only inspection of a bookkeeping database
// file. The engine never performs row-level writes; its only write access to
// the database is whole-file replacement.
type DatabaseInspector interface {
	// Verify checks that the file at path is a structurally valid database
	// containing the required tables. It returns a row-count summary on
	// success and an error wrapping ErrSourceMissing or ErrSchemaInvalid
	// on failure. Passing Verify is the sole gate a database file must
	// clear before being trusted as a restorable artifact.
	Verify(path string) (*DatabaseSummary, error)

	// LinkedReceipts returns the receipt references of all active invoice
	// rows: not deleted, with a non-empty receipt path.
	LinkedReceipts(path string) ([]LinkedReceipt, error)
}

// DatabaseSummary holds the row counts gathered during verification.
type DatabaseSummary struct {
	Invoices  int64
	Suppliers int64
}

func (s *DatabaseSummary) String() string {
	return fmt.Sprintf("valid database: %d invoices, %d suppliers", s.Invoices, s.Suppliers)
}

// LinkedReceipt is one invoice row's reference to a receipt file, identified
// by the path relative to the receipt store root.
type LinkedReceipt struct {
	InvoiceID   int64  `json:"invoice_id"`
	PJVNumber   string `json:"pjv_number"`
	ReceiptPath string `json:"receipt_path"`
}
