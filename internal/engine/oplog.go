package engine

// OperationLog records the outcome of every backup, restore, delete and
// drill attempt for operator tooling. Entries are append-only; the log is
// never rewritten by the application.
type OperationLog interface {
	// Record appends one entry. Failures to write are swallowed after
	// logging: the audit trail must never fail the operation it describes.
	Record(operation, detail string, success bool)

	// Tail returns the newest n entries, newest first.
	Tail(n int) ([]string, error)
}

// NopOperationLog discards all entries. Use in tests.
type NopOperationLog struct{}

func NewNopOperationLog() *NopOperationLog { return &NopOperationLog{} }

func (*NopOperationLog) Record(string, string, bool) {}

func (*NopOperationLog) Tail(int) ([]string, error) { return nil, nil }
