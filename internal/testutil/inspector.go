package testutil

import "ledgersafe/internal/engine"

// FailingInspector delegates to a real inspector except for one path, whose
// verification always fails. Used to simulate post-restore verification
// failure without corrupting files mid-operation.
type FailingInspector struct {
	Real     engine.DatabaseInspector
	FailPath string
	Err      error
}

func (f *FailingInspector) Verify(path string) (*engine.DatabaseSummary, error) {
	if path == f.FailPath {
		return nil, f.Err
	}
	return f.Real.Verify(path)
}

func (f *FailingInspector) LinkedReceipts(path string) ([]engine.LinkedReceipt, error) {
	return f.Real.LinkedReceipts(path)
}

// Compile-time check that FailingInspector implements engine.DatabaseInspector
var _ engine.DatabaseInspector = (*FailingInspector)(nil)
