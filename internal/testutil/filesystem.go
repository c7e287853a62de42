package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteReceipt writes a receipt file at relPath under the receipt store
// root, creating parent directories.
func WriteReceipt(t *testing.T, root, relPath, content string) {
	t.Helper()

	path := filepath.Join(root, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create receipt directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write receipt: %v", err)
	}
}
