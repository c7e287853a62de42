// Package oplog implements the append-only operation log consumed by
// operator tooling.
package oplog

import (
	"fmt"
	"os"
	"strings"

	"ledgersafe/internal/engine"
)

// entryTimestampLayout matches the operator tooling's line parser.
const entryTimestampLayout = "2006-01-02 15:04:05"

// FileLog appends one line per operation to a text file. Lines are never
// rewritten or deleted by the application.
type FileLog struct {
	path   string
	clock  engine.Clock
	logger engine.Logger
}

// NewFileLog creates an operation log backed by the file at path. The file
// is created on first write.
func NewFileLog(path string, clock engine.Clock, logger engine.Logger) *FileLog {
	return &FileLog{path: path, clock: clock, logger: logger}
}

// Record appends one entry:
//
//	[2026-08-26 09:15:02] [SUCCESS] CREATE_DB: 2026-08-26_09-15-02_manual.db (manual)
//
// Write failures are logged and swallowed: the audit trail must never fail
// the operation it describes.
func (l *FileLog) Record(operation, detail string, success bool) {
	status := "SUCCESS"
	if !success {
		status = "FAILED"
	}
	line := fmt.Sprintf("[%s] [%s] %s: %s\n",
		l.clock.Now().Format(entryTimestampLayout), status, operation, detail)

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		l.logger.Error("opening operation log failed", "path", l.path, "error", err)
		return
	}
	defer f.Close()

	if _, err := f.WriteString(line); err != nil {
		l.logger.Error("writing operation log failed", "path", l.path, "error", err)
	}
}

// Tail returns the newest n entries, newest first. A missing log file reads
// as empty.
func (l *FileLog) Tail(n int) ([]string, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading operation log: %w", err)
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return nil, nil
	}
	if n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}

	// Newest first.
	out := make([]string, 0, len(lines))
	for i := len(lines) - 1; i >= 0; i-- {
		out = append(out, lines[i])
	}
	return out, nil
}

// Compile-time check that FileLog implements engine.OperationLog
var _ engine.OperationLog = (*FileLog)(nil)
