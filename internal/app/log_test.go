package app

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"
)

func TestLogHandler(t *testing.T) {
	recordTime := time.Date(2026, 8, 26, 9, 15, 2, 0, time.UTC)

	tests := []struct {
		name  string
		opID  string
		level slog.Level
		msg   string
		args  []any
		want  string
	}{
		{
			name:  "info with no attrs",
			opID:  "20260826T091502Z",
			level: slog.LevelInfo,
			msg:   "database backup created",
			want:  "2026-08-26T09:15:02Z\tINFO\t20260826T091502Z\tdatabase backup created\n",
		},
		{
			name:  "error with attrs",
			opID:  "20260826T091502Z",
			level: slog.LevelError,
			msg:   "restore failed",
			args:  []any{"filename", "x.db", "attempt", 2},
			want:  "2026-08-26T09:15:02Z\tERROR\t20260826T091502Z\trestore failed\tfilename=x.db\tattempt=2\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := &logHandler{w: &buf, opID: tt.opID}

			r := slog.NewRecord(recordTime, tt.level, tt.msg, 0)
			r.Add(tt.args...)
			if err := h.Handle(context.Background(), r); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}

			if got := buf.String(); got != tt.want {
				t.Errorf("log line = %q, want %q", got, tt.want)
			}
		})
	}

	t.Run("WithAttrs prepends preset attrs", func(t *testing.T) {
		var buf bytes.Buffer
		var h slog.Handler = &logHandler{w: &buf, opID: "op-1"}
		h = h.WithAttrs([]slog.Attr{slog.String("op", "CreateBackup")})

		r := slog.NewRecord(recordTime, slog.LevelInfo, "started", 0)
		r.Add("reason", "manual")
		if err := h.Handle(context.Background(), r); err != nil {
			t.Fatalf("Handle() error = %v", err)
		}

		want := "2026-08-26T09:15:02Z\tINFO\top-1\tstarted\top=CreateBackup\treason=manual\n"
		if got := buf.String(); got != want {
			t.Errorf("log line = %q, want %q", got, want)
		}
	})
}
