package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil {
			t.Fatalf("ParseLevel(%q) unexpected error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestNew_TextToWriter(t *testing.T) {
	var buf bytes.Buffer
	log, closeFn, err := New(Options{Level: "info", Stderr: &buf})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer closeFn()

	log.Debug("hidden")
	log.Info("deleted", "path", "/h/p/node_modules")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug record should be filtered at info level")
	}
	if !strings.Contains(out, "path=/h/p/node_modules") {
		t.Errorf("missing attribute in %q", out)
	}
}

func TestNew_JSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "devsweep.log")
	log, closeFn, err := New(Options{Level: "debug", Format: "json", Path: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	log.Debug("scan finished", "artifacts", 3)
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("log file mode = %o, want 600", perm)
	}

	data, _ := os.ReadFile(path)
	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if rec["msg"] != "scan finished" {
		t.Errorf("msg = %v, want %q", rec["msg"], "scan finished")
	}
}

func TestNew_Discard(t *testing.T) {
	log, closeFn, err := New(Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer closeFn()
	if log.Enabled(t.Context(), slog.LevelError) {
		t.Error("logger without destinations should discard")
	}
}

func TestNew_BadFormat(t *testing.T) {
	if _, _, err := New(Options{Format: "xml", Stderr: &bytes.Buffer{}}); err == nil {
		t.Error("expected error for unknown format")
	}
}
