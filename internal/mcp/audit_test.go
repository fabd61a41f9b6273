package mcp

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestAuditLogger_NilSafety(t *testing.T) {
	var logger *AuditLogger
	logger.Log(AuditEntry{Tool: "test"})
	if err := logger.Close(); err != nil {
		t.Errorf("Close() on nil logger returned error: %v", err)
	}
	if logger.Path() != "" {
		t.Errorf("Path() on nil logger = %q", logger.Path())
	}
}

func TestAuditLogger_WritesJSONL(t *testing.T) {
	dir := t.TempDir()
	logger := NewAuditLogger(dir)
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}

	now := time.Now()
	logger.Log(AuditEntry{
		Timestamp:  now,
		Tool:       "kuramap_sync",
		DurationMs: 42,
		Status:     "success",
		Params:     map[string]string{"rows": "3"},
	})
	if err := logger.Close(); err != nil {
		t.Fatal(err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, AuditFile))
	if err != nil {
		t.Fatalf("reading audit log: %v", err)
	}
	var entry AuditEntry
	if err := json.Unmarshal(data[:len(data)-1], &entry); err != nil {
		t.Fatalf("parsing audit entry: %v", err)
	}
	if entry.Tool != "kuramap_sync" || entry.DurationMs != 42 || entry.Params["rows"] != "3" {
		t.Errorf("entry = %+v", entry)
	}
	if !entry.Timestamp.Equal(now) {
		t.Errorf("timestamp = %v, want %v", entry.Timestamp, now)
	}

	info, err := os.Stat(logger.Path())
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm&0077 != 0 {
		t.Errorf("audit log permissions = %o, want owner-only", perm)
	}
}

func TestAuditLogger_Concurrent(t *testing.T) {
	dir := t.TempDir()
	logger := NewAuditLogger(dir)
	defer logger.Close()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Log(AuditEntry{Tool: "kuramap_runs", DurationMs: int64(i), Status: "success"})
		}()
	}
	wg.Wait()
	logger.Close()

	data, err := os.ReadFile(filepath.Join(dir, AuditFile))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 20 {
		t.Fatalf("got %d lines, want 20", len(lines))
	}
	for i, line := range lines {
		var e AuditEntry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Errorf("line %d is not valid JSON: %v", i, err)
		}
	}
}

func TestSanitizeToolParams(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]any
		want   map[string]string
	}{
		{
			name:   "nil params",
			params: nil,
			want:   nil,
		},
		{
			name:   "safe values",
			params: map[string]any{"rows": 4, "coupling_mode": "feature_driven", "seed": uint64(7)},
			want:   map[string]string{"rows": "4", "coupling_mode": "feature_driven", "seed": "7", "_param_count": "3"},
		},
		{
			name:   "presence only",
			params: map[string]any{"data": 50, "id": "abc"},
			want:   map[string]string{"data": "(set)", "id": "(set)", "_param_count": "2"},
		},
		{
			name:   "unknown dropped",
			params: map[string]any{"secret": "x"},
			want:   map[string]string{"_param_count": "1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizeToolParams(tt.params)
			if tt.want == nil {
				if got != nil {
					t.Errorf("got %v, want nil", got)
				}
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}
