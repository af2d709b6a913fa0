package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewJSONCarriesComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: "json", Component: ComponentCache, Output: &buf})

	logger.Debug("hidden")
	logger.Info("visible", FieldOperation, OpLoad)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 record, got %d: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("record is not JSON: %v", err)
	}
	if rec[FieldComponent] != ComponentCache {
		t.Errorf("component = %v, want %s", rec[FieldComponent], ComponentCache)
	}
	if rec[FieldOperation] != OpLoad {
		t.Errorf("operation = %v, want %s", rec[FieldOperation], OpLoad)
	}
	if logger.Component() != ComponentCache {
		t.Errorf("Component() = %s", logger.Component())
	}
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	logger := FromContext(context.Background())
	if logger == nil || logger.Logger == nil {
		t.Fatal("expected a usable fallback logger")
	}

	var buf bytes.Buffer
	own := New(Config{Output: &buf})
	if got := FromContext(NewContext(context.Background(), own)); got != own {
		t.Error("expected the logger stored in the context")
	}
}

func TestLogHTTPEndLevels(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{200, "INFO"},
		{422, "WARN"},
		{503, "ERROR"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		logger := New(Config{Level: slog.LevelDebug, Output: &buf})
		ctx := NewContext(context.Background(), logger)
		r := httptest.NewRequest("POST", "/expenses?x=1", nil)

		NewStructuredLogger(logger).LogHTTPEnd(ctx, r, tt.status, 12, "10.0.0.1")

		out := buf.String()
		if !strings.Contains(out, "level="+tt.level) {
			t.Errorf("status %d: expected level %s in %q", tt.status, tt.level, out)
		}
		if !strings.Contains(out, "path=/expenses") || !strings.Contains(out, "client_ip=10.0.0.1") {
			t.Errorf("status %d: missing request fields in %q", tt.status, out)
		}
	}
}

func TestLogError(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Output: &buf})

	NewStructuredLogger(logger).LogError(context.Background(), "store down", errors.New("dial tcp"), "connection_error", ComponentStore, OpFetch)

	out := buf.String()
	for _, want := range []string{"level=ERROR", "dial tcp", "connection_error", OpFetch} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in %q", want, out)
		}
	}
}
