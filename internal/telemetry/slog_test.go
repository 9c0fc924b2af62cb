package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, "json", "info").Info("record created", "resource", "department", "id", 7)

	var obj map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &obj); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if obj["msg"] != "record created" || obj["resource"] != "department" {
		t.Errorf("unexpected record: %v", obj)
	}
	if _, ok := obj["source"]; ok {
		t.Error("source should only be added at debug level")
	}
}

func TestNewLogger_TextAndFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "text", "warn")
	logger.Info("suppressed")
	logger.Warn("kept", "env", "development")

	out := buf.String()
	if strings.Contains(out, "suppressed") {
		t.Error("info record appeared at warn level")
	}
	if !strings.Contains(out, "env=development") {
		t.Errorf("text output missing attribute: %q", out)
	}
}

func TestNewLogger_DebugAddsSource(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, "json", "debug").Debug("walk")
	if !strings.Contains(buf.String(), `"source"`) {
		t.Errorf("debug output missing source: %s", buf.String())
	}
}

func TestSetupLogger_InstallsDefault(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	SetupLogger("json", "error")
	if slog.Default().Enabled(context.Background(), slog.LevelInfo) {
		t.Error("default logger should filter info at error level")
	}
}
