package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"carelog/factstore/pkg/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{input: "debug", want: slog.LevelDebug},
		{input: "info", want: slog.LevelInfo},
		{input: "", want: slog.LevelInfo},
		{input: "warn", want: slog.LevelWarn},
		{input: "warning", want: slog.LevelWarn},
		{input: "ERROR", want: slog.LevelError},
		{input: "trace", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseLevel(%q) should fail", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseLevel(%q): %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestSetupJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Setup(config.LoggingConfig{Level: "info", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}

	logger.Info("server started", "address", "127.0.0.1:8090")
	logger.Debug("should be filtered")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d log lines, want 1: %s", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["msg"] != "server started" || entry["address"] != "127.0.0.1:8090" {
		t.Errorf("entry = %v", entry)
	}
}

func TestSetupErrors(t *testing.T) {
	if _, err := Setup(config.LoggingConfig{Level: "trace"}, nil); err == nil {
		t.Error("unknown level should fail")
	}
	if _, err := Setup(config.LoggingConfig{Level: "info", Format: "xml"}, nil); err == nil {
		t.Error("unknown format should fail")
	}
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Setup(config.LoggingConfig{Level: "info", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}

	logger.Debug("before")
	SetLevel("debug")
	logger.Debug("after")
	SetLevel("not-a-level")
	logger.Debug("still debug")

	out := buf.String()
	if strings.Contains(out, `"msg":"before"`) {
		t.Error("debug line leaked before the level change")
	}
	if !strings.Contains(out, `"msg":"after"`) {
		t.Error("debug line missing after SetLevel(debug)")
	}
	// An unknown level leaves the previous level in place.
	if !strings.Contains(out, `"msg":"still debug"`) {
		t.Error("unknown level should not change verbosity")
	}
}
