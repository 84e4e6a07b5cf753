// ABOUTME: Tests for module loggers and log output routing
package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func resetState() {
	mutex.Lock()
	moduleLoggers = make(map[string]*slog.Logger)
	moduleLevelVars = make(map[string]*slog.LevelVar)
	isInitialized = false
	globalConfig = Config{}
	mutex.Unlock()
}

func TestModuleLevelOverride(t *testing.T) {
	resetState()
	var buf bytes.Buffer

	Initialize(Config{
		Level:  "info",
		Format: "text",
		Modules: map[string]string{
			"calibrate": "debug",
			"dispatch":  "warn",
		},
		Output: &buf,
	})

	tests := []struct {
		module    string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"calibrate", true, true, true},
		{"dispatch", false, false, true},
		{"registry", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			handler := GetLogger(tt.module).Handler()

			if got := handler.Enabled(context.Background(), slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("module %q: Debug enabled = %v, want %v", tt.module, got, tt.wantDebug)
			}
			if got := handler.Enabled(context.Background(), slog.LevelInfo); got != tt.wantInfo {
				t.Errorf("module %q: Info enabled = %v, want %v", tt.module, got, tt.wantInfo)
			}
			if got := handler.Enabled(context.Background(), slog.LevelWarn); got != tt.wantWarn {
				t.Errorf("module %q: Warn enabled = %v, want %v", tt.module, got, tt.wantWarn)
			}
		})
	}
}

func TestLoggerWritesToConfiguredOutput(t *testing.T) {
	resetState()
	var buf bytes.Buffer

	Initialize(Config{Level: "debug", Format: "json", Output: &buf})
	GetLogger("dispatch").Debug("task streaming", "device_id", 3)

	output := buf.String()
	if !strings.Contains(output, `"msg":"task streaming"`) {
		t.Errorf("message not found in JSON output: %s", output)
	}
	if !strings.Contains(output, `"module":"dispatch"`) {
		t.Errorf("module attribute missing: %s", output)
	}
}

func TestGetLoggerBeforeInitialize(t *testing.T) {
	resetState()

	before := GetLogger("calibrate")
	if before.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("logger created before Initialize should default to info")
	}

	var buf bytes.Buffer
	Initialize(Config{
		Level:   "info",
		Modules: map[string]string{"calibrate": "debug"},
		Output:  &buf,
	})

	after := GetLogger("calibrate")
	if !after.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("logger should pick up module level after Initialize")
	}
	after.Info("after init")
	if !strings.Contains(buf.String(), "after init") {
		t.Error("logger should write to the configured output after Initialize")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want *slog.Level
	}{
		{"debug", levelPtr(slog.LevelDebug)},
		{"INFO", levelPtr(slog.LevelInfo)},
		{"warning", levelPtr(slog.LevelWarn)},
		{"error", levelPtr(slog.LevelError)},
		{"loud", nil},
	}

	for _, tt := range tests {
		got := parseLevel(tt.in)
		if (got == nil) != (tt.want == nil) || (got != nil && *got != *tt.want) {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func levelPtr(l slog.Level) *slog.Level { return &l }

func TestOpenOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "multiplay.log")

	w, closeFn, err := OpenOutput(path, true)
	if err != nil {
		t.Fatalf("OpenOutput failed: %v", err)
	}
	if _, err := w.Write([]byte("tui line\n")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := closeFn(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "tui line\n" {
		t.Errorf("unexpected log file content: %q", data)
	}

	if w, _, _ := OpenOutput("", false); w != os.Stdout {
		t.Error("expected stdout without a log file")
	}

	if _, _, err := OpenOutput(filepath.Join(t.TempDir(), "missing", "x.log"), false); err == nil {
		t.Error("expected error for unwritable log path")
	}
}
