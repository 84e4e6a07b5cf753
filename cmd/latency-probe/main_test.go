// ABOUTME: Tests for the latency probe
// ABOUTME: Runs the probe against virtual devices
package main

import (
	"strings"
	"testing"
	"time"
)

func TestRun(t *testing.T) {
	*backendName = "virtual"
	*count = 2
	*toneLen = 20 * time.Millisecond
	*pause = time.Millisecond
	*timeout = time.Second

	tests := []struct {
		name    string
		device  int
		wantErr string
	}{
		{"virtual speakers", 0, ""},
		{"unknown device", 99, "no successful measurements"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			*deviceID = tt.device
			err := run()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("run failed: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected %q error, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestRunUnknownBackend(t *testing.T) {
	*backendName = "jack"
	defer func() { *backendName = "virtual" }()

	if err := run(); err == nil || !strings.Contains(err.Error(), "backend error") {
		t.Fatalf("expected backend error, got %v", err)
	}
}
