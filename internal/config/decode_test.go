package config

import (
	"strings"
	"testing"
	"time"
)

func TestDecodeSniffsFormatWithoutExtension(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		body string
	}{
		{"json", `{"logging": {"level": "debug"}}`},
		{"yaml", "logging:\n  level: debug\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			if err := decodeInto("synclog.conf", []byte(tt.body), cfg); err != nil {
				t.Fatalf("decodeInto: %v", err)
			}
			if cfg.Logging.Level != "debug" {
				t.Fatalf("level = %q, want debug", cfg.Logging.Level)
			}
			if !cfg.Capture.Enabled {
				t.Fatal("omitted keys lost their defaults")
			}
		})
	}
}

func TestDecodeRejectsNonStringYAMLKeys(t *testing.T) {
	t.Parallel()
	err := decodeInto("c.yaml", []byte("logging:\n  1: x\n"), Default())
	if err == nil {
		t.Fatal("expected error for integer mapping key")
	}
}

func TestDecodeEmptyFileKeepsDefaults(t *testing.T) {
	t.Parallel()
	cfg := Default()
	if err := decodeInto("c.yaml", []byte("  \n"), cfg); err != nil {
		t.Fatalf("decodeInto: %v", err)
	}
	if cfg.Logging.Dedup.Window != "2s" {
		t.Fatalf("dedup window = %q", cfg.Logging.Dedup.Window)
	}
}

func TestDurationAccessors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		get     func() (time.Duration, error)
		want    time.Duration
		wantErr string
	}{
		{"window default", DedupConfig{}.WindowDuration, DefaultDedupWindow, ""},
		{"window zero", DedupConfig{Window: "0s"}.WindowDuration, DefaultDedupWindow, ""},
		{"window set", DedupConfig{Window: "500ms"}.WindowDuration, 500 * time.Millisecond, ""},
		{"window bad", DedupConfig{Window: "soon"}.WindowDuration, 0, "logging.dedup.window"},
		{"retention unset", StorageConfig{}.RetentionDuration, 0, ""},
		{"retention set", StorageConfig{Retention: "168h"}.RetentionDuration, 168 * time.Hour, ""},
		{"retention negative", StorageConfig{Retention: "-1h"}.RetentionDuration, 0, "storage.retention"},
		{"busy default", StorageConfig{}.BusyTimeoutDuration, DefaultBusyTimeout, ""},
	}
	for _, tt := range tests {
		got, err := tt.get()
		if tt.wantErr != "" {
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("%s: err = %v, want %q", tt.name, err, tt.wantErr)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("%s: got %v, %v; want %v", tt.name, got, err, tt.want)
		}
	}
}
