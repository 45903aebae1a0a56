package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFileOutputIsJSON(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "aureum.log")

	cfg := FileConfig{
		Path:       logFile,
		MaxSizeMB:  1,
		MaxBackups: 1,
		MaxAgeDays: 1,
	}
	if err := InitWithFileConfig("debug", cfg, false); err != nil {
		t.Fatalf("InitWithFileConfig() error = %v", err)
	}
	t.Cleanup(func() { _ = InitWithFileConfig("info", FileConfig{}, false) })

	Named("controller").Info("formation changed", zap.String("to", "EXPLODED"))
	Sync()

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}

	line := strings.TrimSpace(string(data))
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log line is not JSON: %q: %v", line, err)
	}
	if entry["msg"] != "formation changed" {
		t.Errorf("msg = %v, want %q", entry["msg"], "formation changed")
	}
	if entry["logger"] != "controller" {
		t.Errorf("logger = %v, want controller", entry["logger"])
	}
	if entry["to"] != "EXPLODED" {
		t.Errorf("to = %v, want EXPLODED", entry["to"])
	}
}

func TestDebugFilteredAtInfo(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "aureum.log")

	if err := InitWithFileConfig("info", DefaultFileConfig(logFile), false); err != nil {
		t.Fatalf("InitWithFileConfig() error = %v", err)
	}
	t.Cleanup(func() { _ = InitWithFileConfig("info", FileConfig{}, false) })

	Log.Debug("hidden")
	Log.Info("shown")
	Sync()

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(data), "hidden") {
		t.Error("debug entry written at info level")
	}
	if !strings.Contains(string(data), "shown") {
		t.Error("info entry missing")
	}
}

func TestNoCoresIsNop(t *testing.T) {
	if err := InitWithFileConfig("debug", FileConfig{}, false); err != nil {
		t.Fatalf("InitWithFileConfig() error = %v", err)
	}
	// Must not panic.
	Log.Info("dropped")
	Named("nop").Sugar().Infof("dropped %d", 1)
}
