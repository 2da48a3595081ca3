package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/wonny/xcelerator/pkg/config"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to parse log output %q: %v", buf.String(), err)
	}
	return entry
}

func jsonLogger(buf *bytes.Buffer, level string) *Logger {
	return NewWithWriter(&config.Config{Env: "test", LogLevel: level, LogFormat: "json"}, buf)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"invalid", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := jsonLogger(&buf, "warn")

	log.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("Expected info to be filtered at warn level, got %s", buf.String())
	}

	log.Warn("shown")
	entry := decode(t, &buf)
	if entry["level"] != "warn" || entry["message"] != "shown" {
		t.Errorf("Unexpected entry %v", entry)
	}
	if entry["env"] != "test" {
		t.Errorf("Expected env field, got %v", entry["env"])
	}
}

func TestFormattedMethods(t *testing.T) {
	var buf bytes.Buffer
	log := jsonLogger(&buf, "debug")

	tests := []struct {
		name      string
		logFunc   func()
		wantMsg   string
		wantLevel string
	}{
		{"debugf", func() { log.Debugf("symbol: %s, qty: %d", "TCS", 3) }, "symbol: TCS, qty: 3", "debug"},
		{"infof", func() { log.Infof("rebalances: %d", 12) }, "rebalances: 12", "info"},
		{"warnf", func() { log.Warnf("skipped %s", "INFY") }, "skipped INFY", "warn"},
		{"errorf", func() { log.Errorf("fetch failed: %s", "timeout") }, "fetch failed: timeout", "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			tt.logFunc()

			entry := decode(t, &buf)
			if entry["level"] != tt.wantLevel {
				t.Errorf("Expected level %q, got %q", tt.wantLevel, entry["level"])
			}
			if entry["message"] != tt.wantMsg {
				t.Errorf("Expected message %q, got %q", tt.wantMsg, entry["message"])
			}
		})
	}
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	log := jsonLogger(&buf, "info")

	log.WithComponent("planner").WithFields(map[string]interface{}{
		"symbol": "RELIANCE",
		"qty":    10,
	}).Info("order planned")

	entry := decode(t, &buf)
	if entry["component"] != "planner" {
		t.Errorf("Expected component planner, got %v", entry["component"])
	}
	if entry["symbol"] != "RELIANCE" {
		t.Errorf("Expected symbol RELIANCE, got %v", entry["symbol"])
	}
	if entry["qty"] != float64(10) {
		t.Errorf("Expected qty 10, got %v", entry["qty"])
	}
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	log := jsonLogger(&buf, "info")

	log.WithError(errors.New("connection refused")).Error("price fetch failed")

	entry := decode(t, &buf)
	if entry["error"] != "connection refused" {
		t.Errorf("Expected error field, got %v", entry["error"])
	}
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&config.Config{Env: "test", LogLevel: "info", LogFormat: "console"}, &buf)

	log.Info("test message")
	if !strings.Contains(buf.String(), "test message") {
		t.Errorf("Expected output to contain 'test message', got: %s", buf.String())
	}
}

func TestNop(t *testing.T) {
	log := Nop()
	log.WithField("k", "v").Error("discarded")
}
