package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"macropulse/pkg/config"
)

func TestNew(t *testing.T) {
	cfg := &config.Config{
		Env:       "development",
		LogLevel:  "debug",
		LogFormat: "json",
	}

	log := New(cfg)
	if log == nil {
		t.Fatal("New() returned nil")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"unknown", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLogLevel(tt.input); got != tt.want {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestStructuredOutput(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "debug")

	log.WithField("indicator", "initial_claims").Info("fetched indicator")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}

	if entry["indicator"] != "initial_claims" {
		t.Errorf("expected indicator field, got %v", entry["indicator"])
	}

	if entry["message"] != "fetched indicator" {
		t.Errorf("expected message field, got %v", entry["message"])
	}
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "debug")

	log.WithFields(map[string]interface{}{
		"series_id": "ICSA",
		"count":     52,
	}).Debug("series loaded")

	out := buf.String()
	if !strings.Contains(out, "ICSA") {
		t.Errorf("expected series_id in output, got %s", out)
	}
	if !strings.Contains(out, "52") {
		t.Errorf("expected count in output, got %s", out)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "error")

	log.Debug("should not appear")
	log.Info("should not appear either")

	if buf.Len() != 0 {
		t.Errorf("expected no output below error level, got %s", buf.String())
	}

	log.Error("an error")
	if !strings.Contains(buf.String(), "an error") {
		t.Errorf("expected error output, got %s", buf.String())
	}
}
