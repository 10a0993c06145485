package logging

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   LogLevel
		wantOK bool
	}{
		{"Debug", "debug", LevelDebug, true},
		{"Info", "info", LevelInfo, true},
		{"Warn", "warn", LevelWarn, true},
		{"Warning alias", "warning", LevelWarn, true},
		{"Error", "error", LevelError, true},
		{"Case insensitive", "DEBUG", LevelDebug, true},
		{"Whitespace", "  error ", LevelError, true},
		{"Unknown falls back to info", "verbose", LevelInfo, false},
		{"Empty falls back to info", "", LevelInfo, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseLevel(tt.input)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseLevel(%q) = (%v, %v), expected (%v, %v)", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestLogLevelConstants(t *testing.T) {
	levels := []LogLevel{LevelDebug, LevelInfo, LevelWarn, LevelError}
	for i := 0; i < len(levels)-1; i++ {
		if levels[i] >= levels[i+1] {
			t.Errorf("Log levels should be in ascending order: %v >= %v", levels[i], levels[i+1])
		}
	}
}

func TestLogLevelString(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "debug"},
		{LevelInfo, "info"},
		{LevelWarn, "warn"},
		{LevelError, "error"},
		{LogLevel(42), "unknown(42)"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.expected {
			t.Errorf("Expected %q, got %q", tt.expected, got)
		}
	}
}

func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	var buf bytes.Buffer
	prevOut := log.Writer()
	prevFlags := log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	defer func() {
		log.SetOutput(prevOut)
		log.SetFlags(prevFlags)
	}()
	fn()
	return buf.String()
}

func TestSetLevelFiltersMessages(t *testing.T) {
	prev := GetLevel()
	defer SetLevel(prev)

	SetLevel(LevelWarn)

	out := captureOutput(t, func() {
		Debug("debug message")
		Info("info message")
		Warn("warn message")
		Error("error message")
	})

	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Errorf("Expected debug and info to be filtered, got %q", out)
	}
	if !strings.Contains(out, "[WARN] warn message") {
		t.Errorf("Expected warn message in output, got %q", out)
	}
	if !strings.Contains(out, "[ERROR] error message") {
		t.Errorf("Expected error message in output, got %q", out)
	}
	if IsDebugEnabled() {
		t.Error("IsDebugEnabled should be false at warn level")
	}
}

func TestComponentPrefix(t *testing.T) {
	prev := GetLevel()
	defer SetLevel(prev)
	SetLevel(LevelDebug)

	c := Component("engine")
	out := captureOutput(t, func() {
		c.Debug("loading %s", "ffmpeg")
		c.Info("loaded")
		c.Warn("slow")
		c.Error("failed: %v", "boom")
	})

	for _, want := range []string{
		"[DEBUG] [engine] loading ffmpeg",
		"[INFO] [engine] loaded",
		"[WARN] [engine] slow",
		"[ERROR] [engine] failed: boom",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got %q", want, out)
		}
	}
}
