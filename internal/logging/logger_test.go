package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func plainConfig(buf *bytes.Buffer, level Level) *Config {
	return &Config{
		Level:    level,
		Colored:  false,
		ShowTime: false,
		Output:   buf,
	}
}

func TestLogLevels(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{LevelFatal, "FATAL"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if tt.level.String() != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, tt.level.String())
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"fatal", LevelFatal},
		{"unknown", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLevel(%s) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLoggerOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(plainConfig(&buf, LevelDebug))

	logger.Info("test message")

	output := buf.String()
	if !strings.Contains(output, "INF") {
		t.Errorf("expected output to contain level, got: %s", output)
	}
	if !strings.Contains(output, "test message") {
		t.Errorf("expected output to contain 'test message', got: %s", output)
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(plainConfig(&buf, LevelWarn))

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	output := buf.String()
	if strings.Contains(output, "debug message") {
		t.Error("debug message should be filtered")
	}
	if strings.Contains(output, "info message") {
		t.Error("info message should be filtered")
	}
	if !strings.Contains(output, "warn message") {
		t.Error("warn message should appear")
	}
	if !strings.Contains(output, "error message") {
		t.Error("error message should appear")
	}
}

func TestLoggerWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(plainConfig(&buf, LevelDebug))

	logger.WithComponent("Router").Info("routing")

	output := buf.String()
	if !strings.Contains(output, "[Router] routing") {
		t.Errorf("expected output to contain '[Router] routing', got: %s", output)
	}
	if strings.Contains(output, "component=") {
		t.Errorf("component should not be repeated as a console field, got: %s", output)
	}
}

func TestLoggerWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New(plainConfig(&buf, LevelDebug))

	logger.WithField("user_id", "123").Info("with field")
	logger.WithFields(map[string]interface{}{
		"request_id": "abc-123",
		"method":     "GET",
	}).Info("with fields")

	output := buf.String()
	for _, want := range []string{"user_id=123", "request_id=abc-123", "method=GET"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q, got: %s", want, output)
		}
	}
}

func TestDerivedLoggerKeepsParentFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New(plainConfig(&buf, LevelDebug))

	logger.WithField("route", "groq").WithComponent("Dispatch").Info("sent")

	output := buf.String()
	if !strings.Contains(output, "route=groq") || !strings.Contains(output, "[Dispatch]") {
		t.Errorf("expected field and component, got: %s", output)
	}
}

func TestLoggerShowCaller(t *testing.T) {
	var buf bytes.Buffer
	cfg := plainConfig(&buf, LevelDebug)
	cfg.ShowCaller = true
	logger := New(cfg)

	logger.Info("caller test")

	if !strings.Contains(buf.String(), "logger_test.go:") {
		t.Errorf("expected output to contain caller info, got: %s", buf.String())
	}
}

func TestLoggerShowTime(t *testing.T) {
	var buf bytes.Buffer
	cfg := plainConfig(&buf, LevelDebug)
	cfg.ShowTime = true
	logger := New(cfg)

	logger.Info("test with time")

	if !strings.Contains(buf.String(), "20") {
		t.Errorf("expected output to contain timestamp, got: %s", buf.String())
	}
}

func TestLoggerFileOutput(t *testing.T) {
	var buf bytes.Buffer
	logPath := filepath.Join(t.TempDir(), "logs", "test.log")

	cfg := plainConfig(&buf, LevelDebug)
	cfg.FilePath = logPath
	logger := New(cfg)

	logger.WithField("route", "local_simple").Info("file log test")
	if err := logger.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	// File output is JSON.
	if !strings.Contains(string(content), `"message":"file log test"`) {
		t.Errorf("expected JSON message in log file, got: %s", string(content))
	}
	if !strings.Contains(string(content), `"route":"local_simple"`) {
		t.Errorf("expected JSON field in log file, got: %s", string(content))
	}
}

func TestGlobalLogger(t *testing.T) {
	prev := Global()
	defer SetGlobal(prev)

	var buf bytes.Buffer
	SetGlobal(New(plainConfig(&buf, LevelInfo)))

	Debug("should not appear")
	Info("global test message")

	output := buf.String()
	if strings.Contains(output, "should not appear") {
		t.Error("debug message should be filtered at info level")
	}
	if !strings.Contains(output, "global test message") {
		t.Errorf("expected output to contain message, got: %s", output)
	}
}

func TestDisableConsoleOutput(t *testing.T) {
	prev := Global()
	defer SetGlobal(prev)

	var buf bytes.Buffer
	SetGlobal(New(plainConfig(&buf, LevelInfo)))
	derived := Global().WithComponent("TUI")

	DisableConsoleOutput()
	derived.Info("hidden")
	if strings.Contains(buf.String(), "hidden") {
		t.Errorf("console output should be disabled for derived loggers, got: %s", buf.String())
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("expected LevelInfo, got %v", cfg.Level)
	}
	if !cfg.Colored {
		t.Error("expected Colored to be true")
	}
	if cfg.ShowCaller {
		t.Error("expected ShowCaller to be false")
	}
	if !cfg.ShowTime {
		t.Error("expected ShowTime to be true")
	}
}

func TestVerboseConfig(t *testing.T) {
	cfg := VerboseConfig()

	if cfg.Level != LevelDebug {
		t.Errorf("expected LevelDebug, got %v", cfg.Level)
	}
	if !cfg.ShowCaller {
		t.Error("expected ShowCaller to be true for verbose")
	}
}

func BenchmarkLoggerWithFields(b *testing.B) {
	var buf bytes.Buffer
	logger := New(plainConfig(&buf, LevelInfo))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.WithField("iteration", i).Info("benchmark message")
	}
}
