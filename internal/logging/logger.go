// Package logging provides the structured logger used across switchboard.
// It wraps zerolog with a printf-style API, component and field scoping,
// and optional rotated JSON file output.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ═══════════════════════════════════════════════════════════════════════════════
// LOG LEVELS
// ═══════════════════════════════════════════════════════════════════════════════

// Level represents the severity of a log message.
type Level int

const (
	LevelDebug Level = iota // Detailed debugging information
	LevelInfo               // General operational information
	LevelWarn               // Warning conditions
	LevelError              // Error conditions
	LevelFatal              // Fatal errors (will exit)
)

// String returns the string representation of a log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// zerolog maps a Level onto the zerolog level scale.
func (l Level) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	case LevelFatal:
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// CONFIG
// ═══════════════════════════════════════════════════════════════════════════════

// Config configures the logger behavior.
type Config struct {
	Level      Level  // Minimum level to log
	FilePath   string // Optional file path for persistent JSON logs
	Colored    bool   // Enable colored console output
	ShowCaller bool   // Show file:line of caller
	ShowTime   bool   // Show timestamp
	Component  string // Component name prefix

	// Rotation settings for FilePath. Zero values use lumberjack defaults.
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int

	// Output overrides the console writer (stderr when nil).
	Output io.Writer
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		Level:      LevelInfo,
		Colored:    true,
		ShowTime:   true,
		MaxSizeMB:  20,
		MaxBackups: 5,
		MaxAgeDays: 14,
	}
}

// VerboseConfig returns a configuration for verbose troubleshooting.
func VerboseConfig() *Config {
	cfg := DefaultConfig()
	cfg.Level = LevelDebug
	cfg.ShowCaller = true
	return cfg
}

// ═══════════════════════════════════════════════════════════════════════════════
// LOGGER
// ═══════════════════════════════════════════════════════════════════════════════

// Logger is a leveled logger. Derived loggers (WithComponent, WithField)
// share the parent's outputs.
type Logger struct {
	zl         zerolog.Logger
	level      Level
	showCaller bool
	component  string
	console    *switchWriter
	file       io.WriteCloser
}

// switchWriter lets the console destination be swapped after loggers have
// been derived from it.
type switchWriter struct {
	mu sync.RWMutex
	w  io.Writer
}

func (s *switchWriter) Write(p []byte) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.w.Write(p)
}

func (s *switchWriter) set(w io.Writer) {
	s.mu.Lock()
	s.w = w
	s.mu.Unlock()
}

// New creates a new Logger instance.
func New(cfg *Config) *Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	console := &switchWriter{w: out}

	cw := zerolog.ConsoleWriter{
		Out:           console,
		NoColor:       !cfg.Colored,
		TimeFormat:    "2006-01-02 15:04:05.000",
		FieldsExclude: []string{"component"},
	}
	if !cfg.ShowTime {
		cw.PartsExclude = []string{zerolog.TimestampFieldName}
	}

	l := &Logger{
		level:      cfg.Level,
		showCaller: cfg.ShowCaller,
		component:  cfg.Component,
		console:    console,
	}

	var w io.Writer = cw
	if cfg.FilePath != "" {
		file, err := openRotating(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to open log file: %v\n", err)
		} else {
			l.file = file
			w = zerolog.MultiLevelWriter(cw, file)
		}
	}

	zctx := zerolog.New(w).Level(cfg.Level.zerolog()).With().Timestamp()
	if cfg.Component != "" {
		zctx = zctx.Str("component", cfg.Component)
	}
	l.zl = zctx.Logger()
	return l
}

// openRotating prepares a lumberjack writer for the configured file path.
func openRotating(cfg *Config) (io.WriteCloser, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	return &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}, nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// GLOBAL LOGGER
// ═══════════════════════════════════════════════════════════════════════════════

var (
	globalLogger *Logger
	globalMu     sync.RWMutex
)

func init() {
	globalLogger = New(DefaultConfig())
}

// SetGlobal sets the global logger instance.
func SetGlobal(l *Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = l
}

// Global returns the global logger instance.
func Global() *Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// DisableConsoleOutput stops console output for the global logger and every
// logger derived from it. File output continues. The chat TUI calls this so
// log lines do not corrupt the screen.
func DisableConsoleOutput() {
	Global().console.set(io.Discard)
}

// EnableConsoleOutput re-enables console output on stderr.
func EnableConsoleOutput() {
	Global().console.set(os.Stderr)
}

// ═══════════════════════════════════════════════════════════════════════════════
// LOGGER METHODS
// ═══════════════════════════════════════════════════════════════════════════════

// Close flushes and closes the rotating log file, if any.
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Zerolog exposes the underlying zerolog logger for libraries that take one.
func (l *Logger) Zerolog() zerolog.Logger {
	return l.zl
}

// Level returns the minimum level this logger emits.
func (l *Logger) Level() Level {
	return l.level
}

func (l *Logger) derive(zl zerolog.Logger, component string) *Logger {
	return &Logger{
		zl:         zl,
		level:      l.level,
		showCaller: l.showCaller,
		component:  component,
		console:    l.console,
		file:       l.file,
	}
}

// WithComponent returns a new logger with a component prefix.
func (l *Logger) WithComponent(name string) *Logger {
	return l.derive(l.zl.With().Str("component", name).Logger(), name)
}

// WithField returns a new logger with an additional field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.derive(l.zl.With().Interface(key, value).Logger(), l.component)
}

// WithFields returns a new logger with additional fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return l.derive(l.zl.With().Fields(fields).Logger(), l.component)
}

// ═══════════════════════════════════════════════════════════════════════════════
// LOG METHODS
// ═══════════════════════════════════════════════════════════════════════════════

func (l *Logger) log(level Level, format string, args ...interface{}) {
	if level < l.level {
		return
	}

	ev := l.zl.WithLevel(level.zerolog())
	if ev == nil {
		return
	}
	if l.showCaller {
		ev = ev.Caller(2)
	}

	msg := fmt.Sprintf(format, args...)
	if l.component != "" {
		msg = "[" + l.component + "] " + msg
	}
	ev.Msg(msg)
}

// Debug logs a debug message.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(LevelDebug, format, args...)
}

// Info logs an info message.
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(LevelInfo, format, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(LevelWarn, format, args...)
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(LevelError, format, args...)
}

// Fatal logs a fatal message and exits.
func (l *Logger) Fatal(format string, args ...interface{}) {
	l.log(LevelFatal, format, args...)
	os.Exit(1)
}

// ═══════════════════════════════════════════════════════════════════════════════
// GLOBAL LOG FUNCTIONS
// ═══════════════════════════════════════════════════════════════════════════════

// Debug logs a debug message using the global logger.
func Debug(format string, args ...interface{}) {
	Global().Debug(format, args...)
}

// Info logs an info message using the global logger.
func Info(format string, args ...interface{}) {
	Global().Info(format, args...)
}

// Warn logs a warning message using the global logger.
func Warn(format string, args ...interface{}) {
	Global().Warn(format, args...)
}

// Error logs an error message using the global logger.
func Error(format string, args ...interface{}) {
	Global().Error(format, args...)
}

// ═══════════════════════════════════════════════════════════════════════════════
// SPECIALIZED LOGGING
// ═══════════════════════════════════════════════════════════════════════════════

// Response logs a completed HTTP request.
func (l *Logger) Response(method, path string, status int, duration time.Duration) {
	l.WithFields(map[string]interface{}{
		"status":   status,
		"duration": duration.String(),
	}).Info("%s %s", method, path)
}

// ParseLevel parses a string into a Level.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	default:
		return LevelInfo
	}
}
