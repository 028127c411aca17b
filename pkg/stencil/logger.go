package stencil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

type LogLevel int

const (
	LogDebug LogLevel = iota
	LogInfo
	LogWarn
	LogError
	LogOff
)

func (l LogLevel) String() string {
	switch l {
	case LogDebug:
		return "DEBUG"
	case LogInfo:
		return "INFO"
	case LogWarn:
		return "WARN"
	case LogError:
		return "ERROR"
	case LogOff:
		return "OFF"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogInfo:
		return slog.LevelInfo
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		// above every level slog emits
		return slog.LevelError + 100
	}
}

type Fields map[string]interface{}

// Logger is a leveled logger with structured fields, backed by log/slog.
// Loggers derived with WithField share their parent's level.
type Logger struct {
	handler slog.Handler
	level   *slog.LevelVar
	attrs   []any
	mode    *levelMode
}

type levelMode struct {
	mu    sync.Mutex
	level LogLevel
}

var (
	globalLogger     *Logger
	globalLoggerOnce sync.Once
	globalLoggerMu   sync.RWMutex
)

func initGlobalLogger() {
	globalLoggerOnce.Do(func() {
		config := GetGlobalConfig()
		globalLogger = NewLogger(os.Stderr, parseLogLevel(config.LogLevel))
	})
}

func parseLogLevel(levelStr string) LogLevel {
	switch levelStr {
	case "debug":
		return LogDebug
	case "info":
		return LogInfo
	case "warn":
		return LogWarn
	case "error":
		return LogError
	case "off":
		return LogOff
	default:
		return LogInfo
	}
}

// NewLogger creates a text logger writing to w
func NewLogger(w io.Writer, level LogLevel) *Logger {
	if w == nil {
		w = io.Discard
	}
	lv := new(slog.LevelVar)
	lv.Set(level.slogLevel())
	return &Logger{
		handler: slog.NewTextHandler(w, &slog.HandlerOptions{Level: lv}),
		level:   lv,
		mode:    &levelMode{level: level},
	}
}

// NewNopLogger returns a logger that discards everything
func NewNopLogger() *Logger {
	return NewLogger(io.Discard, LogOff)
}

func (l *Logger) SetLevel(level LogLevel) {
	l.mode.mu.Lock()
	defer l.mode.mu.Unlock()
	l.mode.level = level
	l.level.Set(level.slogLevel())
}

func (l *Logger) IsDebugMode() bool {
	l.mode.mu.Lock()
	defer l.mode.mu.Unlock()
	return l.mode.level == LogDebug
}

func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(Fields{key: value})
}

func (l *Logger) WithFields(fields Fields) *Logger {
	attrs := make([]any, 0, len(l.attrs)+len(fields))
	attrs = append(attrs, l.attrs...)
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	return &Logger{
		handler: l.handler,
		level:   l.level,
		attrs:   attrs,
		mode:    l.mode,
	}
}

func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	lvl := level.slogLevel()
	if !l.handler.Enabled(context.Background(), lvl) {
		return
	}
	slog.New(l.handler).Log(context.Background(), lvl, fmt.Sprintf(format, args...), l.attrs...)
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(LogDebug, format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.log(LogInfo, format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(LogWarn, format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.log(LogError, format, args...)
}

// DebugExpression logs an expression and its evaluated result
func (l *Logger) DebugExpression(expr string, result interface{}) {
	if !l.IsDebugMode() {
		return
	}
	l.WithField("result", result).Debug("Expression: %s", expr)
}

// Global logging functions
func SetLogger(logger *Logger) {
	initGlobalLogger()
	globalLoggerMu.Lock()
	defer globalLoggerMu.Unlock()
	globalLogger = logger
}

func GetLogger() *Logger {
	initGlobalLogger()
	globalLoggerMu.RLock()
	defer globalLoggerMu.RUnlock()
	return globalLogger
}

func WithField(key string, value interface{}) *Logger {
	return GetLogger().WithField(key, value)
}

func WithFields(fields Fields) *Logger {
	return GetLogger().WithFields(fields)
}

// UpdateLoggerFromConfig updates the global logger based on the current global configuration
func UpdateLoggerFromConfig() {
	config := GetGlobalConfig()
	GetLogger().SetLevel(parseLogLevel(config.LogLevel))
}
