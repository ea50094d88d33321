package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

var (
	mu           sync.RWMutex
	globalZap    *zap.Logger
	globalLogger *slog.Logger
)

// Init builds the global zap logger for the given level and routes log/slog
// through it. Unknown levels fall back to info.
func Init(levelStr string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(levelStr)))); err != nil {
		level.SetLevel(zapcore.InfoLevel)
	}
	cfg.Level = level
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	zl, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}
	Set(zl)
	return zl, nil
}

// Set installs zl as the global logger.
func Set(zl *zap.Logger) {
	sl := slog.New(zapslog.NewHandler(zl.Core()))
	mu.Lock()
	globalZap = zl
	globalLogger = sl
	mu.Unlock()
	slog.SetDefault(sl)
}

// Zap returns the global zap logger for components that log with zap fields.
func Zap() *zap.Logger {
	ensureInitialized()
	mu.RLock()
	defer mu.RUnlock()
	return globalZap
}

func ensureInitialized() {
	mu.RLock()
	ready := globalLogger != nil
	mu.RUnlock()
	if !ready {
		if _, err := Init("info"); err != nil {
			Set(zap.NewNop())
		}
	}
}

func current() *slog.Logger {
	ensureInitialized()
	mu.RLock()
	defer mu.RUnlock()
	return globalLogger
}

// Debug logs a message at DebugLevel.
func Debug(msg string, args ...any) {
	l := current()
	if l.Enabled(context.Background(), slog.LevelDebug) {
		l.Debug(msg, args...)
	}
}

// Info logs a message at InfoLevel.
func Info(msg string, args ...any) {
	current().Info(msg, args...)
}

// Warn logs a message at WarnLevel.
func Warn(msg string, args ...any) {
	current().Warn(msg, args...)
}

// Error logs a message at ErrorLevel.
func Error(msg string, args ...any) {
	current().Error(msg, args...)
}

// Fatal logs a message at ErrorLevel then exits.
func Fatal(msg string, args ...any) {
	current().Error(msg, args...)
	_ = Zap().Sync()
	os.Exit(1)
}
