package log

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level mirrors the zap levels we expose through the package API.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

var (
	mu      sync.RWMutex
	atom    = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	backend *zap.SugaredLogger
)

func init() {
	backend = newBackend("development")
}

// newBackend builds the underlying zap logger. In production we emit JSON
// to stderr; everywhere else a human-readable console encoder is used.
func newBackend(env string) *zap.SugaredLogger {
	var cfg zap.Config
	switch env {
	case "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = atom
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := cfg.Build(zap.AddCallerSkip(2))
	if err != nil {
		// zap's config only fails on invalid sink paths; stderr is always valid.
		panic(err)
	}
	return logger.Sugar()
}

// Configure rebuilds the backend for the given environment ("production"
// or anything else for development output).
func Configure(env string) {
	mu.Lock()
	defer mu.Unlock()
	backend = newBackend(env)
}

// SetLevel adjusts the minimum level at runtime.
func SetLevel(l Level) {
	switch l {
	case LevelDebug:
		atom.SetLevel(zapcore.DebugLevel)
	case LevelInfo:
		atom.SetLevel(zapcore.InfoLevel)
	case LevelWarn:
		atom.SetLevel(zapcore.WarnLevel)
	case LevelError:
		atom.SetLevel(zapcore.ErrorLevel)
	}
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

func Debug(msg string, kv ...any) {
	current().Debugw(msg, kv...)
}

func Info(msg string, kv ...any) {
	current().Infow(msg, kv...)
}

func Warn(msg string, kv ...any) {
	current().Warnw(msg, kv...)
}

// Error logs msg with the error prepended as the "err" field, matching the
// call shape used throughout the codebase: Error(msg, err, extra kv...).
func Error(msg string, err error, kv ...any) {
	extended := append([]any{"err", err}, kv...)
	current().Errorw(msg, extended...)
}

// Sync flushes buffered log entries. Safe to call at shutdown.
func Sync() {
	_ = current().Sync()
}
