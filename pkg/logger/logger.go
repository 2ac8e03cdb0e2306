// Package logger provides the structured logging singleton the rest of the
// agent's core logs through: flow drivers, the orchestrator, and the
// credential lifetime controller all call Get() (or one of the package-level
// helpers) rather than carrying a *slog.Logger through every call. New code
// should prefer injecting *slog.Logger directly; Get exists for exactly that
// injection, and Set exists so tests can capture output.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"sync/atomic"

	"github.com/go-logr/logr"
	"github.com/spf13/viper"
)

// EnvReader abstracts environment-variable lookup so Initialize's behavior
// can be driven deterministically in tests without mutating the real
// process environment.
type EnvReader interface {
	Getenv(key string) string
}

// osEnvReader reads from the real process environment.
type osEnvReader struct{}

func (osEnvReader) Getenv(key string) string { return os.Getenv(key) }

// singleton is the package-level logger created by Initialize. Accessed
// atomically to be safe for concurrent use across goroutines, since the
// agent's lifetime controller logs from its own background goroutine while
// a flow may be logging from the caller's.
var singleton atomic.Pointer[slog.Logger]

func init() {
	singleton.Store(newLogger(slog.LevelInfo, false, os.Stderr))
}

func get() *slog.Logger { return singleton.Load() }

// Get returns the underlying *slog.Logger for injection into structs.
func Get() *slog.Logger { return get() }

// Set replaces the singleton logger. Intended for tests that need to
// capture log output; production code should use [Initialize] instead.
func Set(l *slog.Logger) { singleton.Store(l) }

// newLogger builds a *slog.Logger writing to w, at level, either as
// unstructured text (for interactive use) or structured JSON (for
// daemonized/log-aggregated use).
func newLogger(level slog.Level, jsonFormat bool, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if jsonFormat {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// Initialize creates and configures the process-wide logger. If the
// UNSTRUCTURED_LOGS env var is unset or not a valid bool, it defaults to
// plain text output; set it to "false" for structured JSON.
func Initialize() {
	InitializeWithEnv(osEnvReader{})
}

// InitializeWithEnv is Initialize with an injectable environment reader, so
// tests can exercise every branch without touching the real environment.
func InitializeWithEnv(env EnvReader) {
	level := slog.LevelInfo
	if viper.GetBool("debug") {
		level = slog.LevelDebug
	}
	singleton.Store(newLogger(level, !unstructuredLogsWithEnv(env), os.Stderr))
}

func unstructuredLogsWithEnv(env EnvReader) bool {
	unstructured, err := strconv.ParseBool(env.Getenv("UNSTRUCTURED_LOGS"))
	if err != nil {
		// Unset or not a valid bool: default to unstructured.
		return true
	}
	return unstructured
}

// Debug logs a message at debug level using the singleton logger.
func Debug(msg string) { get().Debug(msg) }

// Debugf logs a formatted message at debug level using the singleton logger.
func Debugf(msg string, args ...any) { get().Debug(fmt.Sprintf(msg, args...)) }

// Debugw logs a message at debug level with additional key-value pairs.
func Debugw(msg string, keysAndValues ...any) { get().Debug(msg, keysAndValues...) }

// Info logs a message at info level using the singleton logger.
func Info(msg string) { get().Info(msg) }

// Infof logs a formatted message at info level using the singleton logger.
func Infof(msg string, args ...any) { get().Info(fmt.Sprintf(msg, args...)) }

// Infow logs a message at info level with additional key-value pairs.
func Infow(msg string, keysAndValues ...any) { get().Info(msg, keysAndValues...) }

// Warn logs a message at warning level using the singleton logger.
func Warn(msg string) { get().Warn(msg) }

// Warnf logs a formatted message at warning level using the singleton logger.
func Warnf(msg string, args ...any) { get().Warn(fmt.Sprintf(msg, args...)) }

// Warnw logs a message at warning level with additional key-value pairs.
func Warnw(msg string, keysAndValues ...any) { get().Warn(msg, keysAndValues...) }

// Error logs a message at error level using the singleton logger.
func Error(msg string) { get().Error(msg) }

// Errorf logs a formatted message at error level using the singleton logger.
func Errorf(msg string, args ...any) { get().Error(fmt.Sprintf(msg, args...)) }

// Errorw logs a message at error level with additional key-value pairs.
func Errorw(msg string, keysAndValues ...any) { get().Error(msg, keysAndValues...) }

// Panic logs a message at error level and panics.
func Panic(msg string) {
	get().Error(msg)
	panic(msg)
}

// Panicf logs a formatted message at error level and panics.
func Panicf(msg string, args ...any) {
	formatted := fmt.Sprintf(msg, args...)
	get().Error(formatted)
	panic(formatted)
}

// Panicw logs a message at error level with additional key-value pairs and panics.
func Panicw(msg string, keysAndValues ...any) {
	get().Error(msg, keysAndValues...)
	panic(msg)
}

// DPanic logs a message at error level. Unlike zap's DPanic, this never
// panics, since slog has no equivalent of development-only panic behavior.
func DPanic(msg string) { get().Error(msg) }

// DPanicf logs a formatted message at error level.
func DPanicf(msg string, args ...any) { get().Error(fmt.Sprintf(msg, args...)) }

// DPanicw logs a message at error level with additional key-value pairs.
func DPanicw(msg string, keysAndValues ...any) { get().Error(msg, keysAndValues...) }

// Fatal logs a message at error level and exits the process.
func Fatal(msg string) {
	get().Error(msg)
	os.Exit(1)
}

// Fatalf logs a formatted message at error level and exits the process.
func Fatalf(msg string, args ...any) {
	get().Error(fmt.Sprintf(msg, args...))
	os.Exit(1)
}

// Fatalw logs a message at error level with additional key-value pairs and exits the process.
func Fatalw(msg string, keysAndValues ...any) {
	get().Error(msg, keysAndValues...)
	os.Exit(1)
}

// NewLogr returns a logr.Logger backed by the slog singleton, for
// collaborators (none in this core, but kept for callers one layer up) that
// expect logr's interface instead of slog's.
func NewLogr() logr.Logger {
	return logr.FromSlogHandler(get().Handler())
}
