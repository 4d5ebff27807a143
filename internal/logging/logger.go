// Package logging provides category-based file logging for the studio core.
// Each category writes to its own rotating file under the configured log
// directory. Until Initialize is called every logger is a silent no-op, so
// library code can log unconditionally.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Category represents a log category/subsystem.
type Category string

const (
	CategoryBoot        Category = "boot"        // Startup and wiring
	CategoryBus         Category = "bus"         // Event bus publish/subscribe
	CategoryNavigation  Category = "navigation"  // History manager
	CategoryCache       Category = "cache"       // Metadata/page/preload tiers
	CategoryHandlers    Category = "handlers"    // Handler dispatch
	CategoryScript      Category = "script"      // Sandboxed script execution
	CategoryForms       Category = "forms"       // Form validation
	CategoryStore       Category = "store"       // SQLite persistence
	CategoryServer      Category = "server"      // HTTP boundary
	CategoryWatch       Category = "watch"       // Storage file watcher
	CategoryMaintenance Category = "maintenance" // Janitor sweeps
)

// Options controls the logging backend.
type Options struct {
	Level      string // debug, info, warn, error
	MaxSizeMB  int    // per-file rotation threshold
	MaxBackups int    // rotated files kept per category
	Console    bool   // also mirror to stderr
}

var (
	mu      sync.RWMutex
	loggers = make(map[Category]*Logger)
	logsDir string
	opts    Options
	level   zapcore.Level
	active  bool
)

// Logger wraps a zap sugared logger bound to one category.
type Logger struct {
	category Category
	s        *zap.SugaredLogger
}

// Initialize sets up the log directory and activates logging.
// Safe to skip entirely; loggers stay no-op.
func Initialize(dir string, o Options) error {
	if dir == "" {
		return fmt.Errorf("log directory required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	lvl, err := zapcore.ParseLevel(o.Level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	if o.MaxSizeMB <= 0 {
		o.MaxSizeMB = 10
	}
	if o.MaxBackups <= 0 {
		o.MaxBackups = 3
	}

	mu.Lock()
	logsDir = dir
	opts = o
	level = lvl
	active = true
	loggers = make(map[Category]*Logger)
	mu.Unlock()

	Boot("=== studio logging initialized ===")
	Boot("logs directory: %s level: %s", dir, lvl)
	return nil
}

// IsActive reports whether Initialize has been called.
func IsActive() bool {
	mu.RLock()
	defer mu.RUnlock()
	return active
}

// Get returns (or creates) the logger for a category.
func Get(category Category) *Logger {
	mu.RLock()
	if !active {
		mu.RUnlock()
		return &Logger{category: category}
	}
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	enc := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "lvl",
		MessageKey:     "msg",
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	})
	sink := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(logsDir, fmt.Sprintf("%s.log", category)),
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
	})
	core := zapcore.NewCore(enc, sink, level)
	if opts.Console {
		core = zapcore.NewTee(core, zapcore.NewCore(enc, zapcore.AddSync(os.Stderr), level))
	}

	l := &Logger{
		category: category,
		s:        zap.New(core).Sugar().Named(string(category)),
	}
	loggers[category] = l
	return l
}

// Debug logs a debug message.
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.s == nil {
		return
	}
	l.s.Debugf(format, args...)
}

// Info logs an informational message.
func (l *Logger) Info(format string, args ...interface{}) {
	if l.s == nil {
		return
	}
	l.s.Infof(format, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.s == nil {
		return
	}
	l.s.Warnf(format, args...)
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...interface{}) {
	if l.s == nil {
		return
	}
	l.s.Errorf(format, args...)
}

// CloseAll flushes every open logger and deactivates logging. Call at shutdown.
func CloseAll() {
	mu.Lock()
	defer mu.Unlock()
	for _, l := range loggers {
		if l.s != nil {
			_ = l.s.Sync()
		}
	}
	loggers = make(map[Category]*Logger)
	active = false
}

// Convenience functions for the common categories.

// Boot logs to the boot category.
func Boot(format string, args ...interface{}) { Get(CategoryBoot).Info(format, args...) }

// Bus logs to the bus category.
func Bus(format string, args ...interface{}) { Get(CategoryBus).Info(format, args...) }

// BusDebug logs debug to the bus category.
func BusDebug(format string, args ...interface{}) { Get(CategoryBus).Debug(format, args...) }

// BusError logs error to the bus category.
func BusError(format string, args ...interface{}) { Get(CategoryBus).Error(format, args...) }

// Nav logs to the navigation category.
func Nav(format string, args ...interface{}) { Get(CategoryNavigation).Info(format, args...) }

// NavDebug logs debug to the navigation category.
func NavDebug(format string, args ...interface{}) { Get(CategoryNavigation).Debug(format, args...) }

// Cache logs to the cache category.
func Cache(format string, args ...interface{}) { Get(CategoryCache).Info(format, args...) }

// CacheDebug logs debug to the cache category.
func CacheDebug(format string, args ...interface{}) { Get(CategoryCache).Debug(format, args...) }

// CacheWarn logs warning to the cache category.
func CacheWarn(format string, args ...interface{}) { Get(CategoryCache).Warn(format, args...) }

// Handlers logs to the handlers category.
func Handlers(format string, args ...interface{}) { Get(CategoryHandlers).Info(format, args...) }

// HandlersDebug logs debug to the handlers category.
func HandlersDebug(format string, args ...interface{}) { Get(CategoryHandlers).Debug(format, args...) }

// Script logs to the script category.
func Script(format string, args ...interface{}) { Get(CategoryScript).Info(format, args...) }

// ScriptDebug logs debug to the script category.
func ScriptDebug(format string, args ...interface{}) { Get(CategoryScript).Debug(format, args...) }

// ScriptError logs error to the script category.
func ScriptError(format string, args ...interface{}) { Get(CategoryScript).Error(format, args...) }

// Forms logs to the forms category.
func Forms(format string, args ...interface{}) { Get(CategoryForms).Info(format, args...) }

// FormsDebug logs debug to the forms category.
func FormsDebug(format string, args ...interface{}) { Get(CategoryForms).Debug(format, args...) }

// Store logs to the store category.
func Store(format string, args ...interface{}) { Get(CategoryStore).Info(format, args...) }

// StoreDebug logs debug to the store category.
func StoreDebug(format string, args ...interface{}) { Get(CategoryStore).Debug(format, args...) }

// StoreError logs error to the store category.
func StoreError(format string, args ...interface{}) { Get(CategoryStore).Error(format, args...) }

// Server logs to the server category.
func Server(format string, args ...interface{}) { Get(CategoryServer).Info(format, args...) }

// Watch logs to the watch category.
func Watch(format string, args ...interface{}) { Get(CategoryWatch).Info(format, args...) }

// Maintenance logs to the maintenance category.
func Maintenance(format string, args ...interface{}) { Get(CategoryMaintenance).Info(format, args...) }

// Timer helps measure operation duration.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation.
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, op: operation, start: time.Now()}
}

// Stop ends the timer and logs the duration at debug level.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs a warning if the duration exceeds threshold.
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
