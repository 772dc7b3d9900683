// Package logging configures slog with per-module levels.
//
// Output goes to stdout (text or JSON), to the systemd journal when journald
// is reachable, and to an in-memory ring buffer that backs /api/logs and the
// log events on /api/events.
//
//	logging.Initialize(logging.Config{
//		Level:   "info",
//		Format:  "text",
//		Modules: map[string]string{"streaming": "debug"},
//	})
//	logger := logging.GetLogger("streaming")
//	logger.Info("Session started", "client", addr)
//
// Module levels are held in slog.LevelVar values, so loggers fetched before
// Initialize (or before a config reload) pick up the new level in place.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

const defaultBufferSize = 1000

// Logger is satisfied by *slog.Logger. Packages that only emit logs accept it
// so tests can pass a discard logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config represents logging configuration.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

type registry struct {
	mu       sync.RWMutex
	config   Config
	ready    bool
	loggers  map[string]*slog.Logger
	levels   map[string]*slog.LevelVar
	global   *slog.LevelVar
	buffer   *RingBuffer
	callback LogCallback
}

var state = newRegistry()

func newRegistry() *registry {
	return &registry{
		loggers: make(map[string]*slog.Logger),
		levels:  make(map[string]*slog.LevelVar),
		global:  &slog.LevelVar{},
		buffer:  NewRingBuffer(defaultBufferSize),
	}
}

// Initialize applies config to the global logger and every module logger
// created so far. It may be called again to reload levels.
func Initialize(config Config) {
	state.mu.Lock()
	defer state.mu.Unlock()

	state.config = config
	state.ready = true
	state.global.Set(levelOr(config.Level, slog.LevelInfo))

	for module, levelVar := range state.levels {
		levelVar.Set(state.moduleLevel(module))
		state.loggers[module] = slog.New(newHandler(config.Format, levelVar)).With("module", module)
	}

	slog.SetDefault(slog.New(newHandler(config.Format, state.global)))
}

// GetLogger returns the logger for module, creating it on first use.
func GetLogger(module string) *slog.Logger {
	state.mu.RLock()
	logger, ok := state.loggers[module]
	state.mu.RUnlock()
	if ok {
		return logger
	}

	state.mu.Lock()
	defer state.mu.Unlock()
	if logger, ok = state.loggers[module]; ok {
		return logger
	}

	levelVar := &slog.LevelVar{}
	format := "text"
	if state.ready {
		levelVar.Set(state.moduleLevel(module))
		format = state.config.Format
	}

	logger = slog.New(newHandler(format, levelVar)).With("module", module)
	state.loggers[module] = logger
	state.levels[module] = levelVar
	return logger
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// GetBuffer returns the ring buffer holding recent log entries.
func GetBuffer() *RingBuffer {
	state.mu.RLock()
	defer state.mu.RUnlock()
	return state.buffer
}

// SetLogCallback registers fn to receive every buffered entry.
func SetLogCallback(fn LogCallback) {
	state.mu.Lock()
	defer state.mu.Unlock()
	state.callback = fn
}

func currentCallback() LogCallback {
	state.mu.RLock()
	defer state.mu.RUnlock()
	return state.callback
}

// moduleLevel must be called with state.mu held.
func (r *registry) moduleLevel(module string) slog.Level {
	level := levelOr(r.config.Level, slog.LevelInfo)
	if override, ok := r.config.Modules[module]; ok {
		level = levelOr(override, level)
	}
	return level
}

func newHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	var handlers []slog.Handler
	if stdoutAvailable() {
		if format == "json" {
			handlers = append(handlers, slog.NewJSONHandler(os.Stdout, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(os.Stdout, opts))
		}
	}
	if JournalAvailable() {
		handlers = append(handlers, newJournalHandler(level))
	}
	handlers = append(handlers, newBufferHandler(level))

	if len(handlers) == 1 {
		return handlers[0]
	}
	return NewMultiHandler(handlers...)
}

// stdoutAvailable is false when stdout is /dev/null or closed.
func stdoutAvailable() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return mode&(os.ModeCharDevice|os.ModeNamedPipe|os.ModeSocket) != 0 || mode.IsRegular()
}

// ParseLevel converts a level name to slog.Level.
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

func levelOr(name string, fallback slog.Level) slog.Level {
	if level, ok := ParseLevel(name); ok {
		return level
	}
	return fallback
}
