package xvsink

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely, making disabled logging effectively zero-cost.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// newNopLogger creates a logger that silently discards all output.
func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	l := newNopLogger()
	loggerPtr.Store(l)
}

// SetLogger configures the logger for xvsink and its sub-packages.
// By default, xvsink produces no log output. Call SetLogger to enable
// logging. Pass nil to restore the default silent behavior.
//
// Log levels used by xvsink:
//   - [slog.LevelDebug]: per-frame diagnostics (placements, pool hits)
//   - [slog.LevelInfo]: lifecycle events (display opened, port grabbed,
//     window created, event loop started)
//   - [slog.LevelWarn]: recoverable issues (software fallback, draw
//     errors, stale buffers discarded)
//   - [slog.LevelError]: fatal pipeline errors (surface lost, window
//     closed by the window manager)
//
// SetLogger is safe for concurrent use: it stores the new logger
// atomically.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the current logger used by xvsink. Sub-packages call
// this to share the same logger configuration without introducing
// import cycles.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
