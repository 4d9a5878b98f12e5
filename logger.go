// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package pixelgen

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// nopHandler drops every record. Enabled reports false, so slog never
// formats the message.
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

// backends are the live generator backends that receive logger updates.
var (
	backendsMu sync.Mutex
	backends   = map[Backend]struct{}{}
)

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for pixelgen and its backends.
// By default, pixelgen produces no log output.
//
// Pass nil to disable logging (restore default silent behavior).
//
// Log levels used by pixelgen:
//   - [slog.LevelDebug]: per-frame diagnostics (dispatch size, fence values)
//   - [slog.LevelInfo]: lifecycle events (adapter selected, buffers allocated)
//   - [slog.LevelWarn]: ignored input (resize on a fixed-resolution surface)
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	backendsMu.Lock()
	defer backendsMu.Unlock()
	for b := range backends {
		propagateLogger(b, l)
	}
}

// Logger returns the current logger used by pixelgen.
// Sub-packages call this to share the same logger configuration.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// loggerSetter is implemented by backends that accept a logger.
type loggerSetter interface {
	SetLogger(*slog.Logger)
}

func propagateLogger(b Backend, l *slog.Logger) {
	if ls, ok := b.(loggerSetter); ok {
		ls.SetLogger(l)
	}
}

func trackBackend(b Backend) {
	backendsMu.Lock()
	backends[b] = struct{}{}
	backendsMu.Unlock()
	propagateLogger(b, Logger())
}

func untrackBackend(b Backend) {
	backendsMu.Lock()
	delete(backends, b)
	backendsMu.Unlock()
}
