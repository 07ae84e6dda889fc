// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package multisurface

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/multisurface/compositor"
	"github.com/gogpu/multisurface/scheduler"
)

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely, making disabled logging effectively zero-cost.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for multisurface and all its sub-packages.
// By default, multisurface produces no log output.
//
// SetLogger is safe for concurrent use. Pass nil to disable logging.
//
// Log levels used by multisurface:
//   - [slog.LevelDebug]: per-frame diagnostics (surface count, in-flight frames)
//   - [slog.LevelInfo]: lifecycle events (atlas created, worker stopped)
//   - [slog.LevelWarn]: skipped surfaces, failed present
//   - [slog.LevelError]: abandoned frames, device loss
//
// Example:
//
//	multisurface.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
	compositor.SetLogger(l)
	scheduler.SetLogger(l)
}

// Logger returns the current logger used by multisurface.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// slogger is shorthand for Logger inside the package.
func slogger() *slog.Logger {
	return loggerPtr.Load()
}
