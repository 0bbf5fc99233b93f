package cvcore

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/cvcore/device"
	"github.com/gogpu/cvcore/processor"
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

// SetLogger configures the logger for cvcore and all its sub-packages.
// By default, cvcore produces no log output.
//
// Pass nil to disable logging (restore default silent behavior).
//
// Log levels used by cvcore:
//   - [slog.LevelDebug]: pipeline state, buffer sizes, failed frames
//   - [slog.LevelInfo]: lifecycle events (device opened, processor ready, resize)
//   - [slog.LevelWarn]: initialization failures, device loss
//
// Example:
//
//	cvcore.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	device.SetLogger(l)
	processor.SetLogger(l)
}

// Logger returns the current logger used by cvcore.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
