package primesieve

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/primesieve/accel"
)

// nopHandler is a slog.Handler that silently discards all log records.
// Enabled returns false so callers skip message formatting entirely.
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

// SetLogger configures the logger for primesieve and the devices it opens.
// By default, primesieve produces no log output. Pass nil to restore the
// silent default.
//
// The logger is passed on to every registered device package, and devices
// also receive the logger that is current when a [Session] is created.
//
// Log levels used by primesieve:
//   - [slog.LevelDebug]: buffer sizes, partitions, pipeline compilation
//   - [slog.LevelInfo]: device and adapter selection
//   - [slog.LevelWarn]: GPU fallback, resource release errors
//
// Example:
//
//	primesieve.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	// Propagate to device packages that log outside a session.
	accel.SetLogger(l)
}

// Logger returns the current logger used by primesieve.
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
