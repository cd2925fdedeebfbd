//go:build !nogpu

package gpu

import (
	"log/slog"
	"sync/atomic"
)

// loggerPtr holds the package logger. Devices opened with a logger in their
// config replace it; until then all output is discarded.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(slog.New(slog.DiscardHandler))
}

// slogger returns the current package logger.
// All logging in internal/gpu goes through this function.
func slogger() *slog.Logger { return loggerPtr.Load() }

// setLogger updates the package logger. Nil restores silent logging.
func setLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	loggerPtr.Store(l)
}
