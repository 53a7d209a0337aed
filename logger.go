package gpucmd

import (
	"log/slog"

	"github.com/gogpu/gpucmd/internal/logging"
)

// SetLogger configures the logger for gpucmd and all its sub-packages.
// By default, gpucmd produces no log output. Call SetLogger to enable logging.
//
// SetLogger is safe for concurrent use: it stores the new logger atomically.
// Pass nil to disable logging (restore default silent behavior).
//
// Log levels used by gpucmd:
//   - [slog.LevelDebug]: per-flush diagnostics (merges, chains, executor calls)
//   - [slog.LevelInfo]: lifecycle events (device opened, program compiled)
//   - [slog.LevelWarn]: failed binds and executor errors
//
// Example:
//
//	gpucmd.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	logging.Set(l)
}

// Logger returns the current logger used by gpucmd.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return logging.Logger()
}
