package testutil

import "log/slog"

// DiscardLogger returns a logger that drops all output. Equivalent to
// log.NewNop; kept here so tests outside internal/log need only testutil.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
