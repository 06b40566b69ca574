package testutil

import "log/slog"

// DiscardLogger returns a logger that drops all records.
// Use it to silence components under test.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
