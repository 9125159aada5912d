package server

import "log/slog"

var logger = slog.Default()

// SetLogger installs a custom slog.Logger for the server package.
// Passing nil resets to slog.Default().
func SetLogger(l *slog.Logger) {
	if l == nil {
		logger = slog.Default()
		return
	}
	logger = l
}

// Logger returns the logger currently used by the server package.
func Logger() *slog.Logger {
	return logger
}
