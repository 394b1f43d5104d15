// Package logging defines the structured-logging interface shared by the
// client agent and the development gateway. The default implementation wraps
// log/slog; callers only depend on Logger.
package logging

import "context"

// Logger is a context-aware, structured logger.
//
// The variadic args are interpreted as key–value pairs, e.g.:
//
//	log.Info(ctx, "upload completed", "asset_id", id, "remote_id", remoteID)
type Logger interface {
	// Debug logs verbose diagnostics (request lines, cache hits).
	Debug(ctx context.Context, msg string, args ...any)

	// Info logs an informational message, e.g. a state transition.
	Info(ctx context.Context, msg string, args ...any)

	// Warn logs a recoverable failure such as a retry that did not succeed.
	Warn(ctx context.Context, msg string, args ...any)

	// Error logs an error message for failures.
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key–value pairs.
	With(args ...any) Logger
}
