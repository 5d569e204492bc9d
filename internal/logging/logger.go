// Package logging is the structured logger every component receives in its
// constructor. SlogLogger is the only implementation.
package logging

import "context"

// Logger takes a message plus alternating keys and values:
//
//	logger.Warn(ctx, "schedule failed", "job_id", jobID, "error", err)
//
// Keys are snake_case.
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a logger that adds args to every record.
	With(args ...any) Logger
}
