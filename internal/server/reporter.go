package server

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Reporter receives failures that do not end a session, such as a message
// that could not be persisted.
type Reporter interface {
	Report(ctx context.Context, op string, err error)
}

// LogReporter logs failures and counts them for the status endpoint.
type LogReporter struct {
	log      *slog.Logger
	failures atomic.Int64
}

func NewLogReporter(log *slog.Logger) *LogReporter {
	return &LogReporter{log: log}
}

func (r *LogReporter) Report(ctx context.Context, op string, err error) {
	r.failures.Add(1)
	r.log.ErrorContext(ctx, "Store operation failed", "op", op, "error", err)
}

// Failures returns the number of failures reported so far.
func (r *LogReporter) Failures() int64 {
	return r.failures.Load()
}
