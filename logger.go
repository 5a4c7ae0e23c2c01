package hembs

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with classifier-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithRuleID adds a rule_id field to the logger.
func (l *Logger) WithRuleID(id uint32) *Logger {
	return &Logger{
		Logger: l.Logger.With("rule_id", id),
	}
}

// WithCount adds a count field to the logger.
func (l *Logger) WithCount(count int) *Logger {
	return &Logger{
		Logger: l.Logger.With("count", count),
	}
}

// LogInit logs classifier construction.
func (l *Logger) LogInit(ctx context.Context, capacity uint32, cellWidth, ratio int, footprint int64) {
	l.InfoContext(ctx, "classifier initialized",
		"capacity", capacity,
		"cell_width", cellWidth,
		"aggregate_ratio", ratio,
		"memory_bytes", footprint,
	)
}

// LogInsert logs an insert operation.
func (l *Logger) LogInsert(ctx context.Context, id uint32, slot Slot, err error) {
	if err != nil {
		l.WarnContext(ctx, "insert failed",
			"rule_id", id,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "insert completed",
			"rule_id", id,
			"slot", slot,
		)
	}
}

// LogDelete logs a delete operation.
func (l *Logger) LogDelete(ctx context.Context, id uint32, slot Slot, err error) {
	if err != nil {
		l.WarnContext(ctx, "delete failed",
			"rule_id", id,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "delete completed",
			"rule_id", id,
			"slot", slot,
		)
	}
}

// LogSearch logs a failed search. Successful searches are not logged.
func (l *Logger) LogSearch(ctx context.Context, p Packet, err error) {
	if err != nil {
		l.WarnContext(ctx, "search failed",
			"packet", p.String(),
			"error", err,
		)
	}
}
