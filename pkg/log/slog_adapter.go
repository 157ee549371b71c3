package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes observation events to an slog.Logger.
// Useful for development when you want to see observation events in console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level.
// Violations are logged at Warn level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("category", event.Category.String()),
	}

	// Add optional identifiers
	if event.SubjectUID != "" {
		attrs = append(attrs, slog.String("subject_uid", event.SubjectUID))
	}
	if event.SubjectName != "" {
		attrs = append(attrs, slog.String("subject", event.SubjectName))
	}
	if event.Key != "" {
		attrs = append(attrs, slog.String("key", event.Key))
	}
	if event.HandleID != 0 {
		attrs = append(attrs, slog.Uint64("handle_id", event.HandleID))
	}

	// Add type-specific attributes
	level := slog.LevelDebug
	switch {
	case event.Combine != nil:
		attrs = append(attrs,
			slog.Int("arity", event.Combine.Arity),
			slog.Int("index", event.Combine.Index),
		)
	case event.Violation != nil:
		level = slog.LevelWarn
		attrs = append(attrs,
			slog.String("violation", event.Violation.Kind),
			slog.String("message", event.Violation.Message),
		)
	}

	a.logger.LogAttrs(context.Background(), level, "observe event", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
