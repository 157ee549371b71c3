package log

// MultiLogger fans observation events out to several loggers, typically a
// FileLogger for later analysis alongside a SlogAdapter for the console.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a MultiLogger delivering every event to each of
// loggers in order.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

// Log delivers the event to every configured logger.
func (m *MultiLogger) Log(event Event) {
	for _, l := range m.loggers {
		l.Log(event)
	}
}

// Compile-time interface satisfaction check.
var _ Logger = (*MultiLogger)(nil)
