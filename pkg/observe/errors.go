package observe

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/observekit/observe-go/pkg/log"
)

// Observation errors, rejected at the API boundary before any registration.
var (
	ErrNilSubject       = errors.New("observe: nil subject")
	ErrNilCallback      = errors.New("observe: nil callback")
	ErrSubjectDestroyed = errors.New("observe: subject already destroyed")
	ErrArity            = errors.New("observe: combined source count must be between 2 and 9")
)

// Violation classifies programmer errors detected after the API boundary.
// These are never returned as errors: they indicate broken invariants in
// caller or host code, so they halt in strict mode and are absorbed as
// logged no-ops otherwise.
type Violation uint8

const (
	// ViolationLifecycle is a broken handle state transition: double
	// registration, or dispatch on a handle that was never registered.
	ViolationLifecycle Violation = iota

	// ViolationUnsupportedChange is a change event the whole-value dispatcher
	// cannot interpret: a collection mutation, a missing new value, or an old
	// value whose presence disagrees with the registration options.
	ViolationUnsupportedChange
)

// String returns the violation class name.
func (v Violation) String() string {
	switch v {
	case ViolationLifecycle:
		return "lifecycle"
	case ViolationUnsupportedChange:
		return "unsupported-change"
	default:
		return "unknown"
	}
}

// strictMode makes violations panic instead of degrading to logged no-ops.
var strictMode atomic.Bool

// SetStrict controls violation handling. With strict enabled (recommended for
// tests and debug builds) a detected violation panics; disabled (the default)
// it is logged and absorbed.
func SetStrict(enabled bool) {
	strictMode.Store(enabled)
}

// pkgLogger receives observation lifecycle events. Defaults to NoopLogger.
// The logger is boxed in loggerBox so atomic.Value always stores one concrete
// type regardless of the logger's dynamic type.
var pkgLogger atomic.Value // loggerBox

type loggerBox struct{ l log.Logger }

// SetLogger routes observation events (subscribe, cancel, combine, violation)
// to l. Pass nil to disable.
func SetLogger(l log.Logger) {
	if l == nil {
		l = log.NoopLogger{}
	}
	pkgLogger.Store(loggerBox{l})
}

func logger() log.Logger {
	if b, ok := pkgLogger.Load().(loggerBox); ok {
		return b.l
	}
	return log.NoopLogger{}
}

// violation reports a detected programmer error for h (which may be nil).
func violation(v Violation, h *Handle, msg string) {
	ev := log.Event{
		Timestamp: time.Now(),
		Category:  log.CategoryViolation,
		Violation: &log.ViolationEvent{Kind: v.String(), Message: msg},
	}
	if h != nil {
		ev.SubjectUID = h.subjectUID
		ev.SubjectName = h.subjectName
		ev.Key = h.key
		ev.HandleID = h.id
	}
	logger().Log(ev)

	if strictMode.Load() {
		panic("observe: " + v.String() + " violation: " + msg)
	}
}

// lifecycleEvent logs a subscribe or cancel event for h.
func lifecycleEvent(cat log.Category, h *Handle) {
	logger().Log(log.Event{
		Timestamp:   time.Now(),
		Category:    cat,
		SubjectUID:  h.subjectUID,
		SubjectName: h.subjectName,
		Key:         h.key,
		HandleID:    h.id,
	})
}
