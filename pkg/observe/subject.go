package observe

// ChangeKind classifies a native change event.
type ChangeKind uint8

const (
	// ChangeSet is a direct whole-value assignment. This is the only kind the
	// observation core interprets.
	ChangeSet ChangeKind = iota

	// ChangeInsert is a collection insertion.
	ChangeInsert

	// ChangeRemove is a collection removal.
	ChangeRemove

	// ChangeReplace is a collection element replacement.
	ChangeReplace
)

// String returns the change kind name.
func (k ChangeKind) String() string {
	switch k {
	case ChangeSet:
		return "SET"
	case ChangeInsert:
		return "INSERT"
	case ChangeRemove:
		return "REMOVE"
	case ChangeReplace:
		return "REPLACE"
	default:
		return "UNKNOWN"
	}
}

// Change is a native change event delivered by a host to a registered
// change func.
type Change struct {
	// Kind classifies the mutation.
	Kind ChangeKind

	// Key is the property that changed.
	Key string

	// New is the new value. Always present for set changes.
	New *Box

	// Old is the previous value. Present exactly when the registration asked
	// for prior values; the initial delivery carries a nil-valued box.
	Old *Box
}

// Options configure a change registration.
type Options struct {
	// Initial delivers the current value synchronously during registration,
	// before the first actual change.
	Initial bool

	// Prior delivers the previous value alongside the new one.
	Prior bool
}

// Token identifies one native change registration within its subject.
type Token uint64

// Subject is the capability an object must provide to be observable.
//
// Package model provides the reference implementation; any host satisfying
// these guarantees works:
//   - change funcs are invoked synchronously on the mutating goroutine, only
//     for the registered key, with a fresh Box per set;
//   - once UnregisterChange returns or the subject is destroyed, no new
//     change event reaches the func; a delivery already snapshotted on
//     another goroutine may still land and is dropped by the handle;
//   - OnInvalidate hooks run exactly once when the subject is destroyed,
//     whether explicitly or by the garbage collector.
type Subject interface {
	// SubjectID returns a process-unique identity used to key the side-table
	// registry. It must be stable for the subject's lifetime and never reused.
	SubjectID() uint64

	// RegisterChange attaches fn to change events for key.
	RegisterChange(key string, opts Options, fn func(Change)) (Token, error)

	// UnregisterChange detaches a registration. Unknown tokens are ignored.
	UnregisterChange(key string, tok Token)

	// CurrentValue returns the boxed current value of key.
	CurrentValue(key string) (*Box, bool)

	// WeakRef returns a weak reference to the subject.
	WeakRef() SubjectRef

	// OnInvalidate registers fn to run when the subject is destroyed. If the
	// subject is already destroyed, fn runs immediately.
	OnInvalidate(fn func())
}

// SubjectRef is a weak subject reference: it does not keep the subject alive
// and reports false once the subject is destroyed.
type SubjectRef interface {
	Get() (Subject, bool)
}
