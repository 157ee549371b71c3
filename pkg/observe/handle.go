package observe

import (
	"sync/atomic"

	"github.com/observekit/observe-go/pkg/log"
)

// handleState tracks the handle lifecycle.
// Transitions: created -> active (once, on subscribe), then
// active -> canceled (at most once, on cancel or subject teardown).
type handleState int32

const (
	stateCreated handleState = iota
	stateActive
	stateCanceled
)

// handleIDs generates process-unique handle identifiers.
var handleIDs atomic.Uint64

// Handle is one observation: the immutable subscription parameters, the
// callback, and a small state machine. Handles are created by Observe,
// ObserveWith and ObserveLatest; the zero value is not usable.
//
// A Handle is retained by the per-subject registry until canceled, so callers
// only need to keep it if they intend to cancel. It references its subject
// weakly: observing an object never keeps the object alive.
type Handle struct {
	id          uint64
	ref         SubjectRef
	key         string
	opts        Options
	fn          func(old, new *Box)
	token       Token
	entry       *subjectEntry
	subjectUID  string
	subjectName string

	state atomic.Int32
}

// Key returns the observed property key.
func (h *Handle) Key() string {
	return h.key
}

// Subject returns the observed subject, if it is still alive.
func (h *Handle) Subject() (Subject, bool) {
	return h.ref.Get()
}

// IsActive reports whether the handle is active and its subject still alive.
// Best-effort: it is not synchronized against concurrent cancellation and is
// meant for diagnostics only.
func (h *Handle) IsActive() bool {
	if handleState(h.state.Load()) != stateActive {
		return false
	}
	_, alive := h.ref.Get()
	return alive
}

// Cancel detaches the observation. Once Cancel returns, no future change
// event reaches the callback; a callback already executing on another
// goroutine is not waited for (waiting would require holding a lock across
// user code).
//
// Canceling twice is a no-op the second time. Canceling after the subject was
// destroyed is also a no-op: the host already tore the registration down.
func (h *Handle) Cancel() {
	if !h.state.CompareAndSwap(int32(stateActive), int32(stateCanceled)) {
		// Already canceled, or torn down with its subject.
		return
	}

	s, alive := h.ref.Get()
	if !alive {
		// Subject destroyed: the registry entry was (or is being) dropped by
		// the invalidation hook together with every handle in it.
		return
	}

	// Unregister and remove from the registry under the subject's entry lock,
	// so no future native notification can reach this handle.
	h.entry.mu.Lock()
	s.UnregisterChange(h.key, h.token)
	delete(h.entry.handles, h.id)
	empty := len(h.entry.handles) == 0
	h.entry.mu.Unlock()

	if empty {
		defaultRegistry.release(h.entry)
	}

	lifecycleEvent(log.CategoryCancel, h)
}

// activate transitions created -> active. Registering the same handle twice
// is a lifecycle violation.
func (h *Handle) activate() bool {
	if !h.state.CompareAndSwap(int32(stateCreated), int32(stateActive)) {
		violation(ViolationLifecycle, h, "handle registered twice")
		return false
	}
	return true
}

// dispatch receives a raw native change event on the mutating goroutine,
// validates it against the handle's options and invokes the user callback.
// No lock is held here: handle fields are immutable once active.
func (h *Handle) dispatch(ch Change) {
	switch handleState(h.state.Load()) {
	case stateCanceled:
		// A change already in flight when Cancel returned may still land
		// here. Dropping it is the documented race, not an error.
		return
	case stateCreated:
		violation(ViolationLifecycle, h, "change delivered to a handle that was never registered")
		return
	}

	if ch.Kind != ChangeSet {
		violation(ViolationUnsupportedChange, h, "cannot interpret "+ch.Kind.String()+" change; only whole-value sets are supported")
		return
	}
	if ch.New == nil {
		violation(ViolationUnsupportedChange, h, "set change without a new value")
		return
	}
	if h.opts.Prior && ch.Old == nil {
		violation(ViolationUnsupportedChange, h, "prior value requested but not delivered")
		return
	}
	if !h.opts.Prior && ch.Old != nil {
		violation(ViolationUnsupportedChange, h, "prior value delivered but not requested")
		return
	}

	h.fn(ch.Old, ch.New)
}

// CancelAll cancels every handle in handles. Nil entries are skipped, so the
// result of a failed ObserveLatest can be passed directly.
func CancelAll(handles []*Handle) {
	for _, h := range handles {
		if h != nil {
			h.Cancel()
		}
	}
}
