package observe

import "sync"

// defaultRegistry is the process-wide side table mapping subject identity to
// the set of handles attached to that subject.
var defaultRegistry = &registry{entries: make(map[uint64]*subjectEntry)}

// registry associates each observed subject with a subjectEntry without
// requiring subject types to embed anything. Entries live for as long as the
// subject has handles attached; subject destruction releases the entry and
// every still-registered handle together, via the host's invalidation hook.
type registry struct {
	mu      sync.Mutex
	entries map[uint64]*subjectEntry
}

// subjectEntry holds the handles attached to one subject. Its mutex is the
// per-subject identity lock, and the handles map is the only place handles
// are strongly retained: losing a returned Handle without canceling simply
// leaves the subscription alive, owned by the subject.
type subjectEntry struct {
	subjectID uint64

	mu      sync.Mutex
	handles map[uint64]*Handle
	removed bool
}

// entryFor returns the live entry for s, creating it (and installing the
// subject's teardown hook) on first use. The returned entry may concurrently
// become removed; callers must re-check under its lock. Returns nil if the
// subject is already destroyed.
func (r *registry) entryFor(s Subject) *subjectEntry {
	id := s.SubjectID()
	for {
		r.mu.Lock()
		e, ok := r.entries[id]
		if !ok {
			e = &subjectEntry{subjectID: id, handles: make(map[uint64]*Handle)}
			r.entries[id] = e
			r.mu.Unlock()
			// Host-guaranteed teardown: when the subject is destroyed, the
			// entry and every still-registered handle are released together.
			// No further change events arrive after this hook has run.
			s.OnInvalidate(func() { r.drop(e) })

			// The hook runs synchronously when the subject is already
			// destroyed, dropping the entry before it was ever used.
			e.mu.Lock()
			dead := e.removed
			e.mu.Unlock()
			if dead {
				return nil
			}
			return e
		}
		r.mu.Unlock()

		e.mu.Lock()
		removed := e.removed
		e.mu.Unlock()
		if !removed {
			return e
		}
		// Entry emptied out concurrently and is on its way out of the table;
		// retry until the removal lands and a fresh entry can be created.
	}
}

// release drops e from the table if its handle set emptied. Both locks are
// taken one at a time; the removed flag keeps a racing subscribe from reviving
// an entry that is already on its way out.
func (r *registry) release(e *subjectEntry) {
	e.mu.Lock()
	if len(e.handles) != 0 || e.removed {
		e.mu.Unlock()
		return
	}
	e.removed = true
	e.mu.Unlock()

	r.mu.Lock()
	if r.entries[e.subjectID] == e {
		delete(r.entries, e.subjectID)
	}
	r.mu.Unlock()
}

// drop releases e unconditionally: the subject was destroyed. Handles flip to
// canceled so IsActive and in-flight dispatch observe the teardown.
func (r *registry) drop(e *subjectEntry) {
	e.mu.Lock()
	if e.removed {
		e.mu.Unlock()
		return
	}
	e.removed = true
	for _, h := range e.handles {
		h.state.Store(int32(stateCanceled))
	}
	e.handles = make(map[uint64]*Handle)
	e.mu.Unlock()

	r.mu.Lock()
	if r.entries[e.subjectID] == e {
		delete(r.entries, e.subjectID)
	}
	r.mu.Unlock()
}
