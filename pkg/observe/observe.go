package observe

import (
	"errors"

	"github.com/observekit/observe-go/pkg/log"
)

// Observe subscribes fn to value changes of key on s.
//
// The defaults match the simple form of the original block-observer API: the
// current value is delivered synchronously before Observe returns, and only
// new values are delivered (no prior values). Use ObserveWith for other
// combinations.
//
// The callback runs on whichever goroutine performs the mutation. It must not
// capture s strongly if s itself retains the callback's captures, or the
// subject can never be collected; take the value parameters instead.
func Observe(s Subject, key string, fn func(new any)) (*Handle, error) {
	if fn == nil {
		return nil, ErrNilCallback
	}
	return observeBoxes(s, key, Options{Initial: true}, func(_, new *Box) {
		fn(new.Value())
	})
}

// ObserveWith subscribes fn to value changes of key on s with explicit
// options. When opts.Prior is false, old is always nil; when opts.Prior is
// true, the initial delivery (if requested) carries a nil old value.
func ObserveWith(s Subject, key string, opts Options, fn func(old, new any)) (*Handle, error) {
	if fn == nil {
		return nil, ErrNilCallback
	}
	return observeBoxes(s, key, opts, func(old, new *Box) {
		if old != nil {
			fn(old.Value(), new.Value())
			return
		}
		fn(nil, new.Value())
	})
}

// observeBoxes is the box-level subscribe shared by the public entry points
// and the combine-latest engine.
//
// Order of operations: the handle is inserted into the registry under the
// subject's entry lock first, then activated, then registered with the host
// outside the lock - with Initial set the host calls back synchronously, and
// no lock may be held across user code.
func observeBoxes(s Subject, key string, opts Options, fn func(old, new *Box)) (*Handle, error) {
	if s == nil {
		return nil, ErrNilSubject
	}
	if fn == nil {
		return nil, ErrNilCallback
	}

	h := &Handle{
		id:   handleIDs.Add(1),
		ref:  s.WeakRef(),
		key:  key,
		opts: opts,
		fn:   fn,
	}
	if u, ok := s.(interface{ UID() string }); ok {
		h.subjectUID = u.UID()
	}
	if n, ok := s.(interface{ Name() string }); ok {
		h.subjectName = n.Name()
	}

	for {
		entry := defaultRegistry.entryFor(s)
		if entry == nil {
			return nil, ErrSubjectDestroyed
		}
		entry.mu.Lock()
		if entry.removed {
			entry.mu.Unlock()
			continue
		}
		entry.handles[h.id] = h
		entry.mu.Unlock()
		h.entry = entry
		break
	}

	if !h.activate() {
		return nil, errors.New("observe: handle already registered")
	}

	tok, err := s.RegisterChange(key, opts, h.dispatch)
	if err != nil {
		h.state.Store(int32(stateCanceled))
		h.entry.mu.Lock()
		delete(h.entry.handles, h.id)
		empty := len(h.entry.handles) == 0
		h.entry.mu.Unlock()
		if empty {
			defaultRegistry.release(h.entry)
		}
		return nil, err
	}
	h.token = tok

	lifecycleEvent(log.CategorySubscribe, h)
	return h, nil
}
