package model

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"weak"

	"github.com/google/uuid"

	"github.com/observekit/observe-go/pkg/observe"
)

// Subject errors.
var (
	ErrInvalidated       = errors.New("subject is invalidated")
	ErrUnknownProperty   = errors.New("unknown property")
	ErrDuplicateProperty = errors.New("duplicate property key")
)

// subjectIDs generates process-unique, never-reused subject identities.
var subjectIDs atomic.Uint64

// Subject is an observable object with a fixed set of typed properties.
// All methods are safe for concurrent use.
//
// Subject satisfies observe.Subject. The outer struct only carries identity;
// mutable state lives in a separately allocated subjectState so the garbage
// collector can tear the subject down via runtime.AddCleanup without the
// cleanup keeping the subject itself alive.
type Subject struct {
	id    uint64
	uid   string
	name  string
	state *subjectState
}

var _ observe.Subject = (*Subject)(nil)

// subjectState is the mutable half of a Subject.
type subjectState struct {
	mu          sync.Mutex
	invalidated bool
	props       map[string]*property
	hooks       []func()
	lastToken   observe.Token
}

// property is one typed value slot and its registered watchers.
type property struct {
	meta     *PropertyMetadata
	current  *observe.Box
	watchers map[observe.Token]watcher
}

type watcher struct {
	prior bool
	fn    func(observe.Change)
}

// New creates a subject with the given properties, each initialized to its
// metadata default. Duplicate keys panic: the property set is part of the
// type's construction, not runtime input.
func New(name string, props ...*PropertyMetadata) *Subject {
	st := &subjectState{props: make(map[string]*property, len(props))}
	for _, meta := range props {
		if _, ok := st.props[meta.Key]; ok {
			panic(fmt.Sprintf("model: %v: %s", ErrDuplicateProperty, meta.Key))
		}
		st.props[meta.Key] = &property{
			meta:     meta,
			current:  observe.NewBox(meta.Default),
			watchers: make(map[observe.Token]watcher),
		}
	}

	s := &Subject{
		id:    subjectIDs.Add(1),
		uid:   uuid.NewString(),
		name:  name,
		state: st,
	}

	// When the subject becomes unreachable it is torn down exactly as if
	// Invalidate had been called, so observation side state never outlives it.
	runtime.AddCleanup(s, func(st *subjectState) { st.invalidate() }, st)

	return s
}

// SubjectID returns the process-unique subject identity.
func (s *Subject) SubjectID() uint64 {
	return s.id
}

// UID returns the subject's stable unique identifier, suitable for logs.
func (s *Subject) UID() string {
	return s.uid
}

// Name returns the subject name given at construction.
func (s *Subject) Name() string {
	return s.name
}

// Keys returns the property keys in sorted order.
func (s *Subject) Keys() []string {
	st := s.state
	st.mu.Lock()
	keys := make([]string, 0, len(st.props))
	for k := range st.props {
		keys = append(keys, k)
	}
	st.mu.Unlock()
	sort.Strings(keys)
	return keys
}

// Metadata returns the metadata of key.
func (s *Subject) Metadata(key string) (*PropertyMetadata, error) {
	st := s.state
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.invalidated {
		return nil, ErrInvalidated
	}
	p, ok := st.props[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProperty, key)
	}
	return p.meta, nil
}

// Set assigns value to key. The value is validated against the property
// metadata; on success a fresh box is stored and one set event is delivered
// synchronously to every watcher of key, on the calling goroutine, with no
// subject lock held.
func (s *Subject) Set(key string, value any) error {
	st := s.state
	st.mu.Lock()
	if st.invalidated {
		st.mu.Unlock()
		return ErrInvalidated
	}
	p, ok := st.props[key]
	if !ok {
		st.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownProperty, key)
	}
	if err := p.meta.Validate(value); err != nil {
		st.mu.Unlock()
		return err
	}

	old := p.current
	box := observe.NewBox(value)
	p.current = box
	targets := snapshotWatchers(p)
	st.mu.Unlock()

	for _, w := range targets {
		ch := observe.Change{Kind: observe.ChangeSet, Key: key, New: box}
		if w.prior {
			ch.Old = old
		}
		w.fn(ch)
	}
	return nil
}

// Get returns the current value of key.
func (s *Subject) Get(key string) (any, error) {
	st := s.state
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.invalidated {
		return nil, ErrInvalidated
	}
	p, ok := st.props[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProperty, key)
	}
	return p.current.Value(), nil
}

// Append appends elem to an array-typed property and delivers one insert
// event per watcher, carrying the inserted element as the new value.
func (s *Subject) Append(key string, elem any) error {
	st := s.state
	st.mu.Lock()
	if st.invalidated {
		st.mu.Unlock()
		return ErrInvalidated
	}
	p, ok := st.props[key]
	if !ok {
		st.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownProperty, key)
	}
	if p.meta.Type != DataTypeArray {
		st.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrPropertyNotArray, key)
	}

	cur, _ := p.current.Value().([]any)
	next := make([]any, len(cur)+1)
	copy(next, cur)
	next[len(cur)] = elem
	p.current = observe.NewBox(next)
	targets := snapshotWatchers(p)
	st.mu.Unlock()

	elemBox := observe.NewBox(elem)
	for _, w := range targets {
		w.fn(observe.Change{Kind: observe.ChangeInsert, Key: key, New: elemBox})
	}
	return nil
}

// CurrentValue returns the boxed current value of key.
func (s *Subject) CurrentValue(key string) (*observe.Box, bool) {
	st := s.state
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.invalidated {
		return nil, false
	}
	p, ok := st.props[key]
	if !ok {
		return nil, false
	}
	return p.current, true
}

// RegisterChange attaches fn to change events for key. With opts.Initial
// the current value is delivered synchronously before RegisterChange
// returns, with a nil-valued old box when opts.Prior is also set.
func (s *Subject) RegisterChange(key string, opts observe.Options, fn func(observe.Change)) (observe.Token, error) {
	st := s.state
	st.mu.Lock()
	if st.invalidated {
		st.mu.Unlock()
		return 0, ErrInvalidated
	}
	p, ok := st.props[key]
	if !ok {
		st.mu.Unlock()
		return 0, fmt.Errorf("%w: %s", ErrUnknownProperty, key)
	}
	st.lastToken++
	tok := st.lastToken
	p.watchers[tok] = watcher{prior: opts.Prior, fn: fn}
	cur := p.current
	st.mu.Unlock()

	if opts.Initial {
		ch := observe.Change{Kind: observe.ChangeSet, Key: key, New: cur}
		if opts.Prior {
			ch.Old = observe.NewBox(nil)
		}
		fn(ch)
	}
	return tok, nil
}

// UnregisterChange detaches a registration. Unknown keys and tokens are
// ignored, as is unregistering from an invalidated subject.
func (s *Subject) UnregisterChange(key string, tok observe.Token) {
	st := s.state
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.invalidated {
		return
	}
	if p, ok := st.props[key]; ok {
		delete(p.watchers, tok)
	}
}

// WeakRef returns a weak reference to the subject.
func (s *Subject) WeakRef() observe.SubjectRef {
	return subjectRef{p: weak.Make(s)}
}

// OnInvalidate registers fn to run when the subject is destroyed. If the
// subject is already destroyed, fn runs immediately.
func (s *Subject) OnInvalidate(fn func()) {
	st := s.state
	st.mu.Lock()
	if st.invalidated {
		st.mu.Unlock()
		fn()
		return
	}
	st.hooks = append(st.hooks, fn)
	st.mu.Unlock()
}

// Invalidate destroys the subject: property storage is released, so values
// held only by the subject become collectible, and every invalidation hook
// runs once. Further accessors fail with ErrInvalidated. Idempotent.
func (s *Subject) Invalidate() {
	s.state.invalidate()
}

func (st *subjectState) invalidate() {
	st.mu.Lock()
	if st.invalidated {
		st.mu.Unlock()
		return
	}
	st.invalidated = true
	hooks := st.hooks
	st.hooks = nil
	st.props = nil
	st.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

// snapshotWatchers copies the watcher set under the subject lock so delivery
// can happen after release.
func snapshotWatchers(p *property) []watcher {
	if len(p.watchers) == 0 {
		return nil
	}
	targets := make([]watcher, 0, len(p.watchers))
	for _, w := range p.watchers {
		targets = append(targets, w)
	}
	return targets
}

// subjectRef adapts a weak pointer to observe.SubjectRef. An invalidated
// subject reads as dead even while still reachable.
type subjectRef struct {
	p weak.Pointer[Subject]
}

func (r subjectRef) Get() (observe.Subject, bool) {
	s := r.p.Value()
	if s == nil {
		return nil, false
	}
	s.state.mu.Lock()
	dead := s.state.invalidated
	s.state.mu.Unlock()
	if dead {
		return nil, false
	}
	return s, true
}
