package observe

import (
	"sync"
	"time"
	"weak"

	"github.com/observekit/observe-go/pkg/log"
)

// Combined source count limits, matching the fixed-arity convenience API.
const (
	MinLatestSources = 2
	MaxLatestSources = 9
)

// Source names one property of one subject for combined observation.
type Source struct {
	Subject Subject
	Key     string
}

// Latest is one slot of a combined snapshot. A slot is absent until its
// source delivered a value, and becomes absent again when the subject stops
// holding the value (the cache references values weakly, so a combined
// observation never extends a value's lifetime).
type Latest struct {
	box *Box
}

// Present reports whether the slot holds a value.
func (l Latest) Present() bool {
	return l.box != nil
}

// Value returns the slot's value, or nil if the slot is absent.
func (l Latest) Value() any {
	return l.box.Value()
}

// LatestFunc receives combined snapshots. updated is the index of the source
// whose change triggered the delivery; latest has one slot per source, in
// registration order.
type LatestFunc func(updated int, latest []Latest)

// latestCache holds the last seen value of every source, weakly. One mutex
// serializes stores from concurrently mutating goroutines; a consistent
// snapshot is taken under the lock and the callback runs after release.
type latestCache struct {
	mu    sync.Mutex
	slots []weak.Pointer[Box]
}

func newLatestCache(n int) *latestCache {
	return &latestCache{slots: make([]weak.Pointer[Box], n)}
}

// seed fills slot i without taking a snapshot, for pre-population from
// current values before any subscription is live.
func (c *latestCache) seed(i int, b *Box) {
	if b != nil {
		c.slots[i] = weak.Make(b)
	}
}

// store records b as the latest value of slot i and returns a snapshot of all
// slots. Slots whose referent was collected read as absent.
func (c *latestCache) store(i int, b *Box) []Latest {
	c.mu.Lock()
	if b != nil {
		c.slots[i] = weak.Make(b)
	} else {
		c.slots[i] = weak.Pointer[Box]{}
	}
	snap := make([]Latest, len(c.slots))
	for j, p := range c.slots {
		snap[j] = Latest{box: p.Value()}
	}
	c.mu.Unlock()
	return snap
}

// ObserveLatest subscribes fn to every source and delivers a combined
// snapshot on every change to any of them. Between 2 and 9 sources are
// supported; use the fixed-arity ObserveLatest2 through ObserveLatest9
// wrappers for typed positional parameters.
//
// One snapshot is delivered synchronously before ObserveLatest returns,
// attributed to source 0, so callers start from a known combined state. The
// remaining slots are pre-filled from the sources' current values.
//
// On error no subscription survives: any partially established handles are
// canceled before returning. On success the returned handles are in source
// order; cancel all of them (CancelAll) to end the combined observation.
func ObserveLatest(sources []Source, fn LatestFunc) ([]*Handle, error) {
	n := len(sources)
	if n < MinLatestSources || n > MaxLatestSources {
		return nil, ErrArity
	}
	if fn == nil {
		return nil, ErrNilCallback
	}
	for _, src := range sources {
		if src.Subject == nil {
			return nil, ErrNilSubject
		}
	}

	cache := newLatestCache(n)

	// Slot 0 is left empty and its source subscribed with an initial
	// delivery: that one synchronous callback both fills slot 0 and produces
	// the guaranteed first snapshot. The other slots are seeded directly.
	for i := 1; i < n; i++ {
		if b, ok := sources[i].Subject.CurrentValue(sources[i].Key); ok {
			cache.seed(i, b)
		}
	}

	handles := make([]*Handle, n)
	for i, src := range sources {
		h, err := observeBoxes(src.Subject, src.Key, Options{Initial: i == 0}, func(_, new *Box) {
			snap := cache.store(i, new)
			fn(i, snap)
		})
		if err != nil {
			CancelAll(handles)
			return nil, err
		}
		handles[i] = h
	}

	combineEvent(n, handles[0])
	return handles, nil
}

// combineEvent logs the establishment of a combined set. Like the guaranteed
// first snapshot, it is attributed to source 0.
func combineEvent(arity int, h *Handle) {
	logger().Log(log.Event{
		Timestamp:   time.Now(),
		Category:    log.CategoryCombine,
		SubjectUID:  h.subjectUID,
		SubjectName: h.subjectName,
		Key:         h.key,
		HandleID:    h.id,
		Combine:     &log.CombineEvent{Arity: arity, Index: 0},
	})
}

// ObserveLatest2 combines two sources with typed positional slots.
func ObserveLatest2(s0 Source, s1 Source, fn func(updated int, v0, v1 Latest)) ([]*Handle, error) {
	return ObserveLatest([]Source{s0, s1}, func(updated int, l []Latest) {
		fn(updated, l[0], l[1])
	})
}

// ObserveLatest3 combines three sources with typed positional slots.
func ObserveLatest3(s0, s1, s2 Source, fn func(updated int, v0, v1, v2 Latest)) ([]*Handle, error) {
	return ObserveLatest([]Source{s0, s1, s2}, func(updated int, l []Latest) {
		fn(updated, l[0], l[1], l[2])
	})
}

// ObserveLatest4 combines four sources with typed positional slots.
func ObserveLatest4(s0, s1, s2, s3 Source, fn func(updated int, v0, v1, v2, v3 Latest)) ([]*Handle, error) {
	return ObserveLatest([]Source{s0, s1, s2, s3}, func(updated int, l []Latest) {
		fn(updated, l[0], l[1], l[2], l[3])
	})
}

// ObserveLatest5 combines five sources with typed positional slots.
func ObserveLatest5(s0, s1, s2, s3, s4 Source, fn func(updated int, v0, v1, v2, v3, v4 Latest)) ([]*Handle, error) {
	return ObserveLatest([]Source{s0, s1, s2, s3, s4}, func(updated int, l []Latest) {
		fn(updated, l[0], l[1], l[2], l[3], l[4])
	})
}

// ObserveLatest6 combines six sources with typed positional slots.
func ObserveLatest6(s0, s1, s2, s3, s4, s5 Source, fn func(updated int, v0, v1, v2, v3, v4, v5 Latest)) ([]*Handle, error) {
	return ObserveLatest([]Source{s0, s1, s2, s3, s4, s5}, func(updated int, l []Latest) {
		fn(updated, l[0], l[1], l[2], l[3], l[4], l[5])
	})
}

// ObserveLatest7 combines seven sources with typed positional slots.
func ObserveLatest7(s0, s1, s2, s3, s4, s5, s6 Source, fn func(updated int, v0, v1, v2, v3, v4, v5, v6 Latest)) ([]*Handle, error) {
	return ObserveLatest([]Source{s0, s1, s2, s3, s4, s5, s6}, func(updated int, l []Latest) {
		fn(updated, l[0], l[1], l[2], l[3], l[4], l[5], l[6])
	})
}

// ObserveLatest8 combines eight sources with typed positional slots.
func ObserveLatest8(s0, s1, s2, s3, s4, s5, s6, s7 Source, fn func(updated int, v0, v1, v2, v3, v4, v5, v6, v7 Latest)) ([]*Handle, error) {
	return ObserveLatest([]Source{s0, s1, s2, s3, s4, s5, s6, s7}, func(updated int, l []Latest) {
		fn(updated, l[0], l[1], l[2], l[3], l[4], l[5], l[6], l[7])
	})
}

// ObserveLatest9 combines nine sources with typed positional slots.
func ObserveLatest9(s0, s1, s2, s3, s4, s5, s6, s7, s8 Source, fn func(updated int, v0, v1, v2, v3, v4, v5, v6, v7, v8 Latest)) ([]*Handle, error) {
	return ObserveLatest([]Source{s0, s1, s2, s3, s4, s5, s6, s7, s8}, func(updated int, l []Latest) {
		fn(updated, l[0], l[1], l[2], l[3], l[4], l[5], l[6], l[7], l[8])
	})
}
