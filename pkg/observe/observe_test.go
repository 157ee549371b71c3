package observe_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/observekit/observe-go/pkg/log"
	"github.com/observekit/observe-go/pkg/model"
	"github.com/observekit/observe-go/pkg/observe"
)

func newCounterSubject(t *testing.T) *model.Subject {
	t.Helper()
	return model.New("counter",
		&model.PropertyMetadata{Key: "count", Type: model.DataTypeInt, Default: 0},
		&model.PropertyMetadata{Key: "label", Type: model.DataTypeString, Default: ""},
		&model.PropertyMetadata{Key: "items", Type: model.DataTypeArray, Default: []any{}},
	)
}

func TestObserveDeliversInitialAndChanges(t *testing.T) {
	s := newCounterSubject(t)

	var got []any
	h, err := observe.Observe(s, "count", func(new any) {
		got = append(got, new)
	})
	if err != nil {
		t.Fatalf("Observe failed: %v", err)
	}

	if len(got) != 1 || got[0] != 0 {
		t.Fatalf("after subscribe got = %v, want [0]", got)
	}

	if err := s.Set("count", 5); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if len(got) != 2 || got[1] != 5 {
		t.Fatalf("after set got = %v, want [0 5]", got)
	}

	h.Cancel()

	if err := s.Set("count", 6); err != nil {
		t.Fatalf("Set after cancel failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("callback ran after cancel: got = %v", got)
	}
}

func TestObserveWithNoInitial(t *testing.T) {
	s := newCounterSubject(t)

	calls := 0
	h, err := observe.ObserveWith(s, "count", observe.Options{}, func(old, new any) {
		calls++
		if old != nil {
			t.Errorf("old = %v, want nil without prior", old)
		}
	})
	if err != nil {
		t.Fatalf("ObserveWith failed: %v", err)
	}
	defer h.Cancel()

	if calls != 0 {
		t.Fatalf("calls = %d before any change, want 0", calls)
	}

	if err := s.Set("count", 1); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d after one change, want 1", calls)
	}
}

func TestObserveWithPrior(t *testing.T) {
	s := newCounterSubject(t)

	type pair struct{ old, new any }
	var got []pair
	h, err := observe.ObserveWith(s, "count", observe.Options{Initial: true, Prior: true}, func(old, new any) {
		got = append(got, pair{old, new})
	})
	if err != nil {
		t.Fatalf("ObserveWith failed: %v", err)
	}
	defer h.Cancel()

	if len(got) != 1 || got[0].old != nil || got[0].new != 0 {
		t.Fatalf("initial delivery = %+v, want {nil 0}", got)
	}

	if err := s.Set("count", 7); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if len(got) != 2 || got[1].old != 0 || got[1].new != 7 {
		t.Fatalf("change delivery = %+v, want {0 7}", got[1:])
	}
}

func TestObserveRejectsNilArguments(t *testing.T) {
	s := newCounterSubject(t)

	if _, err := observe.Observe(nil, "count", func(any) {}); !errors.Is(err, observe.ErrNilSubject) {
		t.Errorf("Observe(nil subject) err = %v, want ErrNilSubject", err)
	}
	if _, err := observe.Observe(s, "count", nil); !errors.Is(err, observe.ErrNilCallback) {
		t.Errorf("Observe(nil callback) err = %v, want ErrNilCallback", err)
	}
}

func TestObserveDestroyedSubjectFails(t *testing.T) {
	s := newCounterSubject(t)
	s.Invalidate()

	if _, err := observe.Observe(s, "count", func(any) {}); !errors.Is(err, observe.ErrSubjectDestroyed) {
		t.Errorf("Observe on destroyed subject err = %v, want ErrSubjectDestroyed", err)
	}
}

func TestObserveUnknownKeyFails(t *testing.T) {
	s := newCounterSubject(t)

	h, err := observe.Observe(s, "missing", func(any) {})
	if err == nil {
		t.Fatal("Observe of unknown key succeeded")
	}
	if h != nil {
		t.Errorf("handle = %v on error, want nil", h)
	}
}

func TestSubscribeThenImmediateCancel(t *testing.T) {
	s := newCounterSubject(t)

	h, err := observe.ObserveWith(s, "count", observe.Options{}, func(_, _ any) {
		t.Error("callback ran for a canceled observation")
	})
	if err != nil {
		t.Fatalf("ObserveWith failed: %v", err)
	}

	h.Cancel()

	if err := s.Set("count", 1); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	s := newCounterSubject(t)

	h, err := observe.Observe(s, "count", func(any) {})
	if err != nil {
		t.Fatalf("Observe failed: %v", err)
	}

	h.Cancel()
	h.Cancel()

	if h.IsActive() {
		t.Error("IsActive() = true after cancel, want false")
	}
}

func TestCancelAfterInvalidateIsNoop(t *testing.T) {
	s := newCounterSubject(t)

	h, err := observe.Observe(s, "count", func(any) {})
	if err != nil {
		t.Fatalf("Observe failed: %v", err)
	}

	s.Invalidate()

	if h.IsActive() {
		t.Error("IsActive() = true after subject invalidation, want false")
	}
	h.Cancel()
}

func TestHandleRetainedWithoutCallerReference(t *testing.T) {
	s := newCounterSubject(t)

	var calls atomic.Int32
	if _, err := observe.ObserveWith(s, "count", observe.Options{}, func(_, _ any) {
		calls.Add(1)
	}); err != nil {
		t.Fatalf("ObserveWith failed: %v", err)
	}

	if err := s.Set("count", 3); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d after dropping the handle, want 1", calls.Load())
	}
}

func TestStrictModePanicsOnCollectionChange(t *testing.T) {
	observe.SetStrict(true)
	defer observe.SetStrict(false)

	s := newCounterSubject(t)

	h, err := observe.ObserveWith(s, "items", observe.Options{}, func(_, _ any) {
		t.Error("callback ran for a collection change")
	})
	if err != nil {
		t.Fatalf("ObserveWith failed: %v", err)
	}
	defer h.Cancel()

	defer func() {
		if recover() == nil {
			t.Error("Append did not panic in strict mode")
		}
	}()
	_ = s.Append("items", "x")
}

func TestCollectionChangeIsDroppedWhenNotStrict(t *testing.T) {
	logger := &mockLogger{}
	logger.On("Log", mock.Anything).Return()
	observe.SetLogger(logger)
	defer observe.SetLogger(nil)

	s := newCounterSubject(t)

	calls := 0
	h, err := observe.ObserveWith(s, "items", observe.Options{}, func(_, _ any) {
		calls++
	})
	if err != nil {
		t.Fatalf("ObserveWith failed: %v", err)
	}
	defer h.Cancel()

	if err := s.Append("items", "x"); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	if calls != 0 {
		t.Errorf("calls = %d for a collection change, want 0", calls)
	}

	if v, err := s.Get("items"); err != nil || len(v.([]any)) != 1 {
		t.Errorf("Get(items) = %v, %v; want one element", v, err)
	}

	vio, ok := loggedEvent(logger, log.CategoryViolation)
	if !ok {
		t.Fatal("no violation event was logged")
	}
	if vio.SubjectName != "counter" || vio.Key != "items" {
		t.Errorf("violation subject/key = %q/%q, want counter/items", vio.SubjectName, vio.Key)
	}
}

func TestLifecycleEventsAreLogged(t *testing.T) {
	logger := &mockLogger{}
	logger.On("Log", mock.Anything).Return()
	observe.SetLogger(logger)
	defer observe.SetLogger(nil)

	s := newCounterSubject(t)

	h, err := observe.ObserveWith(s, "count", observe.Options{}, func(_, _ any) {})
	if err != nil {
		t.Fatalf("ObserveWith failed: %v", err)
	}
	h.Cancel()

	sub, ok := loggedEvent(logger, log.CategorySubscribe)
	if !ok {
		t.Fatal("no subscribe event was logged")
	}
	if sub.SubjectName != "counter" {
		t.Errorf("subscribe SubjectName = %q, want counter", sub.SubjectName)
	}
	if sub.SubjectUID != s.UID() {
		t.Errorf("subscribe SubjectUID = %q, want %q", sub.SubjectUID, s.UID())
	}
	if sub.Key != "count" {
		t.Errorf("subscribe Key = %q, want count", sub.Key)
	}

	if !loggedCategory(logger, log.CategoryCancel) {
		t.Error("no cancel event was logged")
	}
}

func TestConcurrentSetsReachEveryObserver(t *testing.T) {
	const observers = 4
	const writers = 4
	const setsPerWriter = 200

	s := newCounterSubject(t)

	counts := make([]atomic.Int64, observers)
	handles := make([]*observe.Handle, observers)
	for i := range handles {
		h, err := observe.ObserveWith(s, "count", observe.Options{}, func(_, _ any) {
			counts[i].Add(1)
		})
		if err != nil {
			t.Fatalf("ObserveWith failed: %v", err)
		}
		handles[i] = h
	}

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < setsPerWriter; n++ {
				if err := s.Set("count", n); err != nil {
					t.Errorf("Set failed: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	want := int64(writers * setsPerWriter)
	for i := range counts {
		if got := counts[i].Load(); got != want {
			t.Errorf("observer %d saw %d changes, want %d", i, got, want)
		}
	}

	observe.CancelAll(handles)
}

func TestConcurrentCancelDuringSets(t *testing.T) {
	s := newCounterSubject(t)

	const handlesN = 8
	handles := make([]*observe.Handle, handlesN)
	var calls atomic.Int64
	for i := range handles {
		h, err := observe.ObserveWith(s, "count", observe.Options{}, func(_, _ any) {
			calls.Add(1)
		})
		if err != nil {
			t.Fatalf("ObserveWith failed: %v", err)
		}
		handles[i] = h
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for n := 0; n < 500; n++ {
			_ = s.Set("count", n)
		}
	}()
	go func() {
		defer wg.Done()
		for _, h := range handles {
			h.Cancel()
		}
	}()
	wg.Wait()

	settled := calls.Load()
	if err := s.Set("count", -1); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if calls.Load() != settled {
		t.Error("callback ran after all handles were canceled")
	}
}

// mockLogger records observation events for assertions.
type mockLogger struct {
	mock.Mock
	mu     sync.Mutex
	events []log.Event
}

func (m *mockLogger) Log(event log.Event) {
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
	m.Called(event)
}

func loggedCategory(m *mockLogger, cat log.Category) bool {
	_, ok := loggedEvent(m, cat)
	return ok
}

func loggedEvent(m *mockLogger, cat log.Category) (log.Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ev := range m.events {
		if ev.Category == cat {
			return ev, true
		}
	}
	return log.Event{}, false
}
