package model

import (
	"errors"
	"testing"

	"github.com/observekit/observe-go/pkg/observe"
)

func newTestSubject() *Subject {
	return New("meter",
		&PropertyMetadata{Key: "power", Type: DataTypeFloat64, Unit: "W", Default: 0.0, MinValue: 0.0, MaxValue: 10000.0},
		&PropertyMetadata{Key: "label", Type: DataTypeString, Default: "unnamed"},
		&PropertyMetadata{Key: "online", Type: DataTypeBool, Default: false},
		&PropertyMetadata{Key: "tags", Type: DataTypeArray, Default: []any{}},
		&PropertyMetadata{Key: "extra", Type: DataTypeAny, Nullable: true},
	)
}

func TestSubjectDefaults(t *testing.T) {
	s := newTestSubject()

	v, err := s.Get("power")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if v != 0.0 {
		t.Errorf("power = %v, want 0", v)
	}

	v, err = s.Get("label")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if v != "unnamed" {
		t.Errorf("label = %v, want unnamed", v)
	}
}

func TestSubjectIdentity(t *testing.T) {
	a := New("a")
	b := New("b")

	if a.SubjectID() == b.SubjectID() {
		t.Error("two subjects share a SubjectID")
	}
	if a.UID() == b.UID() {
		t.Error("two subjects share a UID")
	}
	if a.Name() != "a" {
		t.Errorf("Name() = %s, want a", a.Name())
	}
}

func TestSetValidation(t *testing.T) {
	s := newTestSubject()

	tests := []struct {
		name    string
		key     string
		value   any
		wantErr error
	}{
		{"valid float", "power", 42.5, nil},
		{"integer accepted for float", "power", 42, nil},
		{"wrong type", "power", "lots", ErrPropertyValueType},
		{"below minimum", "power", -1.0, ErrPropertyOutOfRange},
		{"above maximum", "power", 10001.0, ErrPropertyOutOfRange},
		{"nil not nullable", "label", nil, ErrPropertyNotNullable},
		{"nil nullable", "extra", nil, nil},
		{"bool ok", "online", true, nil},
		{"bool wrong type", "online", 1, ErrPropertyValueType},
		{"unknown property", "missing", 1, ErrUnknownProperty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Set(tt.key, tt.value)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Set(%s, %v) = %v, want nil", tt.key, tt.value, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Set(%s, %v) = %v, want %v", tt.key, tt.value, err, tt.wantErr)
			}
		})
	}
}

func TestFailedSetDeliversNothing(t *testing.T) {
	s := newTestSubject()

	calls := 0
	if _, err := s.RegisterChange("power", observe.Options{}, func(observe.Change) {
		calls++
	}); err != nil {
		t.Fatalf("RegisterChange failed: %v", err)
	}

	if err := s.Set("power", "bogus"); err == nil {
		t.Fatal("invalid Set succeeded")
	}
	if calls != 0 {
		t.Errorf("calls = %d after failed set, want 0", calls)
	}
}

func TestRegisterChangeInitial(t *testing.T) {
	s := newTestSubject()
	if err := s.Set("power", 5.0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	var got []observe.Change
	tok, err := s.RegisterChange("power", observe.Options{Initial: true, Prior: true}, func(ch observe.Change) {
		got = append(got, ch)
	})
	if err != nil {
		t.Fatalf("RegisterChange failed: %v", err)
	}
	defer s.UnregisterChange("power", tok)

	if len(got) != 1 {
		t.Fatalf("got %d initial deliveries, want 1", len(got))
	}
	ch := got[0]
	if ch.Kind != observe.ChangeSet {
		t.Errorf("Kind = %v, want SET", ch.Kind)
	}
	if ch.New.Value() != 5.0 {
		t.Errorf("New = %v, want 5", ch.New.Value())
	}
	if ch.Old == nil || ch.Old.Value() != nil {
		t.Errorf("initial Old = %v, want nil-valued box", ch.Old)
	}

	if err := s.Set("power", 6.0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d deliveries, want 2", len(got))
	}
	if got[1].Old.Value() != 5.0 || got[1].New.Value() != 6.0 {
		t.Errorf("change = %v -> %v, want 5 -> 6", got[1].Old.Value(), got[1].New.Value())
	}
}

func TestRegisterChangeWithoutPriorOmitsOld(t *testing.T) {
	s := newTestSubject()

	var got []observe.Change
	tok, err := s.RegisterChange("power", observe.Options{}, func(ch observe.Change) {
		got = append(got, ch)
	})
	if err != nil {
		t.Fatalf("RegisterChange failed: %v", err)
	}
	defer s.UnregisterChange("power", tok)

	if err := s.Set("power", 1.0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d deliveries, want 1", len(got))
	}
	if got[0].Old != nil {
		t.Errorf("Old = %v without prior, want nil", got[0].Old)
	}
}

func TestUnregisterStopsDelivery(t *testing.T) {
	s := newTestSubject()

	calls := 0
	tok, err := s.RegisterChange("power", observe.Options{}, func(observe.Change) {
		calls++
	})
	if err != nil {
		t.Fatalf("RegisterChange failed: %v", err)
	}

	s.UnregisterChange("power", tok)
	s.UnregisterChange("power", tok) // unknown token, ignored

	if err := s.Set("power", 1.0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if calls != 0 {
		t.Errorf("calls = %d after unregister, want 0", calls)
	}
}

func TestAppendDeliversInsert(t *testing.T) {
	s := newTestSubject()

	var got []observe.Change
	tok, err := s.RegisterChange("tags", observe.Options{}, func(ch observe.Change) {
		got = append(got, ch)
	})
	if err != nil {
		t.Fatalf("RegisterChange failed: %v", err)
	}
	defer s.UnregisterChange("tags", tok)

	if err := s.Append("tags", "alpha"); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("got %d deliveries, want 1", len(got))
	}
	if got[0].Kind != observe.ChangeInsert {
		t.Errorf("Kind = %v, want INSERT", got[0].Kind)
	}
	if got[0].New.Value() != "alpha" {
		t.Errorf("New = %v, want alpha", got[0].New.Value())
	}

	v, err := s.Get("tags")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	arr := v.([]any)
	if len(arr) != 1 || arr[0] != "alpha" {
		t.Errorf("tags = %v, want [alpha]", arr)
	}

	if err := s.Append("power", 1.0); !errors.Is(err, ErrPropertyNotArray) {
		t.Errorf("Append to non-array err = %v, want ErrPropertyNotArray", err)
	}
}

func TestInvalidate(t *testing.T) {
	s := newTestSubject()

	hookRuns := 0
	s.OnInvalidate(func() { hookRuns++ })

	s.Invalidate()
	s.Invalidate()

	if hookRuns != 1 {
		t.Errorf("hook ran %d times, want 1", hookRuns)
	}

	if _, err := s.Get("power"); !errors.Is(err, ErrInvalidated) {
		t.Errorf("Get after invalidate err = %v, want ErrInvalidated", err)
	}
	if err := s.Set("power", 1.0); !errors.Is(err, ErrInvalidated) {
		t.Errorf("Set after invalidate err = %v, want ErrInvalidated", err)
	}
	if _, err := s.RegisterChange("power", observe.Options{}, func(observe.Change) {}); !errors.Is(err, ErrInvalidated) {
		t.Errorf("RegisterChange after invalidate err = %v, want ErrInvalidated", err)
	}
	if _, ok := s.CurrentValue("power"); ok {
		t.Error("CurrentValue returned a value after invalidate")
	}

	// Late hooks run immediately.
	late := 0
	s.OnInvalidate(func() { late++ })
	if late != 1 {
		t.Errorf("late hook ran %d times, want 1", late)
	}
}

func TestWeakRefReportsDeadAfterInvalidate(t *testing.T) {
	s := newTestSubject()
	ref := s.WeakRef()

	if _, alive := ref.Get(); !alive {
		t.Fatal("ref dead while subject alive")
	}

	s.Invalidate()

	if _, alive := ref.Get(); alive {
		t.Error("ref alive after invalidate")
	}
}

func TestDuplicatePropertyPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("New with duplicate keys did not panic")
		}
	}()
	New("dup",
		&PropertyMetadata{Key: "k", Type: DataTypeInt},
		&PropertyMetadata{Key: "k", Type: DataTypeInt},
	)
}
