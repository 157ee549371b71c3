// Package observe implements block-based property observation with a
// combine-latest combinator.
//
// The package attaches callbacks to property changes on subjects - objects
// implementing the Subject capability (see package model for the reference
// host). It manages the full observation lifecycle so callers never balance
// register/unregister pairs by hand.
//
// # Simple observation
//
//	h, err := observe.Observe(button, "value", func(v any) {
//	    fmt.Println("value is now", v)
//	})
//	...
//	h.Cancel()
//
// By default the callback fires once immediately with the current value, then
// on every subsequent change. ObserveWith exposes the Initial and Prior
// options for other combinations.
//
// # Observe latest
//
//	handles, err := observe.ObserveLatest2(
//	    observe.Source{Subject: panel, Key: "borderColor"},
//	    observe.Source{Subject: button, Key: "title"},
//	    func(updated int, color, title observe.Latest) { ... },
//	)
//	...
//	observe.CancelAll(handles)
//
// The callback re-fires with the latest known value of every source whenever
// any one of them changes. Latest values are cached weakly: the combinator
// never extends the lifetime of an observed value, and a value whose box was
// destroyed surfaces as an absent Latest, never as a stale pointer.
//
// # Threading
//
// Callbacks run synchronously on whichever goroutine performed the mutation,
// as soon as the change happens. Callbacks for different sources may therefore
// run concurrently; synchronize inside the callback if it touches shared
// state. No internal lock is ever held while a callback runs, so callbacks
// may freely subscribe and cancel.
//
// # Lifetime
//
// Handles are retained by a per-subject registry, so dropping the returned
// handle without canceling keeps the subscription alive for as long as the
// subject lives. Subjects are referenced weakly throughout: observing an
// object does not keep it alive, and once a subject is destroyed its
// registrations are torn down by the host with no further callbacks.
//
// # Contract violations
//
// Double registration, dispatch on a never-registered handle, and
// collection-mutation change events are programmer errors, not runtime
// conditions. They are logged through the configured Logger and ignored;
// call SetStrict(true) (e.g. in tests) to panic on them instead.
package observe
