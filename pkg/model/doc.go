// Package model provides the reference observable object: a subject with
// typed, validated properties that satisfies observe.Subject.
//
// # Basic Usage
//
//	sensor := model.New("sensor",
//		&model.PropertyMetadata{Key: "power", Type: model.DataTypeFloat64, Unit: "W", Default: 0.0},
//		&model.PropertyMetadata{Key: "name", Type: model.DataTypeString, Default: ""},
//	)
//
//	if err := sensor.Set("power", 42.5); err != nil {
//		// validation failed, no change was delivered
//	}
//
// Every successful Set allocates a fresh value box and delivers one change
// event to each registered watcher, synchronously on the calling goroutine.
// Array-typed properties additionally support Append, which delivers an
// insert event rather than a whole-value set.
//
// # Lifetime
//
// A subject is destroyed either explicitly with Invalidate or implicitly when
// the garbage collector finds it unreachable. Both paths run the registered
// invalidation hooks exactly once and release the property storage, so values
// held only by the subject become collectible.
package model
