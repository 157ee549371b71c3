package log

import (
	"time"
)

// Event represents an observation log event.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"2,keyasint"`

	// SubjectUID uniquely identifies the observed subject (UUID).
	SubjectUID string `cbor:"3,keyasint,omitempty"`

	// SubjectName is the human-readable subject name, if the host provides one.
	SubjectName string `cbor:"4,keyasint,omitempty"`

	// Key is the observed property key.
	Key string `cbor:"5,keyasint,omitempty"`

	// HandleID identifies the observation handle.
	HandleID uint64 `cbor:"6,keyasint,omitempty"`

	// Type-specific payload (at most one of these is set).
	Combine   *CombineEvent   `cbor:"7,keyasint,omitempty"` // Combine-latest establishment
	Violation *ViolationEvent `cbor:"8,keyasint,omitempty"` // Contract violations
}

// Category classifies the event type.
type Category uint8

const (
	// CategorySubscribe indicates a handle became active.
	CategorySubscribe Category = 0
	// CategoryCancel indicates a handle was canceled.
	CategoryCancel Category = 1
	// CategoryCombine indicates a combine-latest set was established.
	CategoryCombine Category = 2
	// CategoryViolation indicates a detected programmer error.
	CategoryViolation Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategorySubscribe:
		return "SUBSCRIBE"
	case CategoryCancel:
		return "CANCEL"
	case CategoryCombine:
		return "COMBINE"
	case CategoryViolation:
		return "VIOLATION"
	default:
		return "UNKNOWN"
	}
}

// CombineEvent captures the establishment of a combine-latest set.
type CombineEvent struct {
	// Arity is the number of combined sources.
	Arity int `cbor:"1,keyasint"`

	// Index is the source index of the handle within the set.
	Index int `cbor:"2,keyasint"`
}

// ViolationEvent captures a detected contract violation.
type ViolationEvent struct {
	// Kind names the violation class (lifecycle, unsupported change kind).
	Kind string `cbor:"1,keyasint"`

	// Message describes what was violated.
	Message string `cbor:"2,keyasint,omitempty"`
}
