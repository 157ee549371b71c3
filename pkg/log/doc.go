// Package log provides structured event logging for the observation layer.
//
// This package defines the Logger interface and Event types for capturing
// observation lifecycle events (subscriptions, cancellations, combine-latest
// establishment, contract violations). It is separate from operational
// logging (slog) - event capture provides a complete machine-readable trace
// for debugging observer bookkeeping.
//
// # Basic Usage
//
// Applications configure logging by providing a Logger implementation:
//
//	// For development: log to console via slog
//	observe.SetLogger(log.NewSlogAdapter(slog.Default()))
//
//	// For production analysis: write to binary file
//	fl, _ := log.NewFileLogger("/var/log/observe/events.olog")
//	observe.SetLogger(fl)
//
//	// Both: use MultiLogger
//	observe.SetLogger(log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fl,
//	))
//
// # Event Categories
//
//   - Subscribe: a handle became active on a subject property
//   - Cancel: a handle was canceled
//   - Combine: a combine-latest set was established
//   - Violation: a programmer error was detected at dispatch time
//
// # File Format
//
// Log files use CBOR encoding with integer map keys. Use Reader to stream
// events back with optional filtering.
package log
