// Package watch decodes long-lived watch response streams into discrete
// typed events.
//
// The wire format is an unbounded chunked stream of newline-delimited JSON
// records, each of the form:
//
//	{"type": "ADDED|MODIFIED|DELETED|ERROR|BOOKMARK", "object": {...}}
//
// A Stream reads the body in fixed-size chunks, splits on record
// boundaries, and decodes each record independently into an Event with an
// unstructured resource payload. A malformed record yields an Error event
// without terminating the stream; a peer close in the middle of a record
// yields a terminal Error event carrying ErrTruncatedStream.
//
// Each Stream owns its body handle and decode buffer, so concurrent
// watches are fully independent. The body is closed exactly once on every
// exit path.
package watch
