package watch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// defaultChunkSize is the read granularity of the stream. Cancellation
// takes effect within one read of this size.
const defaultChunkSize = 4096

// Stream decodes a live watch response body into a sequence of events.
// It is single-pass and not restartable: resuming a watch is the caller's
// responsibility, using the last resource version it observed.
//
// The events channel is unbuffered, so the caller's consumption pace is
// the only source of back-pressure. Events are delivered strictly in
// arrival order.
type Stream struct {
	body      io.ReadCloser
	events    chan Event
	chunkSize int
	observer  func(EventType)

	stopped   atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// Option configures a Stream.
type Option func(*Stream)

// WithChunkSize overrides the read chunk size. Intended for tests.
func WithChunkSize(n int) Option {
	return func(s *Stream) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// WithObserver registers a callback invoked for every yielded event type.
// Used to feed metrics without coupling the decoder to an exporter.
func WithObserver(fn func(EventType)) Option {
	return func(s *Stream) {
		s.observer = fn
	}
}

// NewStream starts decoding the given response body. The body is closed
// exactly once on every termination path: normal exhaustion, terminal
// decode error, Stop, or context cancellation. Cancelling ctx aborts a
// blocked read promptly by closing the body.
func NewStream(ctx context.Context, body io.ReadCloser, opts ...Option) *Stream {
	s := &Stream{
		body:      body,
		events:    make(chan Event),
		chunkSize: defaultChunkSize,
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.run(ctx)
	return s
}

// Events returns the channel of decoded events. The channel is closed
// when the stream terminates for any reason.
func (s *Stream) Events() <-chan Event {
	return s.events
}

// Stop terminates the stream and releases the response body. Safe to call
// concurrently with event consumption and more than once.
func (s *Stream) Stop() {
	s.stopped.Store(true)
	s.closeBody()
}

func (s *Stream) closeBody() {
	s.closeOnce.Do(func() {
		s.closeErr = s.body.Close()
	})
}

func (s *Stream) run(ctx context.Context) {
	defer close(s.events)
	defer s.closeBody()

	// Unblock a pending read as soon as the caller cancels.
	unregister := context.AfterFunc(ctx, s.closeBody)
	defer unregister()

	var (
		buf     []byte
		readErr error
	)
	chunk := make([]byte, s.chunkSize)

	for {
		// Drain every complete record before reading more, so events are
		// yielded as soon as their record boundary arrives.
		for {
			idx := bytes.IndexByte(buf, '\n')
			if idx < 0 {
				break
			}
			record := buf[:idx]
			buf = buf[idx+1:]
			if len(bytes.TrimSpace(record)) == 0 {
				continue
			}
			if !s.yield(ctx, decodeRecord(record)) {
				return
			}
		}

		if readErr != nil {
			s.finish(ctx, buf, readErr)
			return
		}

		n, err := s.body.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			if ctx.Err() != nil || s.stopped.Load() {
				// Cancelled or stopped: terminate without further events.
				return
			}
			// Loop once more to drain records that arrived with the
			// final read before deciding how to terminate.
			readErr = err
		}
	}
}

// finish handles stream termination after the final read.
func (s *Stream) finish(ctx context.Context, buf []byte, readErr error) {
	trailing := bytes.TrimSpace(buf)
	switch {
	case len(trailing) > 0:
		// The peer closed the stream mid-record. Surfacing this (rather
		// than dropping the partial record) keeps data loss visible.
		s.yield(ctx, Event{
			Type: Error,
			Err:  fmt.Errorf("%w (%d bytes pending)", ErrTruncatedStream, len(trailing)),
		})
	case readErr != io.EOF:
		s.yield(ctx, Event{Type: Error, Err: readErr})
	}
	// Plain EOF with an empty buffer: normal exhaustion.
}

// yield delivers an event to the caller, honoring cancellation. Returns
// false when the stream should terminate instead.
func (s *Stream) yield(ctx context.Context, ev Event) bool {
	select {
	case s.events <- ev:
		if s.observer != nil {
			s.observer(ev.Type)
		}
		return true
	case <-ctx.Done():
		return false
	}
}

// rawEvent is the wire shape of one watch record.
type rawEvent struct {
	Type   string          `json:"type"`
	Object json.RawMessage `json:"object"`
}

func decodeRecord(record []byte) Event {
	var raw rawEvent
	if err := json.Unmarshal(record, &raw); err != nil {
		return Event{Type: Error, Err: &DecodeError{Record: record, Err: err}}
	}

	eventType := EventType(raw.Type)
	switch eventType {
	case Added, Modified, Deleted, Bookmark, Error:
	default:
		return Event{Type: Error, Err: &DecodeError{
			Record: record,
			Err:    fmt.Errorf("unknown event type %q", raw.Type),
		}}
	}

	var obj *unstructured.Unstructured
	if len(raw.Object) > 0 && !bytes.Equal(raw.Object, []byte("null")) {
		obj = &unstructured.Unstructured{}
		if err := obj.UnmarshalJSON(raw.Object); err != nil {
			return Event{Type: Error, Err: &DecodeError{Record: record, Err: err}}
		}
	}

	return Event{Type: eventType, Object: obj}
}
