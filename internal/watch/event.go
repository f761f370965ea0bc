package watch

import (
	"errors"
	"fmt"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// EventType classifies a single change notification on a watch stream.
type EventType string

const (
	// Added signals a resource that came into existence or into scope.
	Added EventType = "ADDED"
	// Modified signals an update to an existing resource.
	Modified EventType = "MODIFIED"
	// Deleted signals a resource removal.
	Deleted EventType = "DELETED"
	// Bookmark carries a resource version checkpoint with no resource
	// change attached. Callers use it to resume a watch cheaply.
	Bookmark EventType = "BOOKMARK"
	// Error signals either a server-reported error record or a local
	// decode failure; see Event.Err.
	Error EventType = "ERROR"
)

// Event is a single decoded record from a watch stream. Events are
// produced one at a time and owned by the receiving iteration step; the
// decoder never retains them.
type Event struct {
	Type EventType

	// Object is the decoded resource payload. Nil for events without an
	// object and for local decode failures.
	Object *unstructured.Unstructured

	// Err is set on Error-typed events produced locally: per-record decode
	// failures (stream continues) and the terminal truncated-stream
	// condition (stream ends).
	Err error
}

// ErrTruncatedStream reports that the server closed the stream in the
// middle of a record. It is terminal: the event carrying it is the last
// one the stream yields.
var ErrTruncatedStream = errors.New("watch stream truncated mid-record")

// DecodeError reports a single record that could not be decoded. It is
// recoverable; the stream continues with the next record.
type DecodeError struct {
	Record []byte
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding watch record: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
