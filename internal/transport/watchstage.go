package transport

import (
	"context"
	"io"
	"net/http"
	"sync"
)

// contextKey is a custom type for context keys to avoid collisions with
// other packages storing values under the same string key.
type contextKey string

const watchMarkerKey contextKey = "clusterclient_watch"

// WithWatchMarker marks the request carried by ctx as a watch request.
// The watch stage intercepts marked responses at the innermost chain
// position.
func WithWatchMarker(ctx context.Context) context.Context {
	return context.WithValue(ctx, watchMarkerKey, true)
}

// IsWatchRequest reports whether the request was marked as a watch.
func IsWatchRequest(req *http.Request) bool {
	marked, ok := req.Context().Value(watchMarkerKey).(bool)
	return ok && marked
}

// watchStage intercepts responses to watch-marked requests. It must sit
// directly adjacent to the base transport so it observes the response
// stream before any outer stage can buffer it. For watch responses it
// wraps the body in a session handle that closes exactly once and reports
// session start/end, feeding the active-session gauge.
type watchStage struct {
	onStart func()
	onEnd   func()
}

// NewWatchStage creates the watch-interception stage. Either hook may be
// nil.
func NewWatchStage(onStart, onEnd func()) Stage {
	return &watchStage{onStart: onStart, onEnd: onEnd}
}

func (s *watchStage) Wrap(inner http.RoundTripper) http.RoundTripper {
	return &watchRoundTripper{stage: s, inner: inner}
}

type watchRoundTripper struct {
	stage *watchStage
	inner http.RoundTripper
}

func (rt *watchRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := rt.inner.RoundTrip(req)
	if err != nil || !IsWatchRequest(req) {
		return resp, err
	}

	if rt.stage.onStart != nil {
		rt.stage.onStart()
	}
	resp.Body = &sessionBody{body: resp.Body, onEnd: rt.stage.onEnd}
	return resp, nil
}

// sessionBody is the response body handle of one watch session. Close is
// idempotent: the session-end hook fires exactly once no matter how many
// exit paths race to release the body.
type sessionBody struct {
	body  io.ReadCloser
	onEnd func()

	once     sync.Once
	closeErr error
}

func (b *sessionBody) Read(p []byte) (int, error) {
	return b.body.Read(p)
}

func (b *sessionBody) Close() error {
	b.once.Do(func() {
		b.closeErr = b.body.Close()
		if b.onEnd != nil {
			b.onEnd()
		}
	})
	return b.closeErr
}
