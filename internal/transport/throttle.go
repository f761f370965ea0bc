package transport

import (
	"fmt"
	"net/http"

	"k8s.io/client-go/util/flowcontrol"
)

// NewThrottleStage limits the rate of outgoing requests with a token
// bucket of the given QPS and burst. Watch requests consume one token at
// initiation and are not throttled afterwards. A non-positive qps
// disables throttling.
func NewThrottleStage(qps float32, burst int) Stage {
	if qps <= 0 {
		return StageFunc(func(inner http.RoundTripper) http.RoundTripper {
			return inner
		})
	}
	limiter := flowcontrol.NewTokenBucketRateLimiter(qps, burst)
	return &throttleStage{limiter: limiter}
}

type throttleStage struct {
	limiter flowcontrol.RateLimiter
}

func (s *throttleStage) Wrap(inner http.RoundTripper) http.RoundTripper {
	return &throttleRoundTripper{limiter: s.limiter, inner: inner}
}

type throttleRoundTripper struct {
	limiter flowcontrol.RateLimiter
	inner   http.RoundTripper
}

func (rt *throttleRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := rt.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("client rate limiter: %w", err)
	}
	return rt.inner.RoundTrip(req)
}
