package transport

import (
	"fmt"
	"net/http"
)

// Authorizer attaches credentials to an outgoing request. Implementations
// must be safe for concurrent use; the same authorizer decorates every
// request issued through the chain.
type Authorizer interface {
	Authorize(req *http.Request) error
}

// NewAuthStage decorates every request with the given authorizer. A nil
// authorizer yields a pass-through stage (anonymous access).
func NewAuthStage(auth Authorizer) Stage {
	if auth == nil {
		return StageFunc(func(inner http.RoundTripper) http.RoundTripper {
			return inner
		})
	}
	return &authStage{auth: auth}
}

type authStage struct {
	auth Authorizer
}

func (s *authStage) Wrap(inner http.RoundTripper) http.RoundTripper {
	return &authRoundTripper{auth: s.auth, inner: inner}
}

type authRoundTripper struct {
	auth  Authorizer
	inner http.RoundTripper
}

func (rt *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone before mutating headers: RoundTrippers must not modify the
	// caller's request.
	req = req.Clone(req.Context())
	if err := rt.auth.Authorize(req); err != nil {
		return nil, fmt.Errorf("attaching credentials: %w", err)
	}
	return rt.inner.RoundTrip(req)
}
