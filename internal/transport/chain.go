package transport

import (
	"errors"
	"net/http"
)

// Stage is a composable unit that can inspect or transform a
// request/response pair before handing off to the next stage.
type Stage interface {
	// Wrap returns a RoundTripper that delegates to inner.
	Wrap(inner http.RoundTripper) http.RoundTripper
}

// StageFunc adapts a function to the Stage interface.
type StageFunc func(inner http.RoundTripper) http.RoundTripper

func (f StageFunc) Wrap(inner http.RoundTripper) http.RoundTripper {
	return f(inner)
}

// ErrChainBuilt is returned when the chain topology is modified after
// Build. Topology is fixed for the client's lifetime once constructed.
var ErrChainBuilt = errors.New("transport: chain already built")

// Chain is an ordered collection of stages around a base transport.
// Stages are addressed by index, outermost first; the base transport sits
// conceptually after the last stage. Keeping an explicit slice instead of
// linked stages with back-pointers makes insertion a slice operation
// rather than pointer surgery.
//
// A Chain is mutable only until Build is called. The built RoundTripper
// is immutable and safe for concurrent use.
type Chain struct {
	base   http.RoundTripper
	stages []Stage
	// pinned counts stages at the tail of the slice that were placed with
	// InsertInner and must stay adjacent to the transport.
	pinned int
	built  http.RoundTripper
}

// NewChain creates a chain around the given base transport.
func NewChain(base http.RoundTripper) *Chain {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Chain{base: base}
}

// Use adds a stage outside any transport-pinned stage. Stages added first
// end up outermost, so bootstrap adds them in caller-facing order.
func (c *Chain) Use(stage Stage) error {
	if c.built != nil {
		return ErrChainBuilt
	}
	at := len(c.stages) - c.pinned
	c.stages = append(c.stages, nil)
	copy(c.stages[at+1:], c.stages[at:])
	c.stages[at] = stage
	return nil
}

// InsertInner splices a stage directly adjacent to the base transport,
// inside every stage added so far or later. The stage sees the response
// closest to the wire, before any outer stage can buffer or transform it,
// which is what streaming interception requires. With an empty chain the
// stage becomes the sole wrapper around the transport.
func (c *Chain) InsertInner(stage Stage) error {
	if c.built != nil {
		return ErrChainBuilt
	}
	c.stages = append(c.stages, stage)
	c.pinned++
	return nil
}

// Len returns the number of stages in the chain.
func (c *Chain) Len() int {
	return len(c.stages)
}

// Build composes the stages around the base transport and freezes the
// topology. Subsequent calls return the same RoundTripper.
func (c *Chain) Build() http.RoundTripper {
	if c.built != nil {
		return c.built
	}
	rt := c.base
	for i := len(c.stages) - 1; i >= 0; i-- {
		rt = c.stages[i].Wrap(rt)
	}
	c.built = rt
	return rt
}

// RoundTrip issues the request through the built chain. Build must have
// been called first; an unbuilt chain is built on first use for
// convenience in tests, but bootstrap always builds eagerly.
func (c *Chain) RoundTrip(req *http.Request) (*http.Response, error) {
	if c.built == nil {
		c.Build()
	}
	return c.built.RoundTrip(req)
}
