// Package transport composes the request-processing handler chain around
// the client's base HTTP transport.
//
// A Chain is an ordered collection of stages, outermost first, terminating
// at the base transport. Ordinary stages are added with Use; the
// watch-interception stage is placed with InsertInner so it stays directly
// adjacent to the transport and observes response streams before any outer
// stage can buffer them. Build composes the stages once; the resulting
// RoundTripper is immutable and safe for concurrent use across requests.
//
// Provided stages: credential attachment (auth), client-side QPS
// throttling, request observability (log/metrics/span), and watch
// response interception with exactly-once body release.
package transport
