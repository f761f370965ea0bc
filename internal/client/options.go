package client

import (
	"net/http"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"

	"github.com/giantswarm/clusterclient/internal/instrumentation"
	"github.com/giantswarm/clusterclient/internal/logging"
)

// options collects optional collaborators supplied at construction.
type options struct {
	logger        logging.Logger
	metrics       *instrumentation.Metrics
	tracer        trace.Tracer
	tokenSource   oauth2.TokenSource
	baseTransport http.RoundTripper
}

// Option configures a Client at construction time.
type Option func(*options)

// WithLogger sets the structured logger. Defaults to a JSON logger on
// stderr.
func WithLogger(logger logging.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics wires a metrics recorder into the request path and watch
// sessions. A nil recorder disables metric recording.
func WithMetrics(metrics *instrumentation.Metrics) Option {
	return func(o *options) {
		o.metrics = metrics
	}
}

// WithTracer enables client request spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}

// WithTokenSource supplies a rotating bearer token source, taking the
// place of the configuration's static token in credential selection.
func WithTokenSource(source oauth2.TokenSource) Option {
	return func(o *options) {
		o.tokenSource = source
	}
}

// WithBaseTransport replaces the TLS-configured base transport. Intended
// for tests that fake the wire.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		o.baseTransport = rt
	}
}
