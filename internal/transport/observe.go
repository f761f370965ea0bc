package transport

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/giantswarm/clusterclient/internal/instrumentation"
	"github.com/giantswarm/clusterclient/internal/logging"
)

// NewObserveStage records a log line, request metrics, and a client span
// for every request. It sits outermost so its measurements cover the full
// chain. For watch requests the span ends when response headers arrive;
// the stream's lifetime is tracked by the watch session gauge instead.
func NewObserveStage(logger logging.Logger, metrics *instrumentation.Metrics, tracer trace.Tracer) Stage {
	return &observeStage{logger: logger, metrics: metrics, tracer: tracer}
}

type observeStage struct {
	logger  logging.Logger
	metrics *instrumentation.Metrics
	tracer  trace.Tracer
}

func (s *observeStage) Wrap(inner http.RoundTripper) http.RoundTripper {
	return &observeRoundTripper{stage: s, inner: inner}
}

type observeRoundTripper struct {
	stage *observeStage
	inner http.RoundTripper
}

func (rt *observeRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	isWatch := IsWatchRequest(req)

	ctx := req.Context()
	var span trace.Span
	if rt.stage.tracer != nil {
		ctx, span = rt.stage.tracer.Start(ctx, "clusterclient.request",
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(instrumentation.RequestAttributes(req.Method, req.URL.Path, isWatch)...),
		)
		req = req.WithContext(ctx)
	}

	resp, err := rt.inner.RoundTrip(req)
	elapsed := time.Since(start)

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}

	rt.stage.metrics.RecordRequest(ctx, req.Method, status, elapsed)

	if logger := rt.stage.logger; logger != nil {
		if err != nil {
			logger.Error("request failed",
				logging.Method(req.Method),
				logging.Path(req.URL.Path),
				logging.Duration(elapsed),
				logging.SanitizedErr(err),
			)
		} else {
			logger.Debug("request completed",
				logging.Method(req.Method),
				logging.Path(req.URL.Path),
				logging.Status(status),
				logging.Duration(elapsed),
				logging.KeyWatch, isWatch,
			)
		}
	}

	if span != nil {
		instrumentation.EndSpan(span, status, err)
	}

	return resp, err
}
