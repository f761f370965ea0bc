package instrumentation

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the default tracer name for the clusterclient package.
const TracerName = "github.com/giantswarm/clusterclient"

// Span attribute keys for client request spans.
const (
	// SpanAttrMethod is the HTTP method.
	SpanAttrMethod = "http.request.method"

	// SpanAttrPath is the request path, without query parameters.
	SpanAttrPath = "url.path"

	// SpanAttrStatus is the HTTP response status code.
	SpanAttrStatus = "http.response.status_code"

	// SpanAttrWatch indicates the request opened a watch stream.
	SpanAttrWatch = "clusterclient.watch"
)

// RequestAttributes returns the span attributes for an outgoing request.
func RequestAttributes(method, path string, isWatch bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(SpanAttrMethod, method),
		attribute.String(SpanAttrPath, path),
		attribute.Bool(SpanAttrWatch, isWatch),
	}
}

// EndSpan records the request outcome on the span and ends it.
func EndSpan(span trace.Span, status int, err error) {
	if status > 0 {
		span.SetAttributes(attribute.Int(SpanAttrStatus, status))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
