package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys - using constants for consistency and DRY
const (
	attrMethod    = "method"
	attrStatus    = "status"
	attrEventType = "event_type"
)

// Metrics provides methods for recording client observability metrics.
type Metrics struct {
	requestsTotal   metric.Int64Counter
	requestDuration metric.Float64Histogram

	watchEventsTotal    metric.Int64Counter
	activeWatchSessions metric.Int64UpDownCounter

	trustRejectionsTotal metric.Int64Counter
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.requestsTotal, err = meter.Int64Counter(
		"clusterclient_requests_total",
		metric.WithDescription("Total number of API requests issued"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create clusterclient_requests_total counter: %w", err)
	}

	m.requestDuration, err = meter.Float64Histogram(
		"clusterclient_request_duration_seconds",
		metric.WithDescription("API request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create clusterclient_request_duration_seconds histogram: %w", err)
	}

	m.watchEventsTotal, err = meter.Int64Counter(
		"clusterclient_watch_events_total",
		metric.WithDescription("Total number of decoded watch events"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create clusterclient_watch_events_total counter: %w", err)
	}

	m.activeWatchSessions, err = meter.Int64UpDownCounter(
		"clusterclient_active_watch_sessions",
		metric.WithDescription("Number of currently open watch sessions"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create clusterclient_active_watch_sessions gauge: %w", err)
	}

	m.trustRejectionsTotal, err = meter.Int64Counter(
		"clusterclient_trust_rejections_total",
		metric.WithDescription("Total number of server certificate chains rejected by the trust policy"),
		metric.WithUnit("{rejection}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create clusterclient_trust_rejections_total counter: %w", err)
	}

	return m, nil
}

// RecordRequest records a completed API request. A status of 0 means the
// request failed before a response was received.
func (m *Metrics) RecordRequest(ctx context.Context, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrMethod, method),
		attribute.String(attrStatus, statusLabel(status)),
	)
	m.requestsTotal.Add(ctx, 1, attrs)
	m.requestDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(attribute.String(attrMethod, method)))
}

// RecordWatchEvent records one decoded watch event by type.
func (m *Metrics) RecordWatchEvent(ctx context.Context, eventType string) {
	if m == nil {
		return
	}
	m.watchEventsTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String(attrEventType, eventType)))
}

// WatchSessionStarted increments the active watch session gauge.
func (m *Metrics) WatchSessionStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeWatchSessions.Add(ctx, 1)
}

// WatchSessionEnded decrements the active watch session gauge.
func (m *Metrics) WatchSessionEnded(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeWatchSessions.Add(ctx, -1)
}

// RecordTrustRejection records a handshake-time certificate rejection.
func (m *Metrics) RecordTrustRejection(ctx context.Context) {
	if m == nil {
		return
	}
	m.trustRejectionsTotal.Add(ctx, 1)
}

func statusLabel(status int) string {
	if status == 0 {
		return "error"
	}
	return strconv.Itoa(status)
}
