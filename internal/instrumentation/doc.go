// Package instrumentation provides OpenTelemetry metrics and tracing for
// clusterclient.
//
// The Provider owns the configured metric and trace pipelines. Exporters
// are selected via environment-driven Config (prometheus, otlp, or stdout
// for metrics; otlp, stdout, or none for traces). Instrumentation is off
// by default and carries zero overhead until enabled: a nil *Metrics is a
// valid recorder whose methods do nothing.
//
// Metrics cover the client request path (request counts and durations),
// watch sessions (active session gauge, decoded events by type), and the
// transport trust policy (rejected certificate chains).
package instrumentation
