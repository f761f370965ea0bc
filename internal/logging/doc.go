// Package logging provides structured logging utilities for clusterclient.
//
// This package centralizes logging patterns to ensure consistent, structured
// logging across the codebase:
//
//   - Attribute helpers (Operation, Method, Path, Status, Duration, Err) keep
//     log key naming uniform so log aggregation queries stay stable.
//   - SanitizeHost redacts IP addresses from hosts and error strings before
//     they reach logs, since API server addresses can reveal network topology.
//   - SanitizeToken masks credential material entirely; only the length is
//     logged.
//   - SlogAdapter bridges *slog.Logger to the narrow Logger interface the
//     client packages depend on, keeping them testable with fake loggers.
package logging
