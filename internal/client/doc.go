// Package client bootstraps and operates the cluster-management API
// client: configuration validation, credential selection, the handler
// chain over a trust-policy-backed transport, and the request and watch
// entry points.
package client
