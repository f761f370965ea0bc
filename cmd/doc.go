// Package cmd provides the command-line interface for clusterclient.
//
// This package implements a Cobra-based CLI with multiple subcommands:
//   - get: Issues a single request against the cluster API and prints the response
//   - watch: Opens watch streams on one or more resource paths and prints events
//   - version: Displays the application version
//
// Command Structure:
//
//	clusterclient get PATH [flags]         # Single request/response call
//	clusterclient watch PATH... [flags]    # Long-lived watch streams
//	clusterclient version                  # Shows version information
//	clusterclient help [command]           # Shows help information
//
// Configuration is resolved from CLI flags, CLUSTERCLIENT_* environment
// variables, and an optional YAML config file, in that order of
// precedence. Connection settings cover the API server host, the trust
// material (CA bundle, client certificate pair), and the credential
// (bearer token or username/password).
package cmd
