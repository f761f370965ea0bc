package client

import (
	"errors"
	"fmt"

	"github.com/giantswarm/clusterclient/internal/trust"
)

// ConfigurationError reports invalid client configuration. It is fatal
// and surfaced before any network resource is created: retrying with the
// same configuration can never succeed.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// IsConfigurationError reports whether err is a configuration error.
func IsConfigurationError(err error) bool {
	var configErr *ConfigurationError
	return errors.As(err, &configErr)
}

// IsTrustRejected reports whether err stems from the trust policy
// rejecting the server's certificate chain during the TLS handshake.
// Such failures are terminal for the connection; retrying against the
// same untrusted peer is unsafe.
func IsTrustRejected(err error) bool {
	var rejection *trust.RejectionError
	return errors.As(err, &rejection)
}
