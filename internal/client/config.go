package client

import (
	"net/url"
	"strings"
	"time"
)

// Default client-side throttling and timeout settings, applied when the
// configuration leaves them zero.
const (
	DefaultQPS     float32 = 20.0
	DefaultBurst           = 40
	DefaultTimeout         = 30 * time.Second
)

// Config holds everything needed to construct a Client. It is the narrow
// contract with whatever loaded the configuration (flags, environment,
// kubeconfig parsing): by the time a Config reaches New, all values are
// in-memory bytes and strings.
type Config struct {
	// Host is the base URL of the API server. Required; must parse as an
	// absolute URI.
	Host string

	// InsecureSkipTLSVerify disables all server certificate verification.
	// Not recommended outside local development.
	InsecureSkipTLSVerify bool

	// CABundle is the PEM-encoded certificate authority bundle used by
	// the trust policy. Required for https hosts unless
	// InsecureSkipTLSVerify is set.
	CABundle []byte

	// ClientCert and ClientKey are a PEM-encoded certificate/key pair for
	// mutual TLS. Both or neither must be set.
	ClientCert []byte
	ClientKey  []byte

	// Token is a bearer token. A non-empty token always wins over
	// username/password.
	Token string

	// Username and Password configure basic authentication. The password
	// may be empty.
	Username string
	Password string

	// QPS and Burst bound the client-side request rate. Zero values take
	// the defaults; a negative QPS disables throttling.
	QPS   float32
	Burst int

	// Timeout bounds ordinary request/response calls. It does not apply
	// to watch requests, whose response bodies are unbounded by design.
	Timeout time.Duration
}

// Validate checks the configuration and returns the parsed base URL.
// It has no side effects; no transport is created until validation has
// passed.
func (c *Config) Validate() (*url.URL, error) {
	if c == nil {
		return nil, &ConfigurationError{Field: "config", Reason: "configuration is required"}
	}

	host := strings.TrimSpace(c.Host)
	if host == "" {
		return nil, &ConfigurationError{Field: "host", Reason: "must not be blank"}
	}

	baseURL, err := url.Parse(host)
	if err != nil {
		return nil, &ConfigurationError{Field: "host", Reason: "not a well-formed URI: " + err.Error()}
	}
	if !baseURL.IsAbs() || baseURL.Host == "" {
		return nil, &ConfigurationError{Field: "host", Reason: "must be an absolute URI"}
	}

	if baseURL.Scheme == "https" && !c.InsecureSkipTLSVerify && len(c.CABundle) == 0 {
		return nil, &ConfigurationError{
			Field:  "ca_bundle",
			Reason: "required for https hosts unless insecure-skip-tls-verify is set",
		}
	}

	if (len(c.ClientCert) > 0) != (len(c.ClientKey) > 0) {
		return nil, &ConfigurationError{
			Field:  "client_cert",
			Reason: "client certificate and key must be provided together",
		}
	}

	return baseURL, nil
}

// withDefaults returns a copy of the configuration with zero-valued
// throttling and timeout settings filled in.
func (c *Config) withDefaults() Config {
	out := *c
	if out.QPS == 0 {
		out.QPS = DefaultQPS
	}
	if out.Burst == 0 {
		out.Burst = DefaultBurst
	}
	if out.Timeout == 0 {
		out.Timeout = DefaultTimeout
	}
	return out
}
