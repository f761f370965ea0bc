package client

import (
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

// Credential is the request credential strategy selected once at
// construction and owned by the client for its lifetime. Implementations
// are safe for concurrent use.
type Credential interface {
	// Kind identifies the strategy for logging. Never includes secret
	// material.
	Kind() string

	// Authorize attaches the credential to an outgoing request.
	Authorize(req *http.Request) error
}

// SelectCredential derives the credential strategy from configuration.
// Precedence is fixed and total: a caller-supplied token source or a
// non-empty token always wins; otherwise a non-empty username yields
// basic auth (the password may be empty); otherwise access is anonymous.
// Deterministic and free of side effects, so selection is testable
// without any network activity.
func SelectCredential(cfg *Config, source oauth2.TokenSource) (Credential, error) {
	if cfg == nil {
		return nil, &ConfigurationError{Field: "config", Reason: "configuration is required"}
	}

	switch {
	case source != nil:
		return &tokenCredential{source: source}, nil
	case cfg.Token != "":
		return &tokenCredential{
			source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token}),
		}, nil
	case cfg.Username != "":
		return &basicCredential{username: cfg.Username, password: cfg.Password}, nil
	default:
		return anonymousCredential{}, nil
	}
}

// tokenCredential attaches a bearer token. The token source may rotate
// tokens underneath (exec plugins, OAuth refresh); a static source serves
// fixed tokens.
type tokenCredential struct {
	source oauth2.TokenSource
}

func (c *tokenCredential) Kind() string { return "token" }

func (c *tokenCredential) Authorize(req *http.Request) error {
	token, err := c.source.Token()
	if err != nil {
		return fmt.Errorf("obtaining bearer token: %w", err)
	}
	token.SetAuthHeader(req)
	return nil
}

type basicCredential struct {
	username string
	password string
}

func (c *basicCredential) Kind() string { return "basic" }

func (c *basicCredential) Authorize(req *http.Request) error {
	req.SetBasicAuth(c.username, c.password)
	return nil
}

// anonymousCredential attaches nothing. Anonymous access is valid only
// when the configuration named neither a token nor a username.
type anonymousCredential struct{}

func (anonymousCredential) Kind() string { return "anonymous" }

func (anonymousCredential) Authorize(*http.Request) error { return nil }
