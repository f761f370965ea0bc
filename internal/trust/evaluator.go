package trust

import (
	"bytes"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"time"
)

// RejectionError reports a certificate chain that failed the acceptance
// policy. It carries the underlying verifier error for diagnostics; the
// rejection itself is terminal for the handshake and is never retried.
type RejectionError struct {
	Reason string
	Err    error
}

func (e *RejectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("certificate rejected: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("certificate rejected: %s", e.Reason)
}

func (e *RejectionError) Unwrap() error {
	return e.Err
}

// Evaluator decides whether to accept a server certificate chain, using a
// caller-supplied CA bundle as trusted material in addition to the default
// roots. It holds everything it needs in memory: the TLS handshake invokes
// it synchronously, so it must never perform I/O.
//
// Acceptance policy:
//
//  1. If verification against the default roots succeeds, accept.
//  2. If it fails only because the authority is unknown, rebuild the chain
//     with the bundle added to the trusted roots. Go's verifier performs no
//     revocation fetches, so bundles without reachable CRL/OCSP endpoints
//     verify cleanly.
//  3. The rebuilt chain is accepted only when its terminal certificate is
//     byte-for-byte present in the bundle. Chain construction succeeding on
//     its own is not enough: it may have terminated at a root the caller
//     never supplied.
//  4. Any other verification failure (hostname mismatch, expiry, key usage)
//     rejects regardless of bundle contents.
type Evaluator struct {
	serverName string
	bundle     []*x509.Certificate
	roots      *x509.CertPool
	now        func() time.Time
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithRoots overrides the default root pool used for the initial
// verification pass. Primarily for tests; production evaluators use the
// system pool.
func WithRoots(pool *x509.CertPool) Option {
	return func(e *Evaluator) {
		e.roots = pool
	}
}

// WithClock overrides the time source used for certificate validity checks.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		e.now = now
	}
}

// NewEvaluator creates an Evaluator from a PEM-encoded CA bundle.
// The bundle must contain at least one certificate.
func NewEvaluator(caBundlePEM []byte, serverName string, opts ...Option) (*Evaluator, error) {
	certs, err := parseBundle(caBundlePEM)
	if err != nil {
		return nil, err
	}
	return NewEvaluatorFromCerts(certs, serverName, opts...)
}

// NewEvaluatorFromCerts creates an Evaluator from already-parsed
// certificates.
func NewEvaluatorFromCerts(bundle []*x509.Certificate, serverName string, opts ...Option) (*Evaluator, error) {
	if len(bundle) == 0 {
		return nil, errors.New("trust: CA bundle is empty")
	}

	e := &Evaluator{
		serverName: serverName,
		bundle:     bundle,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.roots == nil {
		// SystemCertPool fails on platforms without an accessible store;
		// fall back to bundle-only roots so verification still works.
		if pool, err := x509.SystemCertPool(); err == nil {
			e.roots = pool
		} else {
			e.roots = x509.NewCertPool()
		}
	}

	return e, nil
}

// VerifyPeerCertificate matches the tls.Config callback signature. The
// transport is configured with InsecureSkipVerify so that this policy owns
// the complete acceptance decision, including hostname checks.
func (e *Evaluator) VerifyPeerCertificate(rawCerts [][]byte, _ [][]*x509.Certificate) error {
	if len(rawCerts) == 0 {
		return &RejectionError{Reason: "server presented no certificates"}
	}

	certs := make([]*x509.Certificate, 0, len(rawCerts))
	for i, raw := range rawCerts {
		cert, err := x509.ParseCertificate(raw)
		if err != nil {
			return &RejectionError{Reason: fmt.Sprintf("parsing peer certificate %d", i), Err: err}
		}
		certs = append(certs, cert)
	}

	return e.Evaluate(certs[0], certs[1:])
}

// Evaluate applies the acceptance policy to a leaf certificate and the
// intermediates presented alongside it. A nil return means accept.
func (e *Evaluator) Evaluate(leaf *x509.Certificate, presented []*x509.Certificate) error {
	intermediates := x509.NewCertPool()
	for _, cert := range presented {
		intermediates.AddCert(cert)
	}

	opts := x509.VerifyOptions{
		DNSName:       e.serverName,
		Intermediates: intermediates,
		Roots:         e.roots,
		CurrentTime:   e.now(),
	}

	defaultErr := verify(leaf, opts)
	if defaultErr == nil {
		return nil
	}

	// Only chain-construction failures qualify for the bundle fallback.
	// Hostname, validity and usage errors are authoritative.
	var unknownAuthority x509.UnknownAuthorityError
	if !errors.As(defaultErr, &unknownAuthority) {
		return &RejectionError{Reason: "verification failed", Err: defaultErr}
	}

	opts.Roots = e.bundleRoots()
	chains, err := leaf.Verify(opts)
	if err != nil {
		return &RejectionError{Reason: "chain building against CA bundle failed", Err: err}
	}

	for _, chain := range chains {
		root := chain[len(chain)-1]
		for _, trusted := range e.bundle {
			if bytes.Equal(root.Raw, trusted.Raw) {
				return nil
			}
		}
	}

	return &RejectionError{Reason: "chain root is not present in the CA bundle", Err: defaultErr}
}

// bundleRoots returns the default roots extended with the bundle, so chain
// building may use the caller's material as additional trust anchors.
func (e *Evaluator) bundleRoots() *x509.CertPool {
	pool := e.roots.Clone()
	for _, cert := range e.bundle {
		pool.AddCert(cert)
	}
	return pool
}

func verify(leaf *x509.Certificate, opts x509.VerifyOptions) error {
	_, err := leaf.Verify(opts)
	return err
}

func parseBundle(pemData []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	rest := pemData
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("trust: parsing CA bundle certificate: %w", err)
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return nil, errors.New("trust: CA bundle contains no certificates")
	}
	return certs, nil
}
