package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/giantswarm/clusterclient/internal/instrumentation"
	"github.com/giantswarm/clusterclient/internal/logging"
	"github.com/giantswarm/clusterclient/internal/transport"
	"github.com/giantswarm/clusterclient/internal/trust"
	"github.com/giantswarm/clusterclient/internal/watch"
)

// Client issues requests to a cluster-management API server through an
// ordered handler chain over a trust-policy-backed transport. Construct
// with New; a Client is safe for concurrent use once constructed.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	chain      *transport.Chain
	credential Credential
	timeout    time.Duration
	logger     logging.Logger
	metrics    *instrumentation.Metrics
}

// Request describes one API call. Watch marks the request as a watch:
// its response body stays open and is exposed as an event stream via
// Client.Watch rather than materialized by Do.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   io.Reader
	Watch  bool
}

// Response is a fully materialized response to an ordinary request.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// New validates the configuration and bootstraps the client: trust policy
// installed on the transport, credential selected and attached, handler
// chain composed with the watch-interception stage innermost. Any
// validation failure aborts before a transport is created; a partially
// configured client is never returned.
func New(cfg *Config, opts ...Option) (*Client, error) {
	baseURL, err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	resolved := cfg.withDefaults()

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.DefaultLogger()
	}

	credential, err := SelectCredential(&resolved, o.tokenSource)
	if err != nil {
		return nil, err
	}

	base := o.baseTransport
	if base == nil {
		base, err = buildBaseTransport(&resolved, baseURL, o.metrics)
		if err != nil {
			return nil, err
		}
	}

	chain := transport.NewChain(base)
	stages := []error{
		chain.Use(transport.NewObserveStage(o.logger, o.metrics, o.tracer)),
		chain.Use(transport.NewThrottleStage(resolved.QPS, resolved.Burst)),
		chain.Use(transport.NewAuthStage(credential)),
		chain.InsertInner(transport.NewWatchStage(
			func() { o.metrics.WatchSessionStarted(context.Background()) },
			func() { o.metrics.WatchSessionEnded(context.Background()) },
		)),
	}
	for _, stageErr := range stages {
		if stageErr != nil {
			return nil, fmt.Errorf("composing handler chain: %w", stageErr)
		}
	}

	c := &Client{
		baseURL: baseURL,
		// No http.Client timeout: watch bodies are unbounded. Ordinary
		// requests are bounded per call via context in Do.
		httpClient: &http.Client{Transport: chain.Build()},
		chain:      chain,
		credential: credential,
		timeout:    resolved.Timeout,
		logger:     o.logger,
		metrics:    o.metrics,
	}

	c.logger.Info("client constructed",
		logging.Host(resolved.Host),
		"credential", credential.Kind(),
	)

	return c, nil
}

// buildBaseTransport clones the default transport and installs the TLS
// configuration: trust evaluator as the certificate acceptance callback,
// plus client certificates for mutual TLS.
func buildBaseTransport(cfg *Config, baseURL *url.URL, metrics *instrumentation.Metrics) (http.RoundTripper, error) {
	base := http.DefaultTransport.(*http.Transport).Clone()

	if baseURL.Scheme != "https" {
		return base, nil
	}

	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
		ServerName: baseURL.Hostname(),
	}

	if cfg.InsecureSkipTLSVerify {
		tlsConfig.InsecureSkipVerify = true
	} else {
		evaluator, err := trust.NewEvaluator(cfg.CABundle, baseURL.Hostname())
		if err != nil {
			return nil, &ConfigurationError{Field: "ca_bundle", Reason: err.Error()}
		}
		// The evaluator owns the complete acceptance decision, including
		// hostname checks, so standard verification is turned off in its
		// favor.
		tlsConfig.InsecureSkipVerify = true
		tlsConfig.VerifyPeerCertificate = func(rawCerts [][]byte, chains [][]*x509.Certificate) error {
			if err := evaluator.VerifyPeerCertificate(rawCerts, chains); err != nil {
				metrics.RecordTrustRejection(context.Background())
				return err
			}
			return nil
		}
	}

	if len(cfg.ClientCert) > 0 {
		cert, err := tls.X509KeyPair(cfg.ClientCert, cfg.ClientKey)
		if err != nil {
			return nil, &ConfigurationError{Field: "client_cert", Reason: err.Error()}
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	base.TLSClientConfig = tlsConfig
	return base, nil
}

// Do issues an ordinary request and materializes the response. Transient
// transport failures are propagated for the caller's retry policy; this
// client never retries internally.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if req.Watch {
		return nil, &ConfigurationError{Field: "watch", Reason: "watch requests must go through Client.Watch"}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	httpReq, err := c.buildHTTPRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("issuing request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// Watch issues a watch request and exposes the response body as a lazy,
// cancellable event stream. The stream owns the body handle for its
// lifetime; cancelling ctx or calling Stop releases it. Resuming after
// the stream ends is the caller's concern, using the last resource
// version it observed.
func (c *Client) Watch(ctx context.Context, req *Request) (*watch.Stream, error) {
	ctx = transport.WithWatchMarker(ctx)

	watchReq := *req
	watchReq.Watch = true
	if watchReq.Query == nil {
		watchReq.Query = url.Values{}
	} else {
		watchReq.Query = cloneValues(watchReq.Query)
	}
	if watchReq.Query.Get("watch") == "" {
		watchReq.Query.Set("watch", "true")
	}

	httpReq, err := c.buildHTTPRequest(ctx, &watchReq)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("opening watch stream: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("watch request failed with status %d: %s", resp.StatusCode, body)
	}

	c.logger.Debug("watch stream opened",
		logging.Method(httpReq.Method),
		logging.Path(httpReq.URL.Path),
	)

	return watch.NewStream(ctx, resp.Body, watch.WithObserver(func(et watch.EventType) {
		c.metrics.RecordWatchEvent(ctx, string(et))
	})), nil
}

func (c *Client) buildHTTPRequest(ctx context.Context, req *Request) (*http.Request, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	ref := &url.URL{Path: req.Path}
	if len(req.Query) > 0 {
		ref.RawQuery = req.Query.Encode()
	}
	target := c.baseURL.ResolveReference(ref)

	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), req.Body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	return httpReq, nil
}

func cloneValues(in url.Values) url.Values {
	out := make(url.Values, len(in))
	for k, v := range in {
		out[k] = append([]string(nil), v...)
	}
	return out
}
