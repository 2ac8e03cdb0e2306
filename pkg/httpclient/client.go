package httpclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	// Timeout bounds any single request, including discovery's one allowed redirect.
	Timeout = 30 * time.Second

	// MaxResponseSize caps how much of an issuer's response body we will read,
	// guarding against a malicious or misbehaving server streaming forever.
	MaxResponseSize = 1 << 20

	tlsHandshakeTimeout   = 10 * time.Second
	responseHeaderTimeout = 10 * time.Second
)

// validatingTransport rejects any request whose URL is not https, regardless
// of where the request originated (initial or a followed redirect).
type validatingTransport struct {
	next http.RoundTripper
}

func (t *validatingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme != "https" {
		return nil, fmt.Errorf("refusing non-https request to %s", req.URL.Redacted())
	}
	return t.next.RoundTrip(req)
}

// Builder assembles a Client with a per-account trust anchor. One Builder
// produces one Client; build a fresh Builder per distinct CA bundle.
type Builder struct {
	caBundlePath string
}

// NewBuilder returns a Builder with no CA bundle configured, meaning the
// client will trust the host's system root pool.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithCABundle sets the PEM trust-anchor file to use instead of the system
// root pool. An empty path is equivalent to not calling this method.
func (b *Builder) WithCABundle(path string) *Builder {
	b.caBundlePath = path
	return b
}

// Build constructs the Client. It reads and parses the CA bundle eagerly so
// a misconfigured trust anchor fails at setup rather than on first request.
func (b *Builder) Build() (*Client, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}

	if b.caBundlePath != "" {
		pem, err := os.ReadFile(b.caBundlePath) // #nosec G304 -- operator-supplied trust anchor path
		if err != nil {
			return nil, fmt.Errorf("reading CA bundle %s: %w", b.caBundlePath, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no usable certificates found in CA bundle %s", b.caBundlePath)
		}
		tlsConfig.RootCAs = pool
	}

	transport := &http.Transport{
		TLSClientConfig:       tlsConfig,
		TLSHandshakeTimeout:   tlsHandshakeTimeout,
		ResponseHeaderTimeout: responseHeaderTimeout,
	}

	validated := &validatingTransport{next: transport}

	noRedirect := func(_ *http.Request, _ []*http.Request) error {
		return http.ErrUseLastResponse
	}
	atMostOneRedirect := func(_ *http.Request, via []*http.Request) error {
		if len(via) >= 1 {
			return errors.New("stopped after one redirect")
		}
		return nil
	}

	return &Client{
		discovery: &http.Client{
			Transport:     validated,
			Timeout:       Timeout,
			CheckRedirect: atMostOneRedirect,
		},
		exchange: &http.Client{
			Transport:     validated,
			Timeout:       Timeout,
			CheckRedirect: noRedirect,
		},
	}, nil
}

// Client performs the two request shapes the rest of the agent needs:
// discovery GETs (one redirect tolerated) and token-endpoint style POSTs
// (no redirects, since a redirected credential POST is almost always a
// misconfiguration or an attack). Both enforce HTTPS end to end.
type Client struct {
	discovery *http.Client
	exchange  *http.Client
}

// Get issues an HTTPS GET and returns the raw response body on any 2xx
// status. A non-2xx status is returned as a *TransportError carrying the
// body, so callers that understand the issuer's error format (such as
// oidc.ParseTokenResponse) can still extract it.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	return do(c.discovery, req, rawURL)
}

// PostForm issues an HTTPS POST with an application/x-www-form-urlencoded
// body, optionally authenticating with HTTP Basic auth (client_secret_basic).
// Pass empty user/pass to send no Authorization header.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values, basicUser, basicPass string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if basicUser != "" {
		req.SetBasicAuth(basicUser, basicPass)
	}

	return do(c.exchange, req, rawURL)
}

func do(hc *http.Client, req *http.Request, rawURL string) ([]byte, error) {
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", rawURL, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return body, &TransportError{StatusCode: resp.StatusCode, Body: body, URL: rawURL}
	}
	return body, nil
}
