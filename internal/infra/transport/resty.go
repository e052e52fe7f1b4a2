package transport

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/vietddude/pacer/internal/infra/identity"
)

// defaultTimeout applies when neither the request nor the client sets one.
const defaultTimeout = 30 * time.Second

// Client is the resty-backed Sender and health prober. A fresh underlying
// client is built per attempt so the TLS session, proxy, and header
// fingerprint rotate together and never leak state between identities.
type Client struct {
	probeURL string
	timeout  time.Duration
}

// NewClient creates a transport client. probeURL is the lightweight
// endpoint health probes hit through each proxy.
func NewClient(probeURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{probeURL: probeURL, timeout: timeout}
}

// Send performs one attempt under the given identity and proxy.
func (c *Client) Send(ctx context.Context, req *Request, id identity.Identity, proxyURL string) (*Response, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}

	rc := resty.New().
		SetTimeout(timeout).
		SetHeaders(id.Headers()).
		SetDoNotParseResponse(false).
		SetRetryCount(0) // retries belong to the dispatcher, not the transport
	if proxyURL != "" {
		rc.SetProxy(proxyURL)
	}

	r := rc.R().SetContext(ctx)
	if len(req.Query) > 0 {
		r.SetQueryParams(req.Query)
	}
	if len(req.Headers) > 0 {
		r.SetHeaders(req.Headers)
	}
	if len(req.Body) > 0 {
		r.SetBody(req.Body)
	}

	method := req.Method
	if method == "" {
		method = "GET"
	}

	resp, err := r.Execute(method, req.URL)
	if err != nil {
		return nil, err
	}

	return &Response{
		StatusCode: resp.StatusCode(),
		Body:       resp.Body(),
		Header:     resp.Header(),
		Latency:    resp.Time(),
	}, nil
}

// Probe issues a lightweight request through the proxy endpoint. Any
// response below 500 counts as alive: the probe checks the egress path, not
// the target's mood.
func (c *Client) Probe(ctx context.Context, endpoint string) (bool, time.Duration, error) {
	rc := resty.New().
		SetTimeout(c.timeout).
		SetProxy(endpoint).
		SetRetryCount(0)

	resp, err := rc.R().SetContext(ctx).Get(c.probeURL)
	if err != nil {
		return false, 0, err
	}
	return resp.StatusCode() < 500, resp.Time(), nil
}
