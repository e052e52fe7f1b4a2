// Package transport carries dispatched requests to the remote service. It
// is the boundary the resilience core hands an attempt to: one Send per
// attempt, under one identity and one egress proxy.
package transport

import (
	"context"
	"net/http"
	"time"

	"github.com/vietddude/pacer/internal/infra/identity"
)

// Request describes one outbound HTTP call, independent of attempt state.
type Request struct {
	Method  string
	URL     string
	Query   map[string]string
	Headers map[string]string // caller headers, merged under the identity's
	Body    []byte
	Timeout time.Duration // per-attempt transport timeout
}

// Response is the raw transport result. The core never interprets the body
// beyond failure classification markers.
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
	Latency    time.Duration
}

// RetryAfter parses the Retry-After header if the remote sent one.
func (r *Response) RetryAfter() (time.Duration, bool) {
	if r == nil || r.Header == nil {
		return 0, false
	}
	v := r.Header.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	if secs, err := time.ParseDuration(v + "s"); err == nil && secs > 0 {
		return secs, true
	}
	return 0, false
}

// Sender performs one attempt. proxyURL is empty for direct egress.
type Sender interface {
	Send(ctx context.Context, req *Request, id identity.Identity, proxyURL string) (*Response, error)
}
