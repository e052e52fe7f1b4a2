package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vietddude/pacer/internal/infra/identity"
)

func TestSendAppliesIdentityHeaders(t *testing.T) {
	var gotUA, gotMid string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotMid = r.Header.Get("X-Mid")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	id := identity.NewProvider(nil, identity.StrategyRoundRobin).Next()
	c := NewClient(srv.URL, 5*time.Second)

	resp, err := c.Send(context.Background(), &Request{Method: "GET", URL: srv.URL}, id, "")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if gotUA != id.UserAgent {
		t.Errorf("User-Agent = %q, want identity's %q", gotUA, id.UserAgent)
	}
	if gotMid != id.MachineID {
		t.Errorf("X-Mid = %q, want %q", gotMid, id.MachineID)
	}
	if resp.Latency <= 0 {
		t.Error("latency should be measured")
	}
}

func TestSendReturnsStatusWithoutError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	id := identity.NewProvider(nil, identity.StrategyRoundRobin).Next()
	c := NewClient(srv.URL, 5*time.Second)

	resp, err := c.Send(context.Background(), &Request{URL: srv.URL}, id, "")
	if err != nil {
		t.Fatalf("non-2xx must not be a transport error, got %v", err)
	}
	if resp.StatusCode != 429 {
		t.Errorf("status = %d, want 429", resp.StatusCode)
	}
}

func TestSendTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	id := identity.NewProvider(nil, identity.StrategyRoundRobin).Next()
	c := NewClient(srv.URL, 5*time.Second)

	_, err := c.Send(context.Background(), &Request{URL: srv.URL, Timeout: 50 * time.Millisecond}, id, "")
	if err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestRetryAfter(t *testing.T) {
	resp := &Response{Header: http.Header{"Retry-After": []string{"30"}}}
	d, ok := resp.RetryAfter()
	if !ok || d != 30*time.Second {
		t.Errorf("RetryAfter() = %v, %v, want 30s", d, ok)
	}

	empty := &Response{Header: http.Header{}}
	if _, ok := empty.RetryAfter(); ok {
		t.Error("missing header should report false")
	}
}
