package e2e

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vietddude/pacer"
	"github.com/vietddude/pacer/internal/core/config"
)

// newTarget spins up a remote service that rate-limits after a threshold of
// requests inside a one second window.
func newTarget(t *testing.T, windowLimit int) (*httptest.Server, *atomic.Int64) {
	t.Helper()

	var total atomic.Int64
	var mu sync.Mutex
	var windowStart time.Time
	var windowCount int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		total.Add(1)

		mu.Lock()
		now := time.Now()
		if now.Sub(windowStart) > time.Second {
			windowStart, windowCount = now, 0
		}
		windowCount++
		limited := windowCount > windowLimit
		mu.Unlock()

		if limited {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &total
}

func e2eConfig() *config.AppConfig {
	return &config.AppConfig{
		Mode: config.ModeConfig{
			Name: "custom",
			Custom: &config.CustomMode{
				MaxConcurrency:  8,
				DelayMin:        time.Millisecond,
				DelayMax:        5 * time.Millisecond,
				RatePerMinute:   6000,
				BurstSize:       50,
				ProxyMultiplier: 2.0,
				ErrorBackoff:    1.0,
			},
		},
		Proxy: config.ProxyConfig{
			RotationStrategy:    "weighted",
			MaxFailures:         3,
			MinScore:            0.3,
			GraceWindow:         time.Minute,
			HealthCheckInterval: time.Hour,
		},
		Retry: config.RetryConfig{
			MaxRetries:    3,
			BaseBackoff:   10 * time.Millisecond,
			BackoffFactor: 2.0,
			BackoffMax:    100 * time.Millisecond,
			NoJitter:      true,
		},
		Escalation: config.EscalationConfig{MaxLevel: 5},
		Transport:  config.TransportConfig{ProbeURL: "http://127.0.0.1/ping", Timeout: 5 * time.Second},
	}
}

func TestSessionLifecycleAgainstLiveTarget(t *testing.T) {
	srv, total := newTarget(t, 1000)

	session, err := pacer.New(e2eConfig())
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := session.Start(ctx); err != nil {
		t.Fatalf("Failed to start session: %v", err)
	}

	// Fire a burst of concurrent calls through the full pipeline.
	var wg sync.WaitGroup
	var failures atomic.Int64
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := session.Do(ctx, pacer.Call{
				Request:  &pacer.Request{URL: srv.URL},
				Category: "read",
			})
			if err != nil || resp.StatusCode != 200 {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()

	if failures.Load() != 0 {
		t.Errorf("%d calls failed against a healthy target", failures.Load())
	}
	if total.Load() < 20 {
		t.Errorf("target saw %d requests, want at least 20", total.Load())
	}
	if session.EscalationLevel() != 0 {
		t.Errorf("escalation level = %d after a clean run, want 0", session.EscalationLevel())
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := session.Close(stopCtx); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestSessionRecoversFromThrottling(t *testing.T) {
	// A tight window limit forces 429s which the session must absorb through
	// Retry-After pauses and backoff, without surfacing errors to the caller.
	srv, _ := newTarget(t, 3)

	session, err := pacer.New(e2eConfig())
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	ctx := context.Background()
	if err := session.Start(ctx); err != nil {
		t.Fatalf("Failed to start session: %v", err)
	}
	defer session.Close(ctx)

	ok := 0
	for i := 0; i < 6; i++ {
		resp, err := session.Do(ctx, pacer.Call{
			Request:  &pacer.Request{URL: srv.URL},
			Category: "read",
		})
		if err == nil && resp.StatusCode == 200 {
			ok++
		}
	}

	if ok != 6 {
		t.Errorf("successful calls = %d, want 6 (throttling should be absorbed)", ok)
	}
	if session.EscalationLevel() == 0 {
		t.Log("no escalation observed, target never throttled this run")
	}
}
