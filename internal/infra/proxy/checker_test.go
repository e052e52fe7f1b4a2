package proxy

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeProber struct {
	mu    sync.Mutex
	alive map[string]bool
}

func (f *fakeProber) Probe(_ context.Context, endpoint string) (bool, time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive[endpoint], 42 * time.Millisecond, nil
}

func (f *fakeProber) set(endpoint string, alive bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alive[endpoint] = alive
}

func TestCheckAllReportsOutcomes(t *testing.T) {
	p, _ := newTestPool(DefaultConfig())
	p.Add("http://up:1", "http://down:1")

	prober := &fakeProber{alive: map[string]bool{"http://up:1": true}}
	c := NewChecker(p, prober, time.Hour, time.Second)

	res := c.CheckAll(context.Background())
	if res.Total != 2 || res.Alive != 1 || res.Dead != 1 {
		t.Errorf("CheckAll = %+v, want total 2, alive 1, dead 1", res)
	}

	snaps := p.Snapshots()
	for _, s := range snaps {
		if s.LastCheckedAt.IsZero() {
			t.Errorf("proxy %s was not marked checked", s.ID)
		}
		switch s.ID {
		case "http://up:1":
			if s.ConsecutiveFailures != 0 {
				t.Error("alive proxy should have no failure streak")
			}
		case "http://down:1":
			if s.ConsecutiveFailures != 1 {
				t.Errorf("dead proxy failures = %d, want 1", s.ConsecutiveFailures)
			}
		}
	}
}

func TestCheckAllRecoversDeadProxy(t *testing.T) {
	p, _ := newTestPool(Config{MaxFailures: 1, MinScore: 0.3, GraceWindow: time.Hour})
	p.Add("http://flaky:1")

	// Deactivate it through reports.
	p.Report("http://flaky:1", OutcomeHardFailure, 0)
	p.Report("http://flaky:1", OutcomeHardFailure, 0)
	if p.ActiveCount() != 0 {
		t.Fatal("expected proxy to be deactivated")
	}

	prober := &fakeProber{alive: map[string]bool{"http://flaky:1": true}}
	c := NewChecker(p, prober, time.Hour, time.Second)

	res := c.CheckAll(context.Background())
	if res.Recovered != 1 {
		t.Errorf("Recovered = %d, want 1", res.Recovered)
	}
	if p.ActiveCount() != 1 {
		t.Error("recovered proxy should be active again")
	}

	s := p.Snapshots()[0]
	if s.ConsecutiveFailures != 0 {
		t.Errorf("recovered proxy failures = %d, want 0", s.ConsecutiveFailures)
	}
	if s.Score < 0.3 {
		t.Errorf("recovered proxy score = %v, want at least min_score", s.Score)
	}
}

func TestCheckerStartStop(t *testing.T) {
	p, _ := newTestPool(DefaultConfig())
	p.Add("http://up:1")

	prober := &fakeProber{alive: map[string]bool{"http://up:1": true}}
	c := NewChecker(p, prober, 10*time.Millisecond, time.Second)

	c.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	c.Stop() // must join, not leak the goroutine

	if p.Snapshots()[0].LastCheckedAt.IsZero() {
		t.Error("background sweep never ran")
	}
}
