package limiter

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTryAcquireBurst(t *testing.T) {
	l := New(Config{RatePerMinute: 60, Burst: 3})

	// The full burst is available immediately, then the bucket is dry.
	for i := 0; i < 3; i++ {
		if !l.TryAcquire("read") {
			t.Fatalf("TryAcquire %d should succeed within burst", i)
		}
	}
	if l.TryAcquire("read") {
		t.Error("TryAcquire beyond burst should fail with no time elapsed")
	}
}

func TestCategoriesAreIndependent(t *testing.T) {
	l := New(Config{RatePerMinute: 60, Burst: 1})
	l.Configure("write", Config{RatePerMinute: 60, Burst: 2})

	if !l.TryAcquire("read") {
		t.Fatal("read burst should be available")
	}
	if l.TryAcquire("read") {
		t.Error("read burst of 1 should be exhausted")
	}

	// write has its own bucket
	if !l.TryAcquire("write") || !l.TryAcquire("write") {
		t.Error("write burst of 2 should be available")
	}
}

func TestUnknownCategoryInheritsDefault(t *testing.T) {
	l := New(Config{RatePerMinute: 60, Burst: 2})

	if !l.TryAcquire("never-configured") {
		t.Error("unknown category should inherit the default budget")
	}
}

func TestDisabledCategory(t *testing.T) {
	l := New(Config{RatePerMinute: 60, Burst: 5})
	l.Configure("login", Config{RatePerMinute: 0, Burst: 5})

	if l.TryAcquire("login") {
		t.Error("disabled category should always deny")
	}

	err := l.Acquire(context.Background(), "login")
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Acquire on disabled category = %v, want ErrDisabled", err)
	}
}

func TestAcquireBlocksUntilRefill(t *testing.T) {
	// 600/min = 10 tokens/sec, so a refill takes ~100ms.
	l := New(Config{RatePerMinute: 600, Burst: 1})

	if !l.TryAcquire("read") {
		t.Fatal("first token should be available")
	}

	start := time.Now()
	if err := l.Acquire(context.Background(), "read"); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	elapsed := time.Since(start)

	if elapsed < 50*time.Millisecond {
		t.Errorf("Acquire returned after %v, expected to wait for refill", elapsed)
	}
	if elapsed > 500*time.Millisecond {
		t.Errorf("Acquire overslept: %v", elapsed)
	}
}

func TestAcquireCancellation(t *testing.T) {
	l := New(Config{RatePerMinute: 1, Burst: 1})
	l.TryAcquire("read") // drain the bucket

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := l.Acquire(ctx, "read"); err == nil {
		t.Error("Acquire should fail when ctx is cancelled before a token frees up")
	}
}

func TestPause(t *testing.T) {
	l := New(Config{RatePerMinute: 600, Burst: 10})

	now := time.Now()
	l.now = func() time.Time { return now }

	l.Pause(30 * time.Second)
	if l.TryAcquire("read") {
		t.Error("TryAcquire should deny during a global pause")
	}

	// Advance past the pause.
	now = now.Add(31 * time.Second)
	if !l.TryAcquire("read") {
		t.Error("TryAcquire should succeed after the pause expires")
	}
}

func TestReset(t *testing.T) {
	l := New(Config{RatePerMinute: 60, Burst: 1})
	l.TryAcquire("read")

	if l.TryAcquire("read") {
		t.Fatal("bucket should be empty")
	}

	l.Reset("read")
	if !l.TryAcquire("read") {
		t.Error("reset should restore a full burst")
	}
}
