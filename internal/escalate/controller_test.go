package escalate

import (
	"testing"
	"time"
)

func newTestController(maxLevel int) (*Controller, *time.Time) {
	c := NewController(maxLevel)
	now := time.Now()
	c.now = func() time.Time { return now }
	c.streakStart = now
	return c, &now
}

func TestRecordBumps(t *testing.T) {
	tests := []struct {
		outcome Outcome
		expect  int
	}{
		{OutcomeRateLimited, 2},
		{OutcomeChallenge, 3},
		{OutcomeOther, 1},
	}

	for _, tt := range tests {
		c, _ := newTestController(0)
		c.Record(tt.outcome)
		if got := c.Level(); got != tt.expect {
			t.Errorf("Record(%v): level = %d, want %d", tt.outcome, got, tt.expect)
		}
	}
}

func TestLevelCapped(t *testing.T) {
	c, _ := newTestController(5)

	// Three consecutive rate-limited outcomes would reach 6 uncapped.
	for i := 0; i < 3; i++ {
		c.Record(OutcomeRateLimited)
	}
	if got := c.Level(); got != 5 {
		t.Errorf("level = %d, want cap 5", got)
	}

	// With a higher cap the same sequence reaches 6.
	c2, _ := newTestController(10)
	for i := 0; i < 3; i++ {
		c2.Record(OutcomeRateLimited)
	}
	if got := c2.Level(); got != 6 {
		t.Errorf("level = %d, want 6", got)
	}
}

func TestSuccessStreakDeescalates(t *testing.T) {
	c, now := newTestController(5)

	c.Record(OutcomeRateLimited) // level 2

	// Success right away: streak too short, no decrement.
	c.Record(OutcomeSuccess)
	if got := c.Level(); got != 2 {
		t.Fatalf("level = %d, want 2 (streak too short)", got)
	}

	// 30 sustained clean seconds earn one decrement.
	*now = now.Add(31 * time.Second)
	c.Record(OutcomeSuccess)
	if got := c.Level(); got != 1 {
		t.Fatalf("level = %d, want 1 after clean streak", got)
	}

	// The streak resets after the decrement: an immediate success does
	// nothing, another 30s earns the next step.
	c.Record(OutcomeSuccess)
	if got := c.Level(); got != 1 {
		t.Fatalf("level = %d, want 1 (streak restarted)", got)
	}
	*now = now.Add(31 * time.Second)
	c.Record(OutcomeSuccess)
	if got := c.Level(); got != 0 {
		t.Fatalf("level = %d, want 0", got)
	}
}

func TestLevelNeverNegative(t *testing.T) {
	c, now := newTestController(5)

	*now = now.Add(time.Minute)
	c.Record(OutcomeSuccess)
	*now = now.Add(time.Minute)
	c.Record(OutcomeSuccess)

	if got := c.Level(); got != 0 {
		t.Errorf("level = %d, want floor 0", got)
	}
}

func TestErrorResetsStreak(t *testing.T) {
	c, now := newTestController(5)

	c.Record(OutcomeOther) // level 1
	*now = now.Add(20 * time.Second)
	c.Record(OutcomeOther) // level 2, streak restarts

	// Only 20s since the last error: no decrement yet.
	*now = now.Add(20 * time.Second)
	c.Record(OutcomeSuccess)
	if got := c.Level(); got != 2 {
		t.Errorf("level = %d, want 2 (streak interrupted by error)", got)
	}
}

func TestMultiplier(t *testing.T) {
	c, _ := newTestController(10)

	if got := c.Multiplier(); got != 1.0 {
		t.Errorf("Multiplier() at level 0 = %v, want 1.0", got)
	}

	for i := 0; i < 3; i++ {
		c.Record(OutcomeRateLimited)
	}
	// level 6 → 1 + 0.3*6 = 2.8
	if got := c.Multiplier(); got < 2.79 || got > 2.81 {
		t.Errorf("Multiplier() at level 6 = %v, want 2.8", got)
	}
}
