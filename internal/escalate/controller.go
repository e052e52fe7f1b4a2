// Package escalate tracks the session's hostility level.
//
// The level is an integer score driven by recent outcomes. It is the only
// feedback path from traffic outcomes back into pacing: the dispatcher
// multiplies its inter-request delay by 1 + 0.3*level.
package escalate

import (
	"sync"
	"time"
)

// Outcome is the escalation-relevant summary of one settled attempt.
type Outcome int

const (
	OutcomeSuccess     Outcome = iota
	OutcomeRateLimited         // +2
	OutcomeChallenge           // +3
	OutcomeOther               // +1
)

// DefaultMaxLevel caps the level; conventionally small.
const DefaultMaxLevel = 5

// deescalateAfter is how long a clean streak must last before the level
// drops by one. The streak restarts after every decrement.
const deescalateAfter = 30 * time.Second

// Controller is the single writer of the session's escalation state.
type Controller struct {
	mu             sync.Mutex
	level          int
	maxLevel       int
	streakStart    time.Time
	lastTransition time.Time

	now func() time.Time
}

// NewController creates a controller at level 0. maxLevel <= 0 selects
// DefaultMaxLevel.
func NewController(maxLevel int) *Controller {
	if maxLevel <= 0 {
		maxLevel = DefaultMaxLevel
	}
	c := &Controller{maxLevel: maxLevel, now: time.Now}
	c.streakStart = c.now()
	return c
}

// Record applies one outcome to the level.
func (c *Controller) Record(o Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()

	switch o {
	case OutcomeSuccess:
		if c.level > 0 && now.Sub(c.streakStart) >= deescalateAfter {
			c.level--
			c.streakStart = now
			c.lastTransition = now
		}
	case OutcomeRateLimited:
		c.bump(2, now)
	case OutcomeChallenge:
		c.bump(3, now)
	default:
		c.bump(1, now)
	}
}

func (c *Controller) bump(delta int, now time.Time) {
	c.level = min(c.level+delta, c.maxLevel)
	c.streakStart = now
	c.lastTransition = now
}

// Level returns the current level.
func (c *Controller) Level() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.level
}

// Multiplier returns the delay scaling factor for the current level.
func (c *Controller) Multiplier() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return 1.0 + 0.3*float64(c.level)
}

// Reset drops the level back to 0, e.g. when a session restarts.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.level = 0
	c.streakStart = c.now()
}
