package proxy

import (
	"strings"
	"sync"
	"time"
)

// Outcome is the severity class of one reported proxy result.
type Outcome int

const (
	OutcomeSuccess     Outcome = iota
	OutcomeSoftFailure         // timeout, transient transport fault
	OutcomeHardFailure         // blocked/banned signal from the target
)

// Score adjustments per report. A hard failure decays three times faster
// than a soft one.
const (
	scoreSuccessReward = 0.05
	scoreSoftPenalty   = 0.10
	scoreHardPenalty   = 0.30
)

// entry is one registered proxy. All mutation happens under the entry's own
// lock so one slow update never stalls unrelated traffic.
type entry struct {
	mu sync.Mutex

	id       string // normalized endpoint, stable identity
	endpoint string

	score               float64
	consecutiveFailures int
	lastUsedAt          time.Time
	lastCheckedAt       time.Time
	meanLatency         time.Duration
	latencySamples      int

	active        bool
	lowScoreSince time.Time // zero while score >= minScore
}

// Snapshot is the read-only view of an entry exposed to callers.
type Snapshot struct {
	ID                  string
	Endpoint            string
	Score               float64
	ConsecutiveFailures int
	LastUsedAt          time.Time
	LastCheckedAt       time.Time
	MeanLatency         time.Duration
	Active              bool
}

func newEntry(endpoint string) *entry {
	id := normalize(endpoint)
	return &entry{
		id:       id,
		endpoint: endpoint,
		score:    1.0, // new proxy, assume healthy
		active:   true,
	}
}

// normalize derives the stable identity from an endpoint URL.
func normalize(endpoint string) string {
	return strings.TrimSuffix(strings.TrimSpace(strings.ToLower(endpoint)), "/")
}

// apply folds one outcome into the entry's health state. minScore and now
// come from the pool so the entry stays free of configuration.
func (e *entry) apply(outcome Outcome, latency time.Duration, minScore float64, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch outcome {
	case OutcomeSuccess:
		e.score = min(1.0, e.score+scoreSuccessReward)
		e.consecutiveFailures = 0
		if latency > 0 {
			e.latencySamples++
			// running mean, no window needed at this sample rate
			e.meanLatency += (latency - e.meanLatency) / time.Duration(e.latencySamples)
		}
	case OutcomeSoftFailure:
		e.score = max(0.0, e.score-scoreSoftPenalty)
		e.consecutiveFailures++
	case OutcomeHardFailure:
		e.score = max(0.0, e.score-scoreHardPenalty)
		e.consecutiveFailures++
	}

	if e.score < minScore {
		if e.lowScoreSince.IsZero() {
			e.lowScoreSince = now
		}
	} else {
		e.lowScoreSince = time.Time{}
	}
}

// shouldDeactivate reports whether the entry has crossed the removal gate:
// too many consecutive failures, or a score below minScore sustained past
// the grace window.
func (e *entry) shouldDeactivate(maxFailures int, grace time.Duration, now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.consecutiveFailures > maxFailures {
		return true
	}
	if !e.lowScoreSince.IsZero() && now.Sub(e.lowScoreSince) > grace {
		return true
	}
	return false
}

// recover reactivates an entry the health checker found alive again.
func (e *entry) recover(minScore float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.active = true
	e.consecutiveFailures = 0
	e.lowScoreSince = time.Time{}
	if e.score < minScore {
		e.score = minScore
	}
}

func (e *entry) deactivate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active = false
}

func (e *entry) isActive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

func (e *entry) markUsed(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastUsedAt = now
}

func (e *entry) markChecked(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastCheckedAt = now
}

func (e *entry) snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	return Snapshot{
		ID:                  e.id,
		Endpoint:            e.endpoint,
		Score:               e.score,
		ConsecutiveFailures: e.consecutiveFailures,
		LastUsedAt:          e.lastUsedAt,
		LastCheckedAt:       e.lastCheckedAt,
		MeanLatency:         e.meanLatency,
		Active:              e.active,
	}
}

// restore overwrites the persisted health fields, used when re-seeding a
// pool from an external score store.
func (e *entry) restore(score float64, failures int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.score = max(0.0, min(1.0, score))
	e.consecutiveFailures = failures
}
