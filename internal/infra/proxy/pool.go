// Package proxy owns the set of candidate egress proxies, their health
// scores, and the rotation strategy used to pick one per attempt. An empty
// or fully-degraded pool degrades to direct egress, never to a failure.
package proxy

import (
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/vietddude/pacer/internal/metrics"
)

// Strategy selects how eligible proxies are rotated.
type Strategy int

const (
	StrategyWeighted   Strategy = iota // probability proportional to score (default)
	StrategyRoundRobin                 // cyclic order over eligible proxies
	StrategyRandom                     // uniform among eligible proxies
)

// ParseStrategy maps the config string to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(s) {
	case "", "weighted":
		return StrategyWeighted, nil
	case "round_robin":
		return StrategyRoundRobin, nil
	case "random":
		return StrategyRandom, nil
	default:
		return 0, fmt.Errorf("unknown rotation strategy %q", s)
	}
}

// Config tunes pool health policy.
type Config struct {
	Strategy    Strategy
	MaxFailures int           // consecutive failures before deactivation (default 3)
	MinScore    float64       // score floor for selection eligibility (default 0.3)
	GraceWindow time.Duration // how long a low score is tolerated (default 60s)
}

// DefaultConfig returns the pool defaults.
func DefaultConfig() Config {
	return Config{
		Strategy:    StrategyWeighted,
		MaxFailures: 3,
		MinScore:    0.3,
		GraceWindow: 60 * time.Second,
	}
}

// Pick identifies the proxy chosen for one attempt.
type Pick struct {
	ID       string
	Endpoint string
}

// Pool is the owner of all ProxyEntry state. Entries are mutated only
// through pool methods; membership is guarded by the pool lock, per-entry
// health by each entry's own lock.
type Pool struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string // registration order, drives round-robin
	rrIndex int
	sticky  map[string]string // sticky key -> proxy id

	cfg      Config
	onChange func(active int)
	now      func() time.Time
}

// NewPool creates an empty pool.
func NewPool(cfg Config) *Pool {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.MinScore <= 0 {
		cfg.MinScore = 0.3
	}
	if cfg.GraceWindow <= 0 {
		cfg.GraceWindow = 60 * time.Second
	}

	return &Pool{
		entries: make(map[string]*entry),
		sticky:  make(map[string]string),
		cfg:     cfg,
		now:     time.Now,
	}
}

// OnChange registers a callback invoked (outside pool locks) whenever the
// active proxy count changes. Used to recompute effective concurrency.
func (p *Pool) OnChange(fn func(active int)) {
	p.mu.Lock()
	p.onChange = fn
	p.mu.Unlock()
}

// Add registers endpoints. Duplicates (after normalization) are ignored.
func (p *Pool) Add(endpoints ...string) {
	added := 0

	p.mu.Lock()
	for _, ep := range endpoints {
		ep = strings.TrimSpace(ep)
		if ep == "" {
			continue
		}
		id := normalize(ep)
		if _, ok := p.entries[id]; ok {
			continue
		}
		p.entries[id] = newEntry(ep)
		p.order = append(p.order, id)
		added++
	}
	p.mu.Unlock()

	if added > 0 {
		p.notifyChange()
	}
}

// Remove unregisters a proxy entirely.
func (p *Pool) Remove(id string) {
	id = normalize(id)

	p.mu.Lock()
	if _, ok := p.entries[id]; !ok {
		p.mu.Unlock()
		return
	}
	delete(p.entries, id)
	for i, oid := range p.order {
		if oid == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	for key, pid := range p.sticky {
		if pid == id {
			delete(p.sticky, key)
		}
	}
	p.mu.Unlock()

	p.notifyChange()
}

// Select picks a proxy for the next attempt, or reports false for direct
// egress. A non-empty stickyKey pins repeated selections to one proxy for
// as long as it stays healthy.
func (p *Pool) Select(stickyKey string) (Pick, bool) {
	now := p.now()

	p.mu.Lock()
	defer p.mu.Unlock()

	if stickyKey != "" {
		if id, ok := p.sticky[stickyKey]; ok {
			if e, exists := p.entries[id]; exists && e.isActive() {
				e.markUsed(now)
				return Pick{ID: e.id, Endpoint: e.endpoint}, true
			}
			delete(p.sticky, stickyKey)
		}
	}

	eligible := p.eligibleLocked()
	if len(eligible) == 0 {
		return Pick{}, false
	}

	var chosen *entry
	switch p.cfg.Strategy {
	case StrategyRoundRobin:
		chosen = p.roundRobinLocked(eligible)
	case StrategyRandom:
		chosen = eligible[rand.Intn(len(eligible))]
	default:
		chosen = weightedPick(eligible)
	}

	chosen.markUsed(now)
	if stickyKey != "" {
		p.sticky[stickyKey] = chosen.id
	}
	return Pick{ID: chosen.id, Endpoint: chosen.endpoint}, true
}

// eligibleLocked returns active entries whose score clears the floor, in
// registration order. Caller must hold p.mu.
func (p *Pool) eligibleLocked() []*entry {
	var out []*entry
	for _, id := range p.order {
		e := p.entries[id]
		s := e.snapshot()
		if s.Active && s.Score > p.cfg.MinScore {
			out = append(out, e)
		}
	}
	return out
}

// roundRobinLocked cycles over eligible entries, skipping recently-failed
// ones until everything has failed at least once. Caller must hold p.mu.
func (p *Pool) roundRobinLocked(eligible []*entry) *entry {
	n := len(eligible)
	for i := 0; i < n; i++ {
		e := eligible[(p.rrIndex+i)%n]
		if e.snapshot().ConsecutiveFailures == 0 {
			p.rrIndex = (p.rrIndex + i + 1) % n
			return e
		}
	}
	// Everyone failed recently, fall back to plain rotation.
	e := eligible[p.rrIndex%n]
	p.rrIndex = (p.rrIndex + 1) % n
	return e
}

// weightedPick selects with probability proportional to score. When every
// score has decayed to zero weight, the entry with the fewest consecutive
// failures wins.
func weightedPick(eligible []*entry) *entry {
	snaps := make([]Snapshot, len(eligible))
	total := 0.0
	for i, e := range eligible {
		snaps[i] = e.snapshot()
		total += max(snaps[i].Score, 0.01)
	}

	if total <= 0 {
		best := 0
		for i := 1; i < len(snaps); i++ {
			if snaps[i].ConsecutiveFailures < snaps[best].ConsecutiveFailures {
				best = i
			}
		}
		return eligible[best]
	}

	target := rand.Float64() * total
	for i, s := range snaps {
		target -= max(s.Score, 0.01)
		if target <= 0 {
			return eligible[i]
		}
	}
	return eligible[len(eligible)-1]
}

// Report feeds one attempt's result back into the pool. The entry is
// deactivated once it crosses the failure or sustained-low-score gate.
func (p *Pool) Report(id string, outcome Outcome, latency time.Duration) {
	id = normalize(id)
	now := p.now()

	p.mu.RLock()
	e, ok := p.entries[id]
	p.mu.RUnlock()
	if !ok {
		return
	}

	e.apply(outcome, latency, p.cfg.MinScore, now)
	metrics.ProxyScore.WithLabelValues(Mask(e.endpoint)).Set(e.snapshot().Score)

	if e.isActive() && e.shouldDeactivate(p.cfg.MaxFailures, p.cfg.GraceWindow, now) {
		e.deactivate()
		slog.Warn("proxy deactivated",
			"proxy", Mask(e.endpoint),
			"score", fmt.Sprintf("%.2f", e.snapshot().Score),
			"consecutive_failures", e.snapshot().ConsecutiveFailures)
		p.notifyChange()
	}
}

// ActiveCount returns the number of selectable proxies.
func (p *Pool) ActiveCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	count := 0
	for _, e := range p.entries {
		if e.isActive() {
			count++
		}
	}
	return count
}

// Len returns the number of registered proxies, active or not.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

// Snapshots returns a point-in-time view of every entry, sorted by
// registration order.
func (p *Pool) Snapshots() []Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]Snapshot, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.entries[id].snapshot())
	}
	return out
}

// Restore re-seeds health state from persisted snapshots. Unknown IDs are
// ignored; the grace clock starts fresh.
func (p *Pool) Restore(snaps []Snapshot) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, s := range snaps {
		if e, ok := p.entries[normalize(s.ID)]; ok {
			e.restore(s.Score, s.ConsecutiveFailures)
		}
	}
}

// entriesForCheck hands the health checker a stable copy of the entry set.
func (p *Pool) entriesForCheck() []*entry {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]*entry, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.entries[id])
	}
	return out
}

func (p *Pool) notifyChange() {
	p.mu.RLock()
	fn := p.onChange
	p.mu.RUnlock()

	if fn != nil {
		fn(p.ActiveCount())
	}
}

// Mask redacts a proxy endpoint for logs: "http://u:p@1.2.3.4:8080" becomes
// "1.2.x.x:8080".
func Mask(endpoint string) string {
	if endpoint == "" {
		return "direct"
	}

	s := endpoint
	if i := strings.LastIndex(s, "@"); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	s = strings.TrimSuffix(s, "/")

	host, port := s, "?"
	if i := strings.LastIndex(s, ":"); i >= 0 {
		host, port = s[:i], s[i+1:]
	}

	parts := strings.Split(host, ".")
	if len(parts) == 4 {
		return fmt.Sprintf("%s.%s.x.x:%s", parts[0], parts[1], port)
	}
	if len(host) > 8 {
		host = host[:8] + ".."
	}
	return host + ":" + port
}
