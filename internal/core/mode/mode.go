// Package mode defines the speed-mode presets and the effective
// concurrency calculation.
//
// A speed mode bundles the concurrency/delay/rate parameters for one
// safety-vs-throughput tradeoff. Presets:
//
//	safe      — ban-proof, low concurrency, human-like delays
//	fast      — balanced speed, moderate risk
//	turbo     — maximum throughput, proxies strongly recommended
//	unlimited — no pacing at all, for fully trusted targets
package mode

import (
	"fmt"
	"strings"
	"time"
)

// HardCap is the absolute in-flight request ceiling applied to every mode
// except unlimited, regardless of proxy scaling.
const HardCap = 200

// SpeedMode is an immutable bundle of pacing parameters.
type SpeedMode struct {
	Name            string
	MaxConcurrency  int           // base in-flight limit (no proxies)
	DelayMin        time.Duration // lower bound of the inter-request delay
	DelayMax        time.Duration // upper bound of the inter-request delay
	RatePerMinute   int           // token refill rate per category
	BurstSize       int           // token bucket capacity
	ProxyMultiplier float64       // extra concurrency per registered proxy
	ErrorBackoff    float64       // extra delay multiplier applied on errors
}

// Presets. Values mirror the tuning the modes were shipped with.
var (
	Safe = SpeedMode{
		Name:            "safe",
		MaxConcurrency:  5,
		DelayMin:        800 * time.Millisecond,
		DelayMax:        2 * time.Second,
		RatePerMinute:   30,
		BurstSize:       3,
		ProxyMultiplier: 3.0,
		ErrorBackoff:    2.0,
	}

	Fast = SpeedMode{
		Name:            "fast",
		MaxConcurrency:  15,
		DelayMin:        200 * time.Millisecond,
		DelayMax:        800 * time.Millisecond,
		RatePerMinute:   60,
		BurstSize:       8,
		ProxyMultiplier: 5.0,
		ErrorBackoff:    1.5,
	}

	Turbo = SpeedMode{
		Name:            "turbo",
		MaxConcurrency:  50,
		DelayMin:        50 * time.Millisecond,
		DelayMax:        300 * time.Millisecond,
		RatePerMinute:   120,
		BurstSize:       20,
		ProxyMultiplier: 10.0,
		ErrorBackoff:    1.2,
	}

	Unlimited = SpeedMode{
		Name:            "unlimited",
		MaxConcurrency:  1000,
		DelayMin:        0,
		DelayMax:        0,
		RatePerMinute:   999999,
		BurstSize:       1000,
		ProxyMultiplier: 10.0,
		ErrorBackoff:    1.0,
	}
)

var presets = map[string]SpeedMode{
	"safe":      Safe,
	"fast":      Fast,
	"turbo":     Turbo,
	"unlimited": Unlimited,
}

// Get returns a preset by name. Names are case-insensitive.
func Get(name string) (SpeedMode, error) {
	m, ok := presets[strings.ToLower(name)]
	if !ok {
		return SpeedMode{}, fmt.Errorf("unknown speed mode %q (available: safe, fast, turbo, unlimited)", name)
	}
	return m, nil
}

// Validate checks the invariants a custom mode must hold.
func (m SpeedMode) Validate() error {
	if m.MaxConcurrency <= 0 {
		return fmt.Errorf("mode %q: max_concurrency must be positive, got %d", m.Name, m.MaxConcurrency)
	}
	if m.DelayMin > m.DelayMax {
		return fmt.Errorf("mode %q: delay_min %v exceeds delay_max %v", m.Name, m.DelayMin, m.DelayMax)
	}
	if m.RatePerMinute < 0 {
		return fmt.Errorf("mode %q: rate_per_minute must not be negative, got %d", m.Name, m.RatePerMinute)
	}
	if m.BurstSize <= 0 {
		return fmt.Errorf("mode %q: burst_size must be positive, got %d", m.Name, m.BurstSize)
	}
	return nil
}

// EffectiveConcurrency computes the in-flight cap after proxy scaling.
//
// Every proxy adds ProxyMultiplier concurrency slots on top of the base,
// capped at HardCap. The unlimited mode opts out of proxy scaling entirely
// and always runs at its base limit.
func (m SpeedMode) EffectiveConcurrency(proxyCount int) int {
	if m.Name == Unlimited.Name {
		return m.MaxConcurrency
	}

	effective := m.MaxConcurrency
	if proxyCount > 0 {
		effective += int(float64(proxyCount) * m.ProxyMultiplier)
	}
	return min(effective, HardCap)
}

// IsDisabled reports whether a rate of zero was configured, which turns a
// category into a hard stop.
func (m SpeedMode) IsDisabled() bool {
	return m.RatePerMinute == 0
}
