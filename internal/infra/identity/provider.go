// Package identity produces the network identity presented per attempt: a
// coherent browser fingerprint profile, its header set, and a per-identity
// device signature. Selection is independent of proxy selection so that
// proxy and identity vary independently across attempts.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand"
	"sync"

	"github.com/google/uuid"
)

// Strategy selects how profiles are rotated.
type Strategy int

const (
	StrategyRoundRobin Strategy = iota
	StrategyRandom
)

// Identity is one complete per-attempt network identity.
type Identity struct {
	Profile

	// Per-identity device signature. Regenerated on every rotation so two
	// attempts never share a device fingerprint.
	DeviceID  string
	MachineID string
	WindowID  string
}

// Headers returns the header set this identity presents on the wire.
func (id Identity) Headers() map[string]string {
	return map[string]string{
		"User-Agent":         id.UserAgent,
		"Sec-Ch-Ua":          id.SecChUA,
		"Sec-Ch-Ua-Mobile":   id.SecChUAMobile,
		"Sec-Ch-Ua-Platform": id.SecChUAPlatform,
		"Accept-Language":    id.AcceptLanguage,
		"X-Mid":              id.MachineID,
	}
}

// Label is a short human-readable tag for logs, e.g. "chrome 142/Windows".
func (id Identity) Label() string {
	return fmt.Sprintf("%s %s/%s", id.BrowserName, id.BrowserVersion, id.Platform)
}

// Provider hands out identities. Stateless aside from the rotation counter;
// safe for concurrent use.
type Provider struct {
	mu       sync.Mutex
	catalog  []Profile
	strategy Strategy
	index    int
	lastIdx  int
}

// NewProvider creates a provider over the given catalog. An empty catalog
// falls back to DefaultCatalog.
func NewProvider(catalog []Profile, strategy Strategy) *Provider {
	if len(catalog) == 0 {
		catalog = DefaultCatalog
	}
	return &Provider{catalog: catalog, strategy: strategy, lastIdx: -1}
}

// Next returns a fresh identity. When the catalog has more than one entry
// it never hands out the same profile twice in a row, so a forced rotation
// after a 401/403-class outcome always changes the presented fingerprint.
func (p *Provider) Next() Identity {
	p.mu.Lock()
	defer p.mu.Unlock()

	var idx int
	switch p.strategy {
	case StrategyRandom:
		idx = rand.Intn(len(p.catalog))
		for len(p.catalog) > 1 && idx == p.lastIdx {
			idx = rand.Intn(len(p.catalog))
		}
	default:
		idx = p.index % len(p.catalog)
		p.index++
	}
	p.lastIdx = idx

	return newIdentity(p.catalog[idx])
}

// CatalogSize returns the number of profiles available.
func (p *Provider) CatalogSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.catalog)
}

func newIdentity(profile Profile) Identity {
	deviceID := uuid.NewString()
	return Identity{
		Profile:   profile,
		DeviceID:  deviceID,
		MachineID: machineID(deviceID),
		WindowID:  uuid.NewString(),
	}
}

// machineID derives a stable-looking opaque token from the device ID, in the
// shape the remote service expects for its machine identifier cookie.
func machineID(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])[:28]
}
