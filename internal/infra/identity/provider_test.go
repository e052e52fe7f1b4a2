package identity

import "testing"

func TestRoundRobinCyclesCatalog(t *testing.T) {
	p := NewProvider(DefaultCatalog, StrategyRoundRobin)

	seen := make(map[string]bool)
	for i := 0; i < len(DefaultCatalog); i++ {
		id := p.Next()
		key := id.UserAgent
		if seen[key] {
			t.Errorf("profile %q handed out twice within one cycle", id.Label())
		}
		seen[key] = true
	}
}

func TestNextNeverRepeatsProfile(t *testing.T) {
	for _, strategy := range []Strategy{StrategyRoundRobin, StrategyRandom} {
		p := NewProvider(DefaultCatalog, strategy)

		prev := p.Next()
		for i := 0; i < 50; i++ {
			next := p.Next()
			if next.UserAgent == prev.UserAgent {
				t.Fatalf("strategy %d: same profile twice in a row: %s", strategy, next.Label())
			}
			prev = next
		}
	}
}

func TestDeviceSignatureUniquePerIdentity(t *testing.T) {
	p := NewProvider(nil, StrategyRoundRobin)

	a := p.Next()
	b := p.Next()

	if a.DeviceID == b.DeviceID {
		t.Error("device IDs should differ between identities")
	}
	if a.MachineID == b.MachineID {
		t.Error("machine IDs should differ between identities")
	}
	if len(a.MachineID) != 28 {
		t.Errorf("machine ID length = %d, want 28", len(a.MachineID))
	}
}

func TestHeadersCoherent(t *testing.T) {
	p := NewProvider(nil, StrategyRoundRobin)
	id := p.Next()

	h := id.Headers()
	if h["User-Agent"] != id.UserAgent {
		t.Error("User-Agent header must match the profile")
	}
	if h["Sec-Ch-Ua"] != id.SecChUA {
		t.Error("Sec-Ch-Ua header must match the profile")
	}
	if h["X-Mid"] != id.MachineID {
		t.Error("X-Mid header must carry the machine ID")
	}
}

func TestEmptyCatalogFallsBack(t *testing.T) {
	p := NewProvider(nil, StrategyRandom)
	if p.CatalogSize() != len(DefaultCatalog) {
		t.Errorf("CatalogSize() = %d, want %d", p.CatalogSize(), len(DefaultCatalog))
	}
}
