package dispatch

import (
	"context"
	"sync"
)

// Gate bounds the number of in-flight requests to the session's effective
// concurrency. Waiters are served in arrival order. Capacity can be resized
// at any time: already-issued permits stay valid, a shrink only affects
// future acquisitions.
type Gate struct {
	mu       sync.Mutex
	capacity int
	inFlight int
	waiters  []chan error
	closed   bool
}

// Permit represents one granted gate slot. Release must be called on every
// exit path; it is safe to call more than once.
type Permit struct {
	gate *Gate
	once sync.Once
}

// NewGate creates a gate with the given capacity.
func NewGate(capacity int) *Gate {
	if capacity < 1 {
		capacity = 1
	}
	return &Gate{capacity: capacity}
}

// Acquire blocks until a slot is free or ctx is cancelled. On cancellation
// no slot is leaked.
func (g *Gate) Acquire(ctx context.Context) (*Permit, error) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil, ErrGateClosed
	}

	if g.inFlight < g.capacity && len(g.waiters) == 0 {
		g.inFlight++
		g.mu.Unlock()
		return &Permit{gate: g}, nil
	}

	ready := make(chan error, 1)
	g.waiters = append(g.waiters, ready)
	g.mu.Unlock()

	select {
	case err := <-ready:
		if err != nil {
			return nil, err
		}
		return &Permit{gate: g}, nil
	case <-ctx.Done():
		g.mu.Lock()
		for i, w := range g.waiters {
			if w == ready {
				g.waiters = append(g.waiters[:i], g.waiters[i+1:]...)
				g.mu.Unlock()
				return nil, ctx.Err()
			}
		}
		g.mu.Unlock()
		// Not queued anymore: the gate already resolved this waiter.
		if err := <-ready; err != nil {
			return nil, err
		}
		// A slot was granted between ctx firing and taking the lock.
		// Hand it straight back so it is not leaked.
		g.mu.Lock()
		g.releaseLocked()
		g.mu.Unlock()
		return nil, ctx.Err()
	}
}

// TryAcquire grants a permit only if a slot is free right now.
func (g *Gate) TryAcquire() (*Permit, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed || g.inFlight >= g.capacity || len(g.waiters) > 0 {
		return nil, false
	}
	g.inFlight++
	return &Permit{gate: g}, true
}

// Release returns the permit's slot. Safe to call multiple times.
func (p *Permit) Release() {
	p.once.Do(func() {
		p.gate.mu.Lock()
		p.gate.releaseLocked()
		p.gate.mu.Unlock()
	})
}

// releaseLocked frees one slot and hands it to the oldest waiter, if any.
// Caller must hold g.mu.
func (g *Gate) releaseLocked() {
	g.inFlight--
	g.wakeLocked()
}

// wakeLocked grants slots to queued waiters while capacity allows.
// Caller must hold g.mu.
func (g *Gate) wakeLocked() {
	for len(g.waiters) > 0 && g.inFlight < g.capacity {
		ready := g.waiters[0]
		g.waiters = g.waiters[1:]
		g.inFlight++
		ready <- nil
	}
}

// Resize updates the capacity. Growing wakes queued waiters immediately;
// shrinking never revokes issued permits.
func (g *Gate) Resize(capacity int) {
	if capacity < 1 {
		capacity = 1
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.capacity = capacity
	g.wakeLocked()
}

// Capacity returns the current capacity.
func (g *Gate) Capacity() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.capacity
}

// InFlight returns the number of permits currently held.
func (g *Gate) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inFlight
}

// Close rejects all queued and future acquisitions with ErrGateClosed.
// Held permits may still be released.
func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return
	}
	g.closed = true
	for _, w := range g.waiters {
		w <- ErrGateClosed
	}
	g.waiters = nil
}
