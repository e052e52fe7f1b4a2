package proxy

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Prober issues a lightweight health probe through one proxy endpoint.
type Prober interface {
	Probe(ctx context.Context, endpoint string) (ok bool, latency time.Duration, err error)
}

// DefaultCheckInterval is how often the background sweep runs.
const DefaultCheckInterval = 300 * time.Second

// maxConcurrentProbes bounds one sweep so a large pool does not open a
// connection storm.
const maxConcurrentProbes = 8

// Checker periodically probes every registered proxy, feeding results back
// into the pool. It runs independently of the request path and recovers
// deactivated proxies that come back to life.
type Checker struct {
	pool     *Pool
	prober   Prober
	interval time.Duration
	timeout  time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewChecker creates a checker for the pool. interval <= 0 selects
// DefaultCheckInterval.
func NewChecker(pool *Pool, prober Prober, interval, timeout time.Duration) *Checker {
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Checker{
		pool:     pool,
		prober:   prober,
		interval: interval,
		timeout:  timeout,
	}
}

// Start launches the background sweep loop. It returns immediately; Stop
// joins the loop.
func (c *Checker) Start(ctx context.Context) {
	if c.done != nil {
		return
	}

	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})

	go func() {
		defer close(c.done)

		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.CheckAll(ctx)
			}
		}
	}()

	slog.Info("proxy health checker started", "interval", c.interval)
}

// Stop cancels the loop and waits for it to exit.
func (c *Checker) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
	slog.Info("proxy health checker stopped")
}

// CheckResult summarises one sweep.
type CheckResult struct {
	Total     int
	Alive     int
	Dead      int
	Recovered int
}

// CheckAll probes every registered proxy once, concurrently. Probe results
// update entries one at a time; live traffic is never blocked pool-wide.
func (c *Checker) CheckAll(ctx context.Context) CheckResult {
	entries := c.pool.entriesForCheck()

	var result CheckResult
	result.Total = len(entries)
	if result.Total == 0 {
		return result
	}

	type probeOutcome struct {
		e       *entry
		ok      bool
		latency time.Duration
	}
	outcomes := make([]probeOutcome, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentProbes)

	for i, e := range entries {
		g.Go(func() error {
			probeCtx, cancel := context.WithTimeout(gctx, c.timeout)
			defer cancel()

			ok, latency, err := c.prober.Probe(probeCtx, e.endpoint)
			if err != nil {
				ok = false
			}
			outcomes[i] = probeOutcome{e: e, ok: ok, latency: latency}
			return nil
		})
	}
	_ = g.Wait() // probes never return errors, failures are outcomes

	now := c.pool.now()
	for _, o := range outcomes {
		o.e.markChecked(now)

		if o.ok {
			result.Alive++
			if !o.e.isActive() {
				o.e.recover(c.pool.cfg.MinScore)
				result.Recovered++
				slog.Info("proxy recovered", "proxy", Mask(o.e.endpoint))
			}
			c.pool.Report(o.e.id, OutcomeSuccess, o.latency)
		} else {
			result.Dead++
			c.pool.Report(o.e.id, OutcomeSoftFailure, 0)
		}
	}

	if result.Recovered > 0 {
		c.pool.notifyChange()
	}

	slog.Debug("proxy health sweep",
		"alive", result.Alive,
		"dead", result.Dead,
		"recovered", result.Recovered)

	return result
}
