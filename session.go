// Package pacer is a resilience layer between application API calls and an
// outbound HTTP transport talking to a rate-limiting, fingerprint-sensitive
// remote service. A Session owns the speed mode, concurrency gate, per-category
// rate budgets, proxy pool with background health checking, identity rotation,
// and the escalation-aware retry loop, and exposes a single Do entry point.
package pacer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/pacer/internal/core/config"
	"github.com/vietddude/pacer/internal/core/mode"
	"github.com/vietddude/pacer/internal/dispatch"
	"github.com/vietddude/pacer/internal/escalate"
	"github.com/vietddude/pacer/internal/infra/identity"
	"github.com/vietddude/pacer/internal/infra/proxy"
	redisclient "github.com/vietddude/pacer/internal/infra/redis"
	"github.com/vietddude/pacer/internal/infra/transport"
	"github.com/vietddude/pacer/internal/limiter"
	"github.com/vietddude/pacer/internal/metrics"
)

// Re-exported request-path types so callers only import this package.
type (
	Call      = dispatch.Call
	Request   = transport.Request
	Response  = transport.Response
	CallError = dispatch.CallError
)

// ChallengeResolver clears verification challenges on behalf of the session.
type ChallengeResolver = dispatch.ChallengeResolver

// Option customises session construction.
type Option func(*options)

type options struct {
	sender   transport.Sender
	prober   proxy.Prober
	resolver dispatch.ChallengeResolver
	store    *redisclient.ScoreStore
}

// WithSender replaces the HTTP transport, mainly for tests.
func WithSender(s transport.Sender) Option {
	return func(o *options) { o.sender = s }
}

// WithProber replaces the proxy health prober, mainly for tests.
func WithProber(p proxy.Prober) Option {
	return func(o *options) { o.prober = p }
}

// WithResolver installs a challenge resolver, making challenge outcomes
// retryable.
func WithResolver(r dispatch.ChallengeResolver) Option {
	return func(o *options) { o.resolver = r }
}

// WithScoreStore persists proxy health across restarts.
func WithScoreStore(s *redisclient.ScoreStore) Option {
	return func(o *options) { o.store = s }
}

// Session is one configured instance of the resilience layer.
type Session struct {
	id   string
	mode mode.SpeedMode

	gate       *dispatch.Gate
	limiter    *limiter.Limiter
	pool       *proxy.Pool
	checker    *proxy.Checker
	identities *identity.Provider
	escalation *escalate.Controller
	dispatcher *dispatch.Dispatcher
	store      *redisclient.ScoreStore

	sticky    bool
	closeOnce sync.Once
}

// New assembles a session from configuration.
func New(cfg *config.AppConfig, opts ...Option) (*Session, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	sm, err := cfg.Mode.SpeedMode()
	if err != nil {
		return nil, fmt.Errorf("resolve speed mode: %w", err)
	}

	strategy, err := proxy.ParseStrategy(cfg.Proxy.RotationStrategy)
	if err != nil {
		return nil, err
	}

	pool := proxy.NewPool(proxy.Config{
		Strategy:    strategy,
		MaxFailures: cfg.Proxy.MaxFailures,
		MinScore:    cfg.Proxy.MinScore,
		GraceWindow: cfg.Proxy.GraceWindow,
	})
	pool.Add(cfg.Proxy.Endpoints...)

	lim := limiter.New(limiter.Config{
		RatePerMinute: sm.RatePerMinute,
		Burst:         sm.BurstSize,
	})
	for category, budget := range cfg.Categories {
		lim.Configure(category, budget)
	}

	client := transport.NewClient(cfg.Transport.ProbeURL, cfg.Transport.Timeout)
	if o.sender == nil {
		o.sender = client
	}
	if o.prober == nil {
		o.prober = client
	}

	gate := dispatch.NewGate(sm.EffectiveConcurrency(pool.ActiveCount()))
	pool.OnChange(func(active int) {
		capacity := sm.EffectiveConcurrency(active)
		gate.Resize(capacity)
		metrics.ProxyPoolActive.Set(float64(active))
		metrics.EffectiveConcurrency.WithLabelValues(sm.Name).Set(float64(capacity))
		slog.Info("concurrency adjusted", "active_proxies", active, "capacity", capacity)
	})
	metrics.ProxyPoolActive.Set(float64(pool.ActiveCount()))
	metrics.EffectiveConcurrency.WithLabelValues(sm.Name).Set(float64(gate.Capacity()))

	escalation := escalate.NewController(cfg.Escalation.MaxLevel)
	identities := identity.NewProvider(nil, identity.StrategyRoundRobin)

	dispatcher, err := dispatch.New(dispatch.Options{
		Mode:       sm,
		Gate:       gate,
		Limiter:    lim,
		Pool:       pool,
		Identities: identities,
		Escalation: escalation,
		Sender:     o.sender,
		Retry: dispatch.RetryPolicy{
			MaxRetries:    cfg.Retry.MaxRetries,
			BaseBackoff:   cfg.Retry.BaseBackoff,
			BackoffFactor: cfg.Retry.BackoffFactor,
			BackoffMax:    cfg.Retry.BackoffMax,
			Jitter:        !cfg.Retry.NoJitter,
		},
		Resolver: o.resolver,
	})
	if err != nil {
		return nil, err
	}

	return &Session{
		id:         uuid.NewString()[:8],
		mode:       sm,
		gate:       gate,
		limiter:    lim,
		pool:       pool,
		checker:    proxy.NewChecker(pool, o.prober, cfg.Proxy.HealthCheckInterval, cfg.Transport.Timeout),
		identities: identities,
		escalation: escalation,
		dispatcher: dispatcher,
		store:      o.store,
		sticky:     cfg.Proxy.Sticky,
	}, nil
}

// Start restores persisted proxy health (when a store is configured) and
// launches the background health checker.
func (s *Session) Start(ctx context.Context) error {
	if s.store != nil {
		snaps, err := s.store.Load(ctx)
		if err != nil {
			slog.Warn("proxy score restore failed, starting clean", "error", err)
		} else if len(snaps) > 0 {
			s.pool.Restore(snaps)
			slog.Info("proxy scores restored", "entries", len(snaps))
		}
	}

	s.checker.Start(ctx)

	slog.Info("session started",
		"session", s.id,
		"mode", s.mode.Name,
		"proxies", s.pool.Len(),
		"concurrency", s.gate.Capacity())
	return nil
}

// Do runs one logical call through the full pipeline. When sticky proxy
// sessions are enabled and the call carries no key, attempts pin to a
// session-wide proxy.
func (s *Session) Do(ctx context.Context, call Call) (*Response, error) {
	if s.sticky && call.StickyKey == "" {
		call.StickyKey = s.id
	}
	return s.dispatcher.Do(ctx, call)
}

// Pause holds all categories for the given duration, e.g. after an
// out-of-band operator decision.
func (s *Session) Pause(d time.Duration) {
	s.limiter.Pause(d)
	slog.Warn("session paused", "session", s.id, "duration", d)
}

// Mode returns the resolved speed mode.
func (s *Session) Mode() mode.SpeedMode {
	return s.mode
}

// EffectiveConcurrency returns the gate's current capacity.
func (s *Session) EffectiveConcurrency() int {
	return s.gate.Capacity()
}

// EscalationLevel returns the current hostility level.
func (s *Session) EscalationLevel() int {
	return s.escalation.Level()
}

// Stats is a point-in-time view of the session.
type Stats struct {
	Mode                 string
	EffectiveConcurrency int
	InFlight             int
	EscalationLevel      int
	ActiveProxies        int
	TotalProxies         int
}

// Stats returns the session's current state for introspection surfaces.
func (s *Session) Stats() Stats {
	return Stats{
		Mode:                 s.mode.Name,
		EffectiveConcurrency: s.gate.Capacity(),
		InFlight:             s.gate.InFlight(),
		EscalationLevel:      s.escalation.Level(),
		ActiveProxies:        s.pool.ActiveCount(),
		TotalProxies:         s.pool.Len(),
	}
}

// PoolSnapshots returns a point-in-time view of proxy health.
func (s *Session) PoolSnapshots() []proxy.Snapshot {
	return s.pool.Snapshots()
}

// CheckProxies runs one health sweep immediately.
func (s *Session) CheckProxies(ctx context.Context) proxy.CheckResult {
	return s.checker.CheckAll(ctx)
}

// Close stops the health checker, persists proxy health, and rejects any
// queued or future calls. Safe to call more than once.
func (s *Session) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		s.checker.Stop()
		s.gate.Close()

		if s.store != nil {
			if saveErr := s.store.Save(ctx, s.pool.Snapshots()); saveErr != nil {
				err = fmt.Errorf("persist proxy scores: %w", saveErr)
			}
		}
		slog.Info("session closed", "session", s.id)
	})
	return err
}
