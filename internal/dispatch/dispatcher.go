// Package dispatch sequences every outgoing call through the resilience
// pipeline: concurrency gate, rate budget, escalated pacing, proxy and
// identity selection, transport, outcome classification, and retry.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/pacer/internal/core/mode"
	"github.com/vietddude/pacer/internal/escalate"
	"github.com/vietddude/pacer/internal/infra/identity"
	"github.com/vietddude/pacer/internal/infra/proxy"
	"github.com/vietddude/pacer/internal/infra/transport"
	"github.com/vietddude/pacer/internal/limiter"
	"github.com/vietddude/pacer/internal/metrics"
)

// ChallengeResolver is the external collaborator that can clear a
// verification challenge. Its presence is what makes ChallengeRequired
// outcomes retryable.
type ChallengeResolver interface {
	Resolve(ctx context.Context, resp *transport.Response) error
}

// Call is one logical request handed to the dispatcher.
type Call struct {
	Request  *transport.Request
	Category string
	// StickyKey pins all attempts of related calls to one proxy while it
	// stays healthy. Empty means rotate freely.
	StickyKey string
}

// Options wires a dispatcher. All fields except Resolver are required.
type Options struct {
	Mode       mode.SpeedMode
	Gate       *Gate
	Limiter    *limiter.Limiter
	Pool       *proxy.Pool
	Identities *identity.Provider
	Escalation *escalate.Controller
	Sender     transport.Sender
	Retry      RetryPolicy
	Resolver   ChallengeResolver
}

// Dispatcher is the orchestrating entry point consumed by endpoint modules.
type Dispatcher struct {
	mode       mode.SpeedMode
	gate       *Gate
	limiter    *limiter.Limiter
	pool       *proxy.Pool
	identities *identity.Provider
	escalation *escalate.Controller
	sender     transport.Sender
	retry      RetryPolicy
	resolver   ChallengeResolver
}

// New creates a dispatcher from the assembled components.
func New(opts Options) (*Dispatcher, error) {
	switch {
	case opts.Gate == nil:
		return nil, errors.New("dispatch: gate is required")
	case opts.Limiter == nil:
		return nil, errors.New("dispatch: limiter is required")
	case opts.Pool == nil:
		return nil, errors.New("dispatch: proxy pool is required")
	case opts.Identities == nil:
		return nil, errors.New("dispatch: identity provider is required")
	case opts.Escalation == nil:
		return nil, errors.New("dispatch: escalation controller is required")
	case opts.Sender == nil:
		return nil, errors.New("dispatch: transport sender is required")
	}

	if opts.Retry.MaxRetries <= 0 {
		opts.Retry = DefaultRetryPolicy
	}

	return &Dispatcher{
		mode:       opts.Mode,
		gate:       opts.Gate,
		limiter:    opts.Limiter,
		pool:       opts.Pool,
		identities: opts.Identities,
		escalation: opts.Escalation,
		sender:     opts.Sender,
		retry:      opts.Retry,
		resolver:   opts.Resolver,
	}, nil
}

// Do runs one logical call to settlement: a successful response, a typed
// *CallError after exhausting retries, or the context's error. The gate slot
// is released last on every exit path.
func (d *Dispatcher) Do(ctx context.Context, call Call) (*transport.Response, error) {
	if call.Request == nil {
		return nil, errors.New("dispatch: nil request")
	}
	if call.Category == "" {
		call.Category = "default"
	}

	permit, err := d.gate.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire gate: %w", err)
	}
	defer permit.Release()

	requestID := uuid.NewString()[:8]

	var (
		attempts   int
		lastKind   Kind
		lastStatus int
		lastErr    error
	)

	for attempt := 0; attempt < d.retry.MaxRetries; attempt++ {
		waitStart := time.Now()
		if err := d.limiter.Acquire(ctx, call.Category); err != nil {
			if errors.Is(err, limiter.ErrDisabled) {
				return nil, fmt.Errorf("dispatch %s: %w", requestID, err)
			}
			return nil, err
		}
		metrics.RateLimitWait.WithLabelValues(call.Category).Observe(time.Since(waitStart).Seconds())

		if err := d.sleep(ctx, d.paceDelay()); err != nil {
			return nil, err
		}

		pick, viaProxy := d.pool.Select(call.StickyKey)
		id := d.identities.Next()

		resp, sendErr := d.sender.Send(ctx, call.Request, id, pick.Endpoint)
		attempts++

		// A cancelled context settles the call immediately; whatever the
		// transport returned is unreliable at this point.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var (
			kind    Kind
			status  int
			latency time.Duration
		)
		if sendErr != nil {
			kind = Classify(0, nil, sendErr)
		} else {
			status = resp.StatusCode
			latency = resp.Latency
			kind = Classify(status, resp.Body, nil)
		}

		metrics.AttemptsTotal.WithLabelValues(call.Category, kind.String()).Inc()
		if latency > 0 {
			metrics.AttemptLatency.WithLabelValues(call.Category).Observe(latency.Seconds())
		}

		if viaProxy {
			d.reportProxy(pick.ID, kind, latency)
		}
		d.escalation.Record(escalationOutcome(kind))
		metrics.EscalationLevel.WithLabelValues(d.mode.Name).Set(float64(d.escalation.Level()))

		if kind == KindSuccess {
			slog.Debug("call ok",
				"id", requestID,
				"category", call.Category,
				"status", status,
				"proxy", proxy.Mask(pick.Endpoint),
				"identity", id.Label(),
				"attempt", attempts,
				"latency", latency)
			metrics.DispatchTotal.WithLabelValues(call.Category, kind.String()).Inc()
			return resp, nil
		}

		lastKind, lastStatus, lastErr = kind, status, sendErr

		slog.Warn("call attempt failed",
			"id", requestID,
			"category", call.Category,
			"kind", kind.String(),
			"status", status,
			"proxy", proxy.Mask(pick.Endpoint),
			"identity", id.Label(),
			"attempt", attempts,
			"escalation", d.escalation.Level(),
			"error", sendErr)

		if kind == KindRateLimited && resp != nil {
			if after, ok := resp.RetryAfter(); ok {
				d.limiter.Pause(after)
			}
		}

		// Proxies are configured but none was eligible, and direct egress
		// failed too: surface ProxyExhausted instead of burning retries.
		if !viaProxy && d.pool.Len() > 0 && kind == KindNetworkError {
			lastKind = KindProxyExhausted
			break
		}

		if !d.retry.Retryable(kind, d.resolver != nil) {
			break
		}
		if attempt == d.retry.MaxRetries-1 {
			break
		}

		if kind == KindChallengeRequired {
			if err := d.resolver.Resolve(ctx, resp); err != nil {
				slog.Warn("challenge resolution failed", "id", requestID, "error", err)
				break
			}
		}

		if err := d.sleep(ctx, d.retry.NextDelay(attempt, d.escalation.Multiplier())); err != nil {
			return nil, err
		}
	}

	metrics.DispatchTotal.WithLabelValues(call.Category, lastKind.String()).Inc()
	return nil, &CallError{Kind: lastKind, Attempts: attempts, Status: lastStatus, Err: lastErr}
}

// reportProxy maps a classified kind to the pool's outcome severity. A
// challenge implicates the identity, not the egress path, so it files no
// proxy report.
func (d *Dispatcher) reportProxy(id string, kind Kind, latency time.Duration) {
	switch kind {
	case KindSuccess:
		d.pool.Report(id, proxy.OutcomeSuccess, latency)
	case KindNetworkError:
		d.pool.Report(id, proxy.OutcomeSoftFailure, 0)
	case KindRateLimited, KindAuthRequired:
		d.pool.Report(id, proxy.OutcomeHardFailure, 0)
	}
}

func escalationOutcome(kind Kind) escalate.Outcome {
	switch kind {
	case KindSuccess:
		return escalate.OutcomeSuccess
	case KindRateLimited:
		return escalate.OutcomeRateLimited
	case KindChallengeRequired:
		return escalate.OutcomeChallenge
	default:
		return escalate.OutcomeOther
	}
}

// paceDelay draws the inter-request delay: uniform within the mode's range,
// scaled by the escalation multiplier.
func (d *Dispatcher) paceDelay() time.Duration {
	spread := d.mode.DelayMax - d.mode.DelayMin
	base := d.mode.DelayMin
	if spread > 0 {
		base += time.Duration(rand.Int63n(int64(spread)))
	}
	if base <= 0 {
		return 0
	}
	return time.Duration(float64(base) * d.escalation.Multiplier())
}

func (d *Dispatcher) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
