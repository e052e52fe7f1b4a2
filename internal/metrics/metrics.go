// Package metrics exposes the prometheus collectors for the dispatch path.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DispatchTotal tracks settled calls per category and final outcome kind.
	DispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pacer_dispatch_total",
			Help: "Total number of dispatched calls by final outcome",
		},
		[]string{"category", "kind"},
	)

	// AttemptsTotal tracks individual attempts, including retries.
	AttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pacer_attempts_total",
			Help: "Total number of transport attempts by outcome kind",
		},
		[]string{"category", "kind"},
	)

	// AttemptLatency tracks transport attempt latency.
	AttemptLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pacer_attempt_latency_seconds",
			Help:    "Transport attempt latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"category"},
	)

	// EscalationLevel tracks the session's current hostility level.
	EscalationLevel = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pacer_escalation_level",
			Help: "Current escalation level",
		},
		[]string{"mode"},
	)

	// ProxyScore tracks each proxy's current health score, labelled by the
	// masked endpoint.
	ProxyScore = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pacer_proxy_score",
			Help: "Current health score per proxy",
		},
		[]string{"proxy"},
	)

	// ProxyPoolActive tracks the number of selectable proxies.
	ProxyPoolActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pacer_proxy_pool_active",
			Help: "Number of active proxies in the pool",
		},
	)

	// EffectiveConcurrency tracks the current gate capacity.
	EffectiveConcurrency = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pacer_effective_concurrency",
			Help: "Current effective concurrency cap",
		},
		[]string{"mode"},
	)

	// RateLimitWait tracks time spent waiting on category budgets.
	RateLimitWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pacer_rate_limit_wait_seconds",
			Help:    "Time spent waiting for a rate budget token",
			Buckets: []float64{.005, .05, .25, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"category"},
	)
)
