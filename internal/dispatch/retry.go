package dispatch

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net"
	"strings"
	"time"
)

// RetryPolicy defines how classified failures are retried.
type RetryPolicy struct {
	MaxRetries    int
	BaseBackoff   time.Duration
	BackoffFactor float64
	BackoffMax    time.Duration
	Jitter        bool
}

// DefaultRetryPolicy provides sensible defaults.
var DefaultRetryPolicy = RetryPolicy{
	MaxRetries:    3,
	BaseBackoff:   1 * time.Second,
	BackoffFactor: 2.0,
	BackoffMax:    60 * time.Second,
	Jitter:        true,
}

// minRetryDelay is the floor applied after jitter so a retry never fires
// back-to-back with the failed attempt.
const minRetryDelay = 100 * time.Millisecond

// Body markers the remote service uses to signal a verification gate or
// throttling without a dedicated status code.
var (
	challengeMarkers = []string{
		"challenge_required",
		"checkpoint_required",
		"checkpoint_challenge_required",
	}
	throttleMarkers = []string{
		"please wait a few minutes",
		"rate limit",
		"too many requests",
	}
)

// Classify maps a transport outcome to an error kind.
//
// A non-nil transport error always wins over the status code: the request
// never produced a usable response, so it is a network failure regardless of
// any partial status.
func Classify(status int, body []byte, err error) Kind {
	if err != nil {
		return classifyTransportError(err)
	}

	switch {
	case status == 429:
		return KindRateLimited
	case status == 401:
		return KindAuthRequired
	case status == 400 || status == 403:
		if containsAny(body, challengeMarkers) {
			return KindChallengeRequired
		}
		if status == 403 {
			return KindAuthRequired
		}
		return KindUnclassified
	case status >= 500:
		return KindNetworkError
	case status >= 200 && status < 400:
		if containsAny(body, challengeMarkers) {
			return KindChallengeRequired
		}
		return KindSuccess
	default:
		if containsAny(body, throttleMarkers) {
			return KindRateLimited
		}
		return KindUnclassified
	}
}

func classifyTransportError(err error) Kind {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindNetworkError
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindNetworkError
	}

	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "timeout"),
		strings.Contains(s, "connection refused"),
		strings.Contains(s, "connection reset"),
		strings.Contains(s, "no such host"),
		strings.Contains(s, "broken pipe"),
		strings.Contains(s, "eof"),
		strings.Contains(s, "proxyconnect"):
		return KindNetworkError
	default:
		return KindUnclassified
	}
}

func containsAny(body []byte, markers []string) bool {
	if len(body) == 0 {
		return false
	}
	s := strings.ToLower(string(body))
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// Retryable reports whether a kind may be retried inside the dispatcher.
// ChallengeRequired is only retryable when a challenge resolver collaborator
// is configured; without one the challenge is terminal.
func (p RetryPolicy) Retryable(kind Kind, hasResolver bool) bool {
	switch kind {
	case KindRateLimited, KindNetworkError:
		return true
	case KindChallengeRequired:
		return hasResolver
	default:
		return false
	}
}

// NextDelay computes the backoff before retry number attempt (0-indexed).
//
// Formula: min(backoff_max, base * factor^attempt) * escalation, then ±30%
// multiplicative jitter when enabled, floored at 100ms.
func (p RetryPolicy) NextDelay(attempt int, escalation float64) time.Duration {
	if escalation < 1.0 {
		escalation = 1.0
	}

	backoff := float64(p.BaseBackoff) * math.Pow(p.BackoffFactor, float64(attempt))
	backoff = math.Min(backoff, float64(p.BackoffMax))
	backoff *= escalation

	if p.Jitter {
		backoff *= 1.0 + (rand.Float64()*0.6 - 0.3)
	}

	return max(time.Duration(backoff), minRetryDelay)
}
