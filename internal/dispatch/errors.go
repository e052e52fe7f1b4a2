package dispatch

import (
	"errors"
	"fmt"
)

// Kind classifies a call outcome. It drives both the retry decision and the
// rotation/escalation side effects.
type Kind int

const (
	KindSuccess           Kind = iota
	KindRateLimited            // HTTP 429 or throttle pattern in the body
	KindChallengeRequired      // challenge/checkpoint gate from the remote service
	KindNetworkError           // 5xx, timeout, connection failure
	KindAuthRequired           // 401/session-invalid, needs external re-auth
	KindProxyExhausted         // no eligible proxy and direct egress failed too
	KindUnclassified           // anything else, non-retryable by default
)

// String returns the snake_case name used in logs and metric labels.
func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindRateLimited:
		return "rate_limited"
	case KindChallengeRequired:
		return "challenge_required"
	case KindNetworkError:
		return "network_error"
	case KindAuthRequired:
		return "auth_required"
	case KindProxyExhausted:
		return "proxy_exhausted"
	default:
		return "unclassified"
	}
}

// ErrGateClosed is returned when a permit is requested from a closed gate.
var ErrGateClosed = errors.New("concurrency gate is closed")

// CallError is the typed error surfaced to callers when a dispatched call
// settles without a successful response. It carries the classified kind and
// how many attempts were made, enough for the caller to decide whether to
// alert, abort, or hand off to a higher-level recovery flow.
type CallError struct {
	Kind     Kind
	Attempts int
	Status   int   // last HTTP status, 0 if the transport never answered
	Err      error // last underlying error, may be nil for status-only failures
}

func (e *CallError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("call failed after %d attempt(s): %s: %v", e.Attempts, e.Kind, e.Err)
	}
	if e.Status != 0 {
		return fmt.Sprintf("call failed after %d attempt(s): %s (HTTP %d)", e.Attempts, e.Kind, e.Status)
	}
	return fmt.Sprintf("call failed after %d attempt(s): %s", e.Attempts, e.Kind)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a *CallError of the given kind.
func IsKind(err error, kind Kind) bool {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}
