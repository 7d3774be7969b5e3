// Package retry decides whether a classified outcome is retried and how
// long to wait before the next attempt.
//
// Retried requests are not made idempotent here: a retried send may deliver
// a message twice if the server accepted the first attempt but its response
// was lost.
package retry

import (
	"math"
	"time"

	"github.com/vietddude/wacloud/internal/infra/rpc/classify"
)

// Backoff selects how the base delay grows across retries.
type Backoff string

const (
	BackoffExponential Backoff = "exponential"
	BackoffFixed       Backoff = "fixed"
)

// Config defines retry behavior. It is read-only after construction.
type Config struct {
	MaxRetries      int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	Backoff         Backoff
	RetryOnThrottle bool
}

// DefaultConfig mirrors the platform SDK defaults.
var DefaultConfig = Config{
	MaxRetries:      3,
	BaseDelay:       1 * time.Second,
	MaxDelay:        30 * time.Second,
	Backoff:         BackoffExponential,
	RetryOnThrottle: true,
}

// Action is the policy verdict for one attempt.
type Action int

const (
	// ActionReturn terminates with the successful payload.
	ActionReturn Action = iota
	// ActionFail terminates with the outcome's error.
	ActionFail
	// ActionRetry waits Delay and tries again.
	ActionRetry
	// ActionExhausted terminates because the retry budget is spent.
	ActionExhausted
	// ActionThrottled terminates on a throttled response without retrying.
	ActionThrottled
)

func (a Action) String() string {
	switch a {
	case ActionReturn:
		return "return"
	case ActionFail:
		return "fail"
	case ActionRetry:
		return "retry"
	case ActionExhausted:
		return "exhausted"
	case ActionThrottled:
		return "throttled"
	default:
		return "unknown"
	}
}

// Decision is what the dispatcher should do next.
type Decision struct {
	Action Action
	Delay  time.Duration
	// ServerHinted is set when Delay came from the server.
	ServerHinted bool
}

// Terminal reports whether the dispatcher should stop looping.
func (d Decision) Terminal() bool { return d.Action != ActionRetry }

// Policy applies a Config to outcomes.
type Policy struct {
	cfg Config
}

// NewPolicy creates a policy. Negative values are clamped to zero and an
// empty Backoff selects exponential growth.
func NewPolicy(cfg Config) Policy {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay < 0 {
		cfg.BaseDelay = 0
	}
	if cfg.MaxDelay < 0 {
		cfg.MaxDelay = 0
	}
	if cfg.Backoff == "" {
		cfg.Backoff = BackoffExponential
	}
	return Policy{cfg: cfg}
}

// Config returns the policy configuration.
func (p Policy) Config() Config { return p.cfg }

// Decide maps an outcome at a zero-based attempt index to a decision.
func (p Policy) Decide(out classify.Outcome, attempt int) Decision {
	switch out.Kind {
	case classify.KindSuccess:
		return Decision{Action: ActionReturn}
	case classify.KindRetryable:
	default:
		return Decision{Action: ActionFail}
	}

	if out.Throttled && !p.cfg.RetryOnThrottle {
		return Decision{Action: ActionThrottled}
	}
	if attempt >= p.cfg.MaxRetries {
		return Decision{Action: ActionExhausted}
	}

	if out.RetryAfter > 0 {
		return Decision{Action: ActionRetry, Delay: out.RetryAfter, ServerHinted: true}
	}
	return Decision{Action: ActionRetry, Delay: p.Backoff(attempt)}
}

// Backoff returns the delay before retry number attempt+1. The sequence is
// non-decreasing in attempt.
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if p.cfg.Backoff == BackoffFixed {
		return p.cap(p.cfg.BaseDelay)
	}

	delay := float64(p.cfg.BaseDelay) * math.Pow(2, float64(attempt))
	if delay >= float64(math.MaxInt64) {
		return p.cap(time.Duration(math.MaxInt64))
	}
	return p.cap(time.Duration(delay))
}

func (p Policy) cap(d time.Duration) time.Duration {
	if p.cfg.MaxDelay > 0 && d > p.cfg.MaxDelay {
		return p.cfg.MaxDelay
	}
	return d
}
