package retry

import (
	"testing"
	"time"

	"github.com/vietddude/wacloud/internal/infra/rpc/classify"
)

func retryable() classify.Outcome {
	return classify.Outcome{Kind: classify.KindRetryable, Reason: classify.ReasonTransient, StatusCode: 500}
}

func throttled(after time.Duration) classify.Outcome {
	return classify.Outcome{Kind: classify.KindRetryable, Reason: classify.ReasonThrottled, StatusCode: 429, Throttled: true, RetryAfter: after}
}

func TestDecide(t *testing.T) {
	p := NewPolicy(Config{MaxRetries: 2, BaseDelay: time.Second, Backoff: BackoffExponential, RetryOnThrottle: true})

	tests := []struct {
		name    string
		out     classify.Outcome
		attempt int
		action  Action
		delay   time.Duration
	}{
		{"success", classify.Outcome{Kind: classify.KindSuccess}, 0, ActionReturn, 0},
		{"fatal", classify.Outcome{Kind: classify.KindFatal}, 0, ActionFail, 0},
		{"unknown kind", classify.Outcome{}, 0, ActionFail, 0},
		{"first retry", retryable(), 0, ActionRetry, time.Second},
		{"second retry", retryable(), 1, ActionRetry, 2 * time.Second},
		{"exhausted", retryable(), 2, ActionExhausted, 0},
		{"server hint wins", throttled(5 * time.Second), 1, ActionRetry, 5 * time.Second},
		{"throttle without hint", throttled(0), 0, ActionRetry, time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := p.Decide(tt.out, tt.attempt)
			if d.Action != tt.action {
				t.Fatalf("action=%v want %v", d.Action, tt.action)
			}
			if d.Delay != tt.delay {
				t.Errorf("delay=%v want %v", d.Delay, tt.delay)
			}
		})
	}
}

func TestDecide_ThrottleDisabled(t *testing.T) {
	p := NewPolicy(Config{MaxRetries: 5, BaseDelay: time.Second, RetryOnThrottle: false})

	d := p.Decide(throttled(5*time.Second), 0)
	if d.Action != ActionThrottled || !d.Terminal() {
		t.Fatalf("expected terminal throttled decision, got %+v", d)
	}

	// Transient failures are still retried.
	if d := p.Decide(retryable(), 0); d.Action != ActionRetry {
		t.Errorf("expected retry for 5xx, got %v", d.Action)
	}
}

func TestDecide_ZeroRetries(t *testing.T) {
	p := NewPolicy(Config{MaxRetries: 0, BaseDelay: time.Second, RetryOnThrottle: true})
	if d := p.Decide(retryable(), 0); d.Action != ActionExhausted {
		t.Errorf("expected exhausted, got %v", d.Action)
	}
}

func TestBackoff_NonDecreasing(t *testing.T) {
	configs := []Config{
		{BaseDelay: 100 * time.Millisecond, Backoff: BackoffExponential},
		{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, Backoff: BackoffExponential},
		{BaseDelay: 250 * time.Millisecond, Backoff: BackoffFixed},
		{BaseDelay: time.Second, MaxDelay: 30 * time.Second},
	}

	for _, cfg := range configs {
		p := NewPolicy(cfg)
		prev := time.Duration(0)
		for attempt := 0; attempt < 80; attempt++ {
			d := p.Backoff(attempt)
			if d < prev {
				t.Fatalf("%+v: backoff decreased at attempt %d: %v < %v", cfg, attempt, d, prev)
			}
			if cfg.MaxDelay > 0 && d > cfg.MaxDelay {
				t.Fatalf("%+v: backoff %v exceeds cap", cfg, d)
			}
			prev = d
		}
	}
}

func TestBackoff_Fixed(t *testing.T) {
	p := NewPolicy(Config{BaseDelay: 300 * time.Millisecond, Backoff: BackoffFixed})
	for attempt := 0; attempt < 5; attempt++ {
		if got := p.Backoff(attempt); got != 300*time.Millisecond {
			t.Errorf("attempt %d: %v", attempt, got)
		}
	}
}

func TestNewPolicy_Clamps(t *testing.T) {
	p := NewPolicy(Config{MaxRetries: -1, BaseDelay: -time.Second})
	cfg := p.Config()
	if cfg.MaxRetries != 0 || cfg.BaseDelay != 0 || cfg.Backoff != BackoffExponential {
		t.Errorf("unexpected clamped config: %+v", cfg)
	}
}
