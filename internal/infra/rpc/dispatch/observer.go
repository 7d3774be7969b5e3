package dispatch

import (
	"time"

	"github.com/vietddude/wacloud/internal/infra/rpc/classify"
)

// Attempt describes one HTTP round trip.
type Attempt struct {
	RequestID string
	Op        string
	Index     int

	// AdmissionWait is how long the limiter held the attempt.
	AdmissionWait time.Duration
	Latency       time.Duration

	StatusCode int
	Outcome    classify.Kind
	Reason     string
	Throttled  bool
	RetryAfter time.Duration
}

// Result describes a finished logical send.
type Result struct {
	RequestID  string
	Op         string
	Attempts   int
	Elapsed    time.Duration
	StatusCode int
	// Kind is KindUnknown on success.
	Kind Kind
	Err  error
}

// Observer receives dispatch events. Implementations must be safe for
// concurrent use and must not block.
type Observer interface {
	OnAttempt(Attempt)
	OnResult(Result)
}

// Observers fans events out to several observers.
type Observers []Observer

func (o Observers) OnAttempt(a Attempt) {
	for _, obs := range o {
		if obs != nil {
			obs.OnAttempt(a)
		}
	}
}

func (o Observers) OnResult(r Result) {
	for _, obs := range o {
		if obs != nil {
			obs.OnResult(r)
		}
	}
}

type nopObserver struct{}

func (nopObserver) OnAttempt(Attempt) {}
func (nopObserver) OnResult(Result)   {}
