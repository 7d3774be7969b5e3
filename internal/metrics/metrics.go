package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vietddude/wacloud/internal/infra/rpc/dispatch"
	"github.com/vietddude/wacloud/internal/infra/rpc/ratelimit"
)

var (
	// AttemptsTotal tracks HTTP round trips per operation and outcome reason
	AttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wacloud_dispatch_attempts_total",
			Help: "Total number of HTTP attempts made by the dispatcher",
		},
		[]string{"op", "reason"},
	)

	// ResultsTotal tracks finished sends per operation and terminal kind
	ResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wacloud_dispatch_results_total",
			Help: "Total number of finished sends",
		},
		[]string{"op", "result"},
	)

	// ThrottledTotal tracks server throttling responses
	ThrottledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wacloud_dispatch_throttled_total",
			Help: "Total number of responses the server marked as throttled",
		},
		[]string{"op"},
	)

	// AttemptLatency tracks round trip latency
	AttemptLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wacloud_dispatch_attempt_latency_seconds",
			Help:    "HTTP attempt latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// SendDuration tracks total send time including waits
	SendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wacloud_dispatch_send_duration_seconds",
			Help:    "Total send duration including admission and backoff waits",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"op"},
	)

	// AdmissionWait tracks time spent waiting for the rate limiter
	AdmissionWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wacloud_ratelimit_admission_wait_seconds",
			Help:    "Time an attempt waited for rate limiter admission",
			Buckets: []float64{.001, .01, .1, 1, 5, 15, 30, 60},
		},
	)

	// RateWindowInUse is the number of admissions in the trailing window
	RateWindowInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wacloud_ratelimit_window_in_use",
			Help: "Admissions recorded in the trailing rate window",
		},
	)

	// RateWindowCapacity is the configured requests per window
	RateWindowCapacity = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wacloud_ratelimit_window_capacity",
			Help: "Configured admissions per rate window",
		},
	)

	// RateLimiterWaiting is the number of callers blocked in Acquire
	RateLimiterWaiting = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wacloud_ratelimit_waiting",
			Help: "Callers currently waiting for admission",
		},
	)
)

// Observer records dispatch events in the package collectors.
type Observer struct{}

var _ dispatch.Observer = Observer{}

func (Observer) OnAttempt(a dispatch.Attempt) {
	AttemptsTotal.WithLabelValues(opLabel(a.Op), a.Reason).Inc()
	if a.Throttled {
		ThrottledTotal.WithLabelValues(opLabel(a.Op)).Inc()
	}
	if a.Latency > 0 {
		AttemptLatency.WithLabelValues(opLabel(a.Op)).Observe(a.Latency.Seconds())
	}
	AdmissionWait.Observe(a.AdmissionWait.Seconds())
}

func (Observer) OnResult(r dispatch.Result) {
	result := "ok"
	if r.Err != nil {
		result = r.Kind.String()
	}
	ResultsTotal.WithLabelValues(opLabel(r.Op), result).Inc()
	SendDuration.WithLabelValues(opLabel(r.Op)).Observe(r.Elapsed.Seconds())
}

// UpdateLimiter publishes a limiter snapshot.
func UpdateLimiter(s ratelimit.Stats) {
	RateWindowInUse.Set(float64(s.InWindow))
	RateWindowCapacity.Set(float64(s.Capacity))
	RateLimiterWaiting.Set(float64(s.Waiting))
}

func opLabel(op string) string {
	if op == "" {
		return "unknown"
	}
	return op
}
