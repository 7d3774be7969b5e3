package provider

import (
	"sync"
	"time"
)

// Status represents the health state of the API connection.
type Status int

const (
	StatusHealthy   Status = iota // Requests succeed normally
	StatusDegraded                // Slow or frequently failing
	StatusThrottled               // Server is rate limiting
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusThrottled:
		return "throttled"
	default:
		return "unknown"
	}
}

// MonitorStats holds monitoring statistics.
type MonitorStats struct {
	Status         string        `json:"status"`
	AverageLatency time.Duration `json:"average_latency"`
	Requests       int           `json:"requests"`
	Failures       int           `json:"failures"`
	ThrottleCount  int           `json:"throttle_count"`
	LastThrottleAt time.Time     `json:"last_throttle_at,omitempty"`
	RetryAfter     time.Duration `json:"retry_after"`
	ErrorRate      float64       `json:"error_rate"`
}

// Monitor tracks latency, failures and throttling.
type Monitor struct {
	mu sync.RWMutex

	recentLatencies  []time.Duration
	maxLatencyWindow int

	// outcomes of the most recent round trips, true for failure
	recent    []bool
	maxRecent int

	requests         int
	failures         int
	throttleCount    int
	lastThrottleTime time.Time
	retryAfter       time.Duration

	slowResponseThreshold time.Duration
	degradedThreshold     float64
	defaultCooldown       time.Duration

	now func() time.Time
}

// NewMonitor creates a monitor with default thresholds.
func NewMonitor() *Monitor {
	return &Monitor{
		recentLatencies:       make([]time.Duration, 0, 100),
		maxLatencyWindow:      100,
		recent:                make([]bool, 0, 50),
		maxRecent:             50,
		slowResponseThreshold: 3 * time.Second,
		degradedThreshold:     0.3,
		defaultCooldown:       60 * time.Second,
		now:                   time.Now,
	}
}

// RecordRequest records a successful round trip.
func (m *Monitor) RecordRequest(latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests++
	m.recentLatencies = append(m.recentLatencies, latency)
	if len(m.recentLatencies) > m.maxLatencyWindow {
		m.recentLatencies = m.recentLatencies[1:]
	}
	m.pushLocked(false)
}

// RecordFailure records a failed round trip.
func (m *Monitor) RecordFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests++
	m.failures++
	m.pushLocked(true)
}

// RecordThrottle records a 429. A zero retryAfter falls back to a default
// cooldown for status reporting.
func (m *Monitor) RecordThrottle(retryAfter time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests++
	m.failures++
	m.throttleCount++
	m.lastThrottleTime = m.now()
	if retryAfter <= 0 {
		retryAfter = m.defaultCooldown
	}
	m.retryAfter = retryAfter
	m.pushLocked(true)
}

func (m *Monitor) pushLocked(failed bool) {
	m.recent = append(m.recent, failed)
	if len(m.recent) > m.maxRecent {
		m.recent = m.recent[1:]
	}
}

// CheckStatus returns the current status.
func (m *Monitor) CheckStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statusLocked()
}

func (m *Monitor) statusLocked() Status {
	if !m.lastThrottleTime.IsZero() && m.now().Sub(m.lastThrottleTime) < m.retryAfter {
		return StatusThrottled
	}

	if len(m.recent) >= 10 {
		failed := 0
		for _, f := range m.recent {
			if f {
				failed++
			}
		}
		if float64(failed)/float64(len(m.recent)) > m.degradedThreshold {
			return StatusDegraded
		}
	}

	if len(m.recentLatencies) > 10 && m.averageLatencyLocked() > m.slowResponseThreshold {
		return StatusDegraded
	}

	return StatusHealthy
}

// GetRetryAfter returns the remaining server cooldown.
func (m *Monitor) GetRetryAfter() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.lastThrottleTime.IsZero() {
		return 0
	}
	remaining := m.retryAfter - m.now().Sub(m.lastThrottleTime)
	if remaining > 0 {
		return remaining
	}
	return 0
}

func (m *Monitor) averageLatencyLocked() time.Duration {
	if len(m.recentLatencies) == 0 {
		return 0
	}
	var total time.Duration
	for _, lat := range m.recentLatencies {
		total += lat
	}
	return total / time.Duration(len(m.recentLatencies))
}

// GetStats returns current monitoring statistics.
func (m *Monitor) GetStats() MonitorStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := MonitorStats{
		Status:         m.statusLocked().String(),
		AverageLatency: m.averageLatencyLocked(),
		Requests:       m.requests,
		Failures:       m.failures,
		ThrottleCount:  m.throttleCount,
		LastThrottleAt: m.lastThrottleTime,
		RetryAfter:     m.retryAfter,
	}
	if m.requests > 0 {
		stats.ErrorRate = float64(m.failures) / float64(m.requests)
	}
	return stats
}
