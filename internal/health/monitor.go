package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/wacloud/internal/core/domain"
	"github.com/vietddude/wacloud/internal/infra/rpc/provider"
	"github.com/vietddude/wacloud/internal/infra/rpc/ratelimit"
	"github.com/vietddude/wacloud/internal/metrics"
)

// LimiterSource exposes rate window usage.
type LimiterSource interface {
	Stats() ratelimit.Stats
}

// ProviderSource exposes transport statistics.
type ProviderSource interface {
	GetStats() provider.MonitorStats
}

// FailureSource lists recent failed sends. Optional.
type FailureSource interface {
	RecentFailures(ctx context.Context, n int64) ([]domain.FailedSend, error)
}

const recentFailures = 10

// Monitor aggregates health status from the limiter and transport.
type Monitor struct {
	limiter  LimiterSource
	provider ProviderSource
	failures FailureSource

	cacheFor   time.Duration
	lastCheck  time.Time
	lastReport HealthReport
	mu         sync.Mutex
}

// NewMonitor creates a new health monitor. failures may be nil.
func NewMonitor(limiter LimiterSource, prov ProviderSource, failures FailureSource) *Monitor {
	return &Monitor{
		limiter:  limiter,
		provider: prov,
		failures: failures,
		cacheFor: time.Second,
	}
}

// CheckHealth builds a report and publishes limiter gauges.
func (m *Monitor) CheckHealth(ctx context.Context) HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Cache briefly so repeated health checks do not hammer Redis
	if time.Since(m.lastCheck) < m.cacheFor && !m.lastCheck.IsZero() {
		return m.lastReport
	}

	report := HealthReport{SystemStatus: StatusHealthy, CheckedAt: time.Now()}

	// 1. Rate window
	ls := m.limiter.Stats()
	metrics.UpdateLimiter(ls)
	report.Limiter = LimiterHealth{
		Capacity:        ls.Capacity,
		InWindow:        ls.InWindow,
		Waiting:         ls.Waiting,
		UsagePercentage: ls.UsagePercentage(),
		Admitted:        ls.Admitted,
		Delayed:         ls.Delayed,
	}
	if !ls.CooldownUntil.IsZero() {
		until := ls.CooldownUntil
		report.Limiter.CooldownUntil = &until
	}

	// 2. Transport
	if m.provider != nil {
		report.Provider = m.provider.GetStats()
	}

	// 3. Recent failures
	if m.failures != nil {
		failures, err := m.failures.RecentFailures(ctx, recentFailures)
		if err != nil {
			slog.Warn("Failed to load recent failures", "error", err)
		} else {
			report.RecentFailures = failures
		}
	}

	report.SystemStatus = evaluate(report)

	m.lastCheck = time.Now()
	m.lastReport = report
	return report
}

func evaluate(r HealthReport) SystemStatus {
	p := r.Provider
	if p.Requests >= 10 && p.ErrorRate >= 0.8 {
		return StatusCritical
	}
	if p.Status == provider.StatusThrottled.String() || p.Status == provider.StatusDegraded.String() {
		return StatusDegraded
	}
	if r.Limiter.CooldownUntil != nil {
		return StatusDegraded
	}
	if r.Limiter.Waiting > 0 && r.Limiter.InWindow >= r.Limiter.Capacity {
		return StatusDegraded
	}
	return StatusHealthy
}
