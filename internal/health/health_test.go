package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vietddude/wacloud/internal/core/domain"
	"github.com/vietddude/wacloud/internal/infra/rpc/provider"
	"github.com/vietddude/wacloud/internal/infra/rpc/ratelimit"
)

// =============================================================================
// Stubs
// =============================================================================

type stubLimiter struct {
	stats ratelimit.Stats
}

func (s *stubLimiter) Stats() ratelimit.Stats { return s.stats }

type stubProvider struct {
	stats provider.MonitorStats
}

func (s *stubProvider) GetStats() provider.MonitorStats { return s.stats }

type stubFailures struct {
	items []domain.FailedSend
}

func (s *stubFailures) RecentFailures(ctx context.Context, n int64) ([]domain.FailedSend, error) {
	return s.items, nil
}

// =============================================================================
// Tests
// =============================================================================

func TestMonitor_Healthy(t *testing.T) {
	monitor := NewMonitor(
		&stubLimiter{stats: ratelimit.Stats{Capacity: 200, InWindow: 50}},
		&stubProvider{stats: provider.MonitorStats{Status: "healthy", Requests: 10}},
		nil,
	)

	report := monitor.CheckHealth(context.Background())
	if report.SystemStatus != StatusHealthy {
		t.Errorf("expected healthy, got %s", report.SystemStatus)
	}
	if report.Limiter.UsagePercentage != 25 {
		t.Errorf("expected 25%% usage, got %v", report.Limiter.UsagePercentage)
	}
}

func TestMonitor_DegradedWhenThrottled(t *testing.T) {
	monitor := NewMonitor(
		&stubLimiter{stats: ratelimit.Stats{Capacity: 250}},
		&stubProvider{stats: provider.MonitorStats{Status: "throttled", Requests: 3, Failures: 1}},
		nil,
	)

	if got := monitor.CheckHealth(context.Background()).SystemStatus; got != StatusDegraded {
		t.Errorf("expected degraded, got %s", got)
	}
}

func TestMonitor_DegradedWhenSaturated(t *testing.T) {
	monitor := NewMonitor(
		&stubLimiter{stats: ratelimit.Stats{Capacity: 5, InWindow: 5, Waiting: 2}},
		&stubProvider{stats: provider.MonitorStats{Status: "healthy"}},
		nil,
	)

	if got := monitor.CheckHealth(context.Background()).SystemStatus; got != StatusDegraded {
		t.Errorf("expected degraded, got %s", got)
	}
}

func TestMonitor_DegradedDuringCooldown(t *testing.T) {
	monitor := NewMonitor(
		&stubLimiter{stats: ratelimit.Stats{Capacity: 5, CooldownUntil: time.Now().Add(time.Minute)}},
		nil,
		nil,
	)

	report := monitor.CheckHealth(context.Background())
	if report.SystemStatus != StatusDegraded {
		t.Errorf("expected degraded, got %s", report.SystemStatus)
	}
	if report.Limiter.CooldownUntil == nil {
		t.Error("expected cooldown in report")
	}
}

func TestMonitor_Critical(t *testing.T) {
	monitor := NewMonitor(
		&stubLimiter{stats: ratelimit.Stats{Capacity: 250}},
		&stubProvider{stats: provider.MonitorStats{Status: "degraded", Requests: 20, Failures: 19, ErrorRate: 0.95}},
		&stubFailures{items: []domain.FailedSend{{RequestID: "r1", Op: "messages.send"}}},
	)

	report := monitor.CheckHealth(context.Background())
	if report.SystemStatus != StatusCritical {
		t.Errorf("expected critical, got %s", report.SystemStatus)
	}
	if len(report.RecentFailures) != 1 {
		t.Errorf("expected 1 recent failure, got %d", len(report.RecentFailures))
	}
}

func TestServer_Endpoints(t *testing.T) {
	monitor := NewMonitor(
		&stubLimiter{stats: ratelimit.Stats{Capacity: 250}},
		&stubProvider{stats: provider.MonitorStats{Status: "degraded", Requests: 20, ErrorRate: 0.9}},
		nil,
	)
	srv := httptest.NewServer(NewServer(monitor, 0).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "critical" {
		t.Errorf("expected critical, got %s", body["status"])
	}

	detailed, err := http.Get(srv.URL + "/health/detailed")
	if err != nil {
		t.Fatal(err)
	}
	defer detailed.Body.Close()
	var report HealthReport
	if err := json.NewDecoder(detailed.Body).Decode(&report); err != nil {
		t.Fatal(err)
	}
	if report.Limiter.Capacity != 250 {
		t.Errorf("expected capacity 250, got %d", report.Limiter.Capacity)
	}

	metricsResp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	metricsResp.Body.Close()
	if metricsResp.StatusCode != http.StatusOK {
		t.Errorf("expected metrics 200, got %d", metricsResp.StatusCode)
	}
}
