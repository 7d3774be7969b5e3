// Package health provides dispatch health monitoring and status reporting.
package health

import (
	"time"

	"github.com/vietddude/wacloud/internal/core/domain"
	"github.com/vietddude/wacloud/internal/infra/rpc/provider"
)

// SystemStatus represents the overall health state of the client.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// LimiterHealth summarises the local rate window.
type LimiterHealth struct {
	Capacity        int        `json:"capacity"`
	InWindow        int        `json:"in_window"`
	Waiting         int        `json:"waiting"`
	UsagePercentage float64    `json:"usage_percentage"`
	CooldownUntil   *time.Time `json:"cooldown_until,omitempty"`
	Admitted        uint64     `json:"admitted"`
	Delayed         uint64     `json:"delayed"`
}

// HealthReport contains the full health report.
type HealthReport struct {
	SystemStatus   SystemStatus          `json:"system_status"`
	Limiter        LimiterHealth         `json:"limiter"`
	Provider       provider.MonitorStats `json:"provider"`
	RecentFailures []domain.FailedSend   `json:"recent_failures,omitempty"`
	CheckedAt      time.Time             `json:"checked_at"`
}
