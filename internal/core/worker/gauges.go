package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/wacloud/internal/infra/rpc/ratelimit"
	"github.com/vietddude/wacloud/internal/metrics"
)

// LimiterSource exposes rate window usage.
type LimiterSource interface {
	Stats() ratelimit.Stats
}

// GaugeUpdater publishes rate window gauges on a fixed interval so /metrics
// stays current between health checks.
type GaugeUpdater struct {
	limiter  LimiterSource
	interval time.Duration
	publish  func(ratelimit.Stats)
}

// NewGaugeUpdater creates a new GaugeUpdater worker.
func NewGaugeUpdater(limiter LimiterSource, interval time.Duration) *GaugeUpdater {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &GaugeUpdater{
		limiter:  limiter,
		interval: interval,
		publish:  metrics.UpdateLimiter,
	}
}

// Start runs the update loop until ctx is done.
func (g *GaugeUpdater) Start(ctx context.Context) {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	// Initial update
	g.update()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.update()
		}
	}
}

func (g *GaugeUpdater) update() {
	s := g.limiter.Stats()
	g.publish(s)

	if s.Waiting > 0 {
		slog.Debug("Rate window saturated",
			"in_window", s.InWindow,
			"capacity", s.Capacity,
			"waiting", s.Waiting,
		)
	}
}
