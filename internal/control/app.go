package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/vietddude/wacloud/internal/client"
	"github.com/vietddude/wacloud/internal/core/config"
	"github.com/vietddude/wacloud/internal/core/worker"
	"github.com/vietddude/wacloud/internal/health"
	redisclient "github.com/vietddude/wacloud/internal/infra/redis"
	"github.com/vietddude/wacloud/internal/infra/rpc/dispatch"
	"github.com/vietddude/wacloud/internal/metrics"
	"github.com/vietddude/wacloud/internal/webhook"
)

// WebhookPath is where the webhook handler is mounted on the health server.
const WebhookPath = "/webhook"

// App owns a client and the process-level services around it.
type App struct {
	cfg          *config.AppConfig
	client       *client.Client
	redisClient  *redisclient.Client
	stats        *redisclient.StatsRecorder
	healthMon    *health.Monitor
	healthServer *health.Server
	gauges       *worker.GaugeUpdater
	log          *slog.Logger
}

// Options customise NewApp.
type Options struct {
	// OnEvent receives webhook deliveries. Nil only acknowledges them.
	OnEvent webhook.EventFunc
	// Observers are added after the Prometheus and Redis observers.
	Observers []dispatch.Observer
	// GaugeInterval overrides the limiter gauge refresh period.
	GaugeInterval time.Duration
}

// NewApp creates an App with all dependencies initialized. Redis is optional:
// when it is unreachable dispatch statistics are disabled and the app still
// starts.
func NewApp(cfg *config.AppConfig, opts Options) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	log := slog.Default().With("component", "app")

	// 1. Observers
	observers := dispatch.Observers{metrics.Observer{}}

	var (
		redisClient *redisclient.Client
		stats       *redisclient.StatsRecorder
		failures    health.FailureSource
	)
	if cfg.Redis.Enabled() {
		rc, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			log.Warn("Redis unavailable, dispatch stats disabled", "error", err)
		} else {
			redisClient = rc
			stats = redisclient.NewStatsRecorder(rc)
			observers = append(observers, stats)
			failures = stats
			log.Info("Redis dispatch stats enabled", "prefix", cfg.Redis.Prefix)
		}
	}
	observers = append(observers, opts.Observers...)

	// 2. Client
	c, err := client.New(cfg, dispatch.WithObserver(observers))
	if err != nil {
		if stats != nil {
			_ = stats.Close()
		}
		if redisClient != nil {
			_ = redisClient.Close()
		}
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	engine := c.Engine()

	// 3. Health, metrics and webhook endpoints
	healthMon := health.NewMonitor(engine.Limiter, engine.Provider.Monitor, failures)
	healthServer := health.NewServer(healthMon, cfg.Server.Port)
	healthServer.Handle(WebhookPath, webhook.NewHandler(webhook.Config{
		VerifyToken: cfg.WhatsApp.VerifyToken,
		AppSecret:   cfg.WhatsApp.AppSecret,
	}, opts.OnEvent))

	return &App{
		cfg:          cfg,
		client:       c,
		redisClient:  redisClient,
		stats:        stats,
		healthMon:    healthMon,
		healthServer: healthServer,
		gauges:       worker.NewGaugeUpdater(engine.Limiter, opts.GaugeInterval),
		log:          log,
	}, nil
}

// Client returns the dispatching client.
func (a *App) Client() *client.Client { return a.client }

// Health returns the health monitor.
func (a *App) Health() *health.Monitor { return a.healthMon }

// Handler returns the HTTP router serving health, metrics and the webhook.
func (a *App) Handler() http.Handler { return a.healthServer.Handler() }

// Start serves HTTP and starts background workers. It does not block.
func (a *App) Start(ctx context.Context) error {
	go func() {
		if err := a.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("Health server failed", "error", err)
		}
	}()
	a.log.Info("HTTP server started", "port", a.cfg.Server.Port, "webhook", WebhookPath)

	go a.gauges.Start(ctx)

	return nil
}

// Stop drains dispatch statistics and shuts the server down.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping app...")

	if a.stats != nil {
		if err := a.stats.Close(); err != nil {
			a.log.Warn("Failed to flush dispatch stats", "error", err)
		}
		if dropped := a.stats.Dropped(); dropped > 0 {
			a.log.Warn("Dispatch stats events dropped", "count", dropped)
		}
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Warn("Failed to close Redis", "error", err)
		}
	}

	if err := a.client.Close(); err != nil {
		a.log.Warn("Failed to close client", "error", err)
	}

	return a.healthServer.Stop(ctx)
}
