package cli

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/wacloud/internal/control"
	"github.com/vietddude/wacloud/internal/core/config"
	"github.com/vietddude/wacloud/internal/core/domain"
)

var (
	cfgPath string
	isDebug bool
)

var rootCmd = &cobra.Command{
	Use:   "wacloud",
	Short: "WhatsApp Cloud API dispatch service",
	Long: `wacloud sends WhatsApp Cloud API requests through a shared sliding-window
rate limiter with retries, and serves health, metrics and webhook endpoints.`,
	Run: runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve health, metrics and webhook endpoints",
	Run:   runServe,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file; WHATSAPP_* env vars are used when it does not exist")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
	rootCmd.AddCommand(serveCmd)
}

// loadConfig loads .env, then the config file, falling back to the
// environment when the file is absent, and installs the logger.
func loadConfig() *config.AppConfig {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if errors.Is(err, fs.ErrNotExist) {
		cfg, err = config.FromEnv(), nil
	}
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup logging
	slogLevel := slog.LevelInfo
	if isDebug || cfg.Logging.Level == "debug" {
		slogLevel = slog.LevelDebug
	}

	stylelog.InitDefault(&tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})
	slog.Debug("Logger initialized", "level", slogLevel.String())

	return cfg
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	app, err := control.NewApp(cfg, control.Options{OnEvent: logEvent})
	if err != nil {
		slog.Error("Failed to initialize app", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := app.Start(ctx); err != nil {
		slog.Error("Failed to start app", "error", err)
		os.Exit(1)
	}

	slog.Info("wacloud started",
		"phone_number_id", cfg.WhatsApp.PhoneNumberID,
		"max_requests_per_minute", cfg.Dispatch.MaxRequestsPerMinute,
	)

	sig := <-sigChan
	slog.Info("Received signal, shutting down...", "signal", sig)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := app.Stop(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
		os.Exit(1)
	}
}

func logEvent(ctx context.Context, event *domain.WebhookEvent) error {
	for _, m := range event.Messages() {
		slog.Info("Inbound message", "from", m.From, "id", m.ID, "type", m.Type)
	}
	for _, s := range event.Statuses() {
		slog.Info("Message status", "id", s.ID, "status", s.Status, "recipient", s.RecipientID)
	}
	return nil
}
