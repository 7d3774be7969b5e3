package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	redisclient "github.com/vietddude/wacloud/internal/infra/redis"
)

var statsFailures int64

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show shared dispatch statistics recorded in Redis",
	Run:   runStats,
}

func init() {
	statsCmd.Flags().Int64Var(&statsFailures, "failures", 10, "number of recent failures to list")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	if !cfg.Redis.Enabled() {
		slog.Error("Redis is not configured; set redis.url")
		os.Exit(1)
	}

	rc, err := redisclient.NewClient(cfg.Redis)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	stats := redisclient.NewStatsRecorder(rc)
	defer func() {
		_ = stats.Close()
		_ = rc.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	totals, err := stats.Totals(ctx)
	if err != nil {
		slog.Error("Failed to read totals", "error", err)
		os.Exit(1)
	}
	now := time.Now()
	minute, err := stats.Minute(ctx, now)
	if err != nil {
		slog.Error("Failed to read current minute", "error", err)
		os.Exit(1)
	}
	failures, err := stats.RecentFailures(ctx, statsFailures)
	if err != nil {
		slog.Error("Failed to read recent failures", "error", err)
		os.Exit(1)
	}

	fmt.Println(renderCounters("Totals", totals))
	fmt.Println(renderCounters("Minute "+now.UTC().Format("15:04"), minute))
	fmt.Println(renderFailures(failures))
}
