package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/vietddude/wacloud/internal/client"
	"github.com/vietddude/wacloud/internal/core/config"
	"github.com/vietddude/wacloud/internal/infra/rpc"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found")
	}

	cfg := config.FromEnv()
	if cfg.WhatsApp.AccessToken == "" {
		log.Fatalf("WHATSAPP_TOKEN is not set")
	}
	if cfg.WhatsApp.PhoneNumberID == "" {
		log.Fatalf("WHATSAPP_PHONE_NUMBER_ID is not set")
	}
	to := os.Getenv("WHATSAPP_TEST_RECIPIENT")
	if to == "" {
		log.Fatalf("WHATSAPP_TEST_RECIPIENT is not set")
	}

	// 1. A small window makes admission waits visible
	cfg.Dispatch.MaxRequestsPerMinute = 3

	// 2. Create client
	c, err := client.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	fmt.Println("=== Sending 5 messages through a 3/min window ===")

	// 3. Concurrent sends share one limiter
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			start := time.Now()
			resp, err := c.SendText(ctx, to, fmt.Sprintf("wacloud example message %d", i+1), false)
			if err != nil {
				var de *rpc.Error
				if errors.As(err, &de) && de.Solution() != "" {
					log.Printf("Message %d failed: %v\n  hint: %s", i+1, err, de.Solution())
					return
				}
				log.Printf("Message %d failed: %v", i+1, err)
				return
			}
			fmt.Printf("Message %d: %s (waited %v)\n", i+1, resp.MessageID(), time.Since(start).Round(time.Second))
		}(i)
	}
	wg.Wait()

	fmt.Println()

	// 4. Window and transport stats
	stats := c.Engine().Limiter.Stats()
	fmt.Println("=== Rate window ===")
	fmt.Printf("  In window: %d / %d (%.1f%%)\n", stats.InWindow, stats.Capacity, stats.UsagePercentage())
	fmt.Printf("  Admitted: %d, delayed: %d\n", stats.Admitted, stats.Delayed)

	mon := c.Engine().Provider.Monitor.GetStats()
	fmt.Println("=== Transport ===")
	fmt.Printf("  Status: %s\n", mon.Status)
	fmt.Printf("  Requests: %d, failures: %d, throttled: %d\n", mon.Requests, mon.Failures, mon.ThrottleCount)
	fmt.Printf("  Average latency: %v\n", mon.AverageLatency)
}
