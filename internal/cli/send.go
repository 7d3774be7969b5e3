package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/wacloud/internal/client"
	"github.com/vietddude/wacloud/internal/core/domain"
	"github.com/vietddude/wacloud/internal/infra/rpc/dispatch"
	"github.com/vietddude/wacloud/internal/metrics"
)

var (
	sendTo       string
	sendText     string
	sendTemplate string
	sendLang     string
	sendTimeout  time.Duration
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a text or template message",
	Example: `  wacloud send --to 15550001 --text "hello"
  wacloud send --to 15550001 --template hello_world --lang en_US`,
	Run: runSend,
}

func init() {
	sendCmd.Flags().StringVar(&sendTo, "to", "", "recipient phone number (required)")
	sendCmd.Flags().StringVar(&sendText, "text", "", "text body")
	sendCmd.Flags().StringVar(&sendTemplate, "template", "", "approved template name")
	sendCmd.Flags().StringVar(&sendLang, "lang", "en_US", "template language code")
	sendCmd.Flags().DurationVar(&sendTimeout, "timeout", 2*time.Minute, "overall deadline including rate-limit waits")
	_ = sendCmd.MarkFlagRequired("to")
	sendCmd.MarkFlagsMutuallyExclusive("text", "template")
	sendCmd.MarkFlagsOneRequired("text", "template")
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	c, err := client.New(cfg, dispatch.WithObserver(metrics.Observer{}))
	if err != nil {
		slog.Error("Failed to create client", "error", err)
		os.Exit(1)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	var resp *domain.SendMessageResponse
	if sendTemplate != "" {
		resp, err = c.SendTemplate(ctx, sendTo, sendTemplate, sendLang, nil)
	} else {
		resp, err = c.SendText(ctx, sendTo, sendText, false)
	}
	if err != nil {
		reportSendError(err)
		os.Exit(1)
	}

	fmt.Println(resp.MessageID())
}

func reportSendError(err error) {
	var de *dispatch.Error
	if !errors.As(err, &de) {
		slog.Error("Send failed", "error", err)
		return
	}

	attrs := []any{
		"kind", de.Kind.String(),
		"attempts", de.Attempts,
		"elapsed", de.Elapsed,
		"request_id", de.RequestID,
	}
	if de.StatusCode > 0 {
		attrs = append(attrs, "status", de.StatusCode)
	}
	if de.RetryAfter > 0 {
		attrs = append(attrs, "retry_after", de.RetryAfter)
	}
	if hint := de.Solution(); hint != "" {
		attrs = append(attrs, "solution", hint)
	}
	attrs = append(attrs, "error", de.Err)
	slog.Error("Send failed", attrs...)
}
