package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/wacloud/internal/client"
)

var (
	templatesStatus string
	templatesLimit  int
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List the message templates of the business account",
	Run:   runTemplates,
}

func init() {
	templatesCmd.Flags().StringVar(&templatesStatus, "status", "", "filter by status (APPROVED, PENDING, REJECTED)")
	templatesCmd.Flags().IntVar(&templatesLimit, "limit", 50, "page size")
	rootCmd.AddCommand(templatesCmd)
}

func runTemplates(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	c, err := client.New(cfg)
	if err != nil {
		slog.Error("Failed to create client", "error", err)
		os.Exit(1)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	list, err := c.GetTemplates(ctx, client.TemplateQuery{Status: templatesStatus, Limit: templatesLimit})
	if err != nil {
		reportSendError(err)
		os.Exit(1)
	}

	fmt.Println(renderTemplates(list))
}
