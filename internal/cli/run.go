package cli

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"reclaim/internal/app"
	"reclaim/internal/services"
)

func init() {
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run <job>",
	Short: "Run one job now and print its summary",
	Long: "Run one job now and print its JSON summary. Jobs: " + strings.Join([]string{
		services.JobDailyReset,
		services.JobCalculateStreaks,
		services.JobGenerateInsights,
		services.JobDispatchNotifications,
	}, ", "),
	Args: cobra.ExactArgs(1),
	RunE: runJob,
}

func runJob(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := newLogger(cfg)
	defer logger.Sync()

	a, cleanup, err := app.Bootstrap(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.Jobs.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Jobs.JobTimeout)
		defer cancel()
	}

	report, err := a.Runner.Run(services.WithTrigger(ctx, "reclaimctl"), args[0])
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
