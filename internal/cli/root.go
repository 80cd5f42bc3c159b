// Package cli implements reclaimctl, the operator command line for the job pipeline.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"reclaim/internal/config"
	"reclaim/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "reclaimctl",
	Short: "Operate the Reclaim background jobs",
	Long: `reclaimctl runs the daily jobs by hand, applies the database schema
and mints service tokens for the job endpoints.

Configuration is read from the environment and an optional .env file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *zap.Logger {
	return logging.New(cfg.Logging)
}
