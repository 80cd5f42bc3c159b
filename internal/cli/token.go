package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	mw "reclaim/internal/middleware"
)

var (
	tokenSubject string
	tokenTTL     time.Duration
)

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "reclaimctl", "subject claim of the token")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print a service-role token for the job endpoints",
	Args:  cobra.NoArgs,
	RunE:  runToken,
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if tokenTTL <= 0 {
		return fmt.Errorf("ttl must be positive, got %s", tokenTTL)
	}

	token, err := mw.NewServiceToken([]byte(cfg.Auth.JWTSecret), tokenSubject, tokenTTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
