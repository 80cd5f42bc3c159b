package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"reclaim/internal/db"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL is required")
	}

	conn, err := db.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := db.RunMigrations(conn, cfg.Database.URL); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Schema up to date (%s).\n", cfg.Database.Driver)
	return nil
}
