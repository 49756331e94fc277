package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lantern-ai/lantern/db"
	"github.com/lantern-ai/lantern/internal/config"
	"github.com/lantern-ai/lantern/internal/log"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	RunE: func(*cobra.Command, []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return db.Migrate(cfg.PostgresURL(), log.New(log.Config{}))
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
