package main

import (
	"trinity/internal/config"
	"trinity/internal/infra"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "trinityctl",
		Short: "Operator tooling for the Trinity invoice service",
		Long: `trinityctl manages the Trinity invoice service database.

Connection settings come from the same environment variables (or .env file)
as the server, DATABASE_URL in particular.`,
		SilenceUsage: true,
	}
	root.AddCommand(newMigrateCmd(), newUserCmd(), newProductCmd(), newHashPasswordCmd())
	return root
}

// openDB loads config and connects; commands that touch the database call it
// lazily so hash-password works offline.
func openDB() (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}
