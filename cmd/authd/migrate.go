package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/authkit-go/authkit/store/pgstore"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadServerConfig(configFile)
			if err != nil {
				return err
			}
			if cfg.DatabaseDSN == "" {
				return fmt.Errorf("database_dsn is required")
			}

			cmd.Println("running migrations...")
			if err := pgstore.Migrate(cmd.Context(), cfg.DatabaseDSN); err != nil {
				return err
			}
			cmd.Println("migrations completed")
			return nil
		},
	}
}
