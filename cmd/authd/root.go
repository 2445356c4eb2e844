package main

import (
	"github.com/spf13/cobra"
)

// configFile is shared by every subcommand.
var configFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authd",
		Short: "Credential service reference server",
		Long: `authd exposes the authkit credential lifecycle over HTTP:
registration, login, refresh-token exchange, and revocation, with
PostgreSQL persistence and optional Redis-backed refresh tokens.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "JSON config file path")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMigrateCmd())

	return cmd
}
