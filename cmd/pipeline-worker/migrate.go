package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codeready-toolchain/eligibility/pkg/observability"
	"github.com/codeready-toolchain/eligibility/pkg/storage/postgres"
)

// newMigrateCmd runs pkg/storage/postgres's embedded schema migrations and
// exits. postgres.NewClient already runs them on every startup, so this
// subcommand exists for operators who want migration as an explicit,
// separate deploy step (SPEC_FULL.md §11: "migrate for pkg/storage/postgres/migrations").
func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database schema migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			observability.ConfigureLogging(observability.LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			})
			loadEnvFile(configDir)

			dbCfg, err := postgres.LoadConfigFromEnv()
			if err != nil {
				return fmt.Errorf("load database configuration: %w", err)
			}
			client, err := postgres.NewClient(cmd.Context(), dbCfg)
			if err != nil {
				return fmt.Errorf("apply migrations: %w", err)
			}
			defer client.Close()

			fmt.Println("migrations applied")
			return nil
		},
	}
}
