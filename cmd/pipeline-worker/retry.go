package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codeready-toolchain/eligibility/pkg/observability"
	"github.com/codeready-toolchain/eligibility/pkg/storage/postgres"
)

// newRetryCmd re-submits a protocol stuck in extraction_failed or
// grounding_failed (domain.ProtocolStatus.CanRetry, spec.md §4.2) for
// processing, without standing up the full server.
func newRetryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retry PROTOCOL_ID",
		Short: "Re-submit a failed protocol for processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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
				return fmt.Errorf("connect to database: %w", err)
			}
			defer client.Close()

			protocols := postgres.NewProtocolRepo(client.Pool)
			outboxRepo := postgres.NewOutboxRepo(client.Pool)
			retrySvc := postgres.NewRetryService(protocols, outboxRepo)

			p, err := retrySvc.Retry(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("protocol %s re-queued, status=%s\n", p.ID, p.Status)
			return nil
		},
	}
	return cmd
}
