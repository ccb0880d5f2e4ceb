package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rh-console/rh-console/jobs"
)

func newPurgeSessionsCommand() *cobra.Command {
	var (
		addr  string
		grace time.Duration
	)
	cmd := &cobra.Command{
		Use:   "purge-sessions",
		Short: "Enqueue an immediate purge of expired session records",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := jobs.RedisOpt(addr)
			if err != nil {
				return err
			}
			client := jobs.NewClient(opts)
			defer func() { _ = client.Close() }()

			info, err := client.EnqueuePurgeSessions(cmd.Context(), jobs.PurgeSessionsPayload{Grace: grace})
			if err != nil {
				return fmt.Errorf("enqueue purge: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s on %s\n", info.ID, info.Queue)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "redis", "127.0.0.1:6379", "redis address or URL")
	cmd.Flags().DurationVar(&grace, "grace", 24*time.Hour, "keep records this long after expiry")
	return cmd
}
