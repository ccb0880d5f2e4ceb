package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rh-console/rh-console/internal/identity"
	"github.com/rh-console/rh-console/internal/platform/cache"
)

func newRefreshCommand() *cobra.Command {
	var addr, channel, principal string
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Ask every running console to re-fetch a principal's grant",
		Long: `Refresh publishes a refresh request on the identity relay channel. Every
console process re-fetches the grant for each session the principal holds,
without signing anyone out.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if principal == "" {
				return fmt.Errorf("--principal is required")
			}
			client, err := cache.New(cmd.Context(), addr)
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			relay := identity.NewRedisRelay(client, nil, nil).WithChannel(channel)
			if err := relay.BroadcastRefresh(cmd.Context(), principal); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "refresh requested for %s\n", principal)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "redis", "127.0.0.1:6379", "redis address or URL")
	cmd.Flags().StringVar(&channel, "channel", identity.DefaultChannel, "relay channel")
	cmd.Flags().StringVar(&principal, "principal", "", "principal ID")
	return cmd
}
