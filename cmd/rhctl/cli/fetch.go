package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"

	"github.com/rh-console/rh-console/internal/access"
	"github.com/rh-console/rh-console/internal/identity"
)

func newFetchCommand() *cobra.Command {
	var dsn, principal string
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Read a principal's stored grant from postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			if principal == "" {
				return fmt.Errorf("--principal is required")
			}
			ctx := cmd.Context()
			conn, err := pgx.Connect(ctx, dsn)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer func() { _ = conn.Close(ctx) }()

			grant, err := access.NewPGFetcher(conn).Fetch(ctx, identity.Principal{ID: principal})
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(grant)
		},
	}
	cmd.Flags().StringVar(&dsn, "dsn", os.Getenv("PG_DSN"), "postgres DSN (default $PG_DSN)")
	cmd.Flags().StringVar(&principal, "principal", "", "principal ID")
	return cmd
}
