package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rh-console/rh-console/internal/access"
)

type resolveOptions struct {
	grantPath string
	format    string
}

type resolvedRow struct {
	Resource access.Resource   `json:"resource"`
	access.Capability
}

func newResolveCommand() *cobra.Command {
	opts := resolveOptions{}
	cmd := &cobra.Command{
		Use:   "resolve [resource...]",
		Short: "Resolve the capability a grant gives on each resource",
		Long: `Resolve evaluates a grant document offline with the same rules the console
applies. Without arguments every resource of the console is listed.

Examples:
  rhctl resolve --grant grant.json
  rhctl resolve --grant - usuarios metas < grant.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			grant, err := readGrant(cmd, opts.grantPath)
			if err != nil {
				return err
			}
			resources := access.Resources()
			if len(args) > 0 {
				resources = resources[:0]
				for _, key := range args {
					r, ok := access.ParseResource(key)
					if !ok {
						return fmt.Errorf("unknown resource %q", key)
					}
					resources = append(resources, r)
				}
			}
			rows := make([]resolvedRow, 0, len(resources))
			for _, r := range resources {
				rows = append(rows, resolvedRow{Resource: r, Capability: access.Resolve(grant, r)})
			}
			return writeRows(cmd, opts.format, rows)
		},
	}
	cmd.Flags().StringVar(&opts.grantPath, "grant", "-", "grant JSON file, - for stdin")
	cmd.Flags().StringVar(&opts.format, "format", "text", "output format: text or json")
	return cmd
}

func writeRows(cmd *cobra.Command, format string, rows []resolvedRow) error {
	out := cmd.OutOrStdout()
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case "text":
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RESOURCE\tVER\tEDITAR\tEXCLUIR")
		for _, row := range rows {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", row.Resource, mark(row.Ver), mark(row.Editar), mark(row.Excluir))
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func mark(b bool) string {
	if b {
		return "yes"
	}
	return "-"
}
