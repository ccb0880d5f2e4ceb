package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rh-console/rh-console/internal/nav"
)

func newNavCommand() *cobra.Command {
	var grantPath, format string
	cmd := &cobra.Command{
		Use:   "nav",
		Short: "Print the navigation a grant would see",
		RunE: func(cmd *cobra.Command, args []string) error {
			grant, err := readGrant(cmd, grantPath)
			if err != nil {
				return err
			}
			catalog, err := nav.DefaultCatalog()
			if err != nil {
				return err
			}
			sections := nav.NewGate(catalog, nil).Navigation(grant)
			if sections == nil {
				sections = []nav.Section{}
			}

			out := cmd.OutOrStdout()
			switch format {
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(sections)
			case "yaml":
				enc := yaml.NewEncoder(out)
				defer enc.Close()
				return enc.Encode(map[string]any{"sections": sections})
			case "text":
				for _, s := range sections {
					fmt.Fprintln(out, s.Title)
					for _, item := range s.Items {
						fmt.Fprintf(out, "  %-20s %s\n", item.Resource, item.Path)
					}
				}
				return nil
			default:
				return fmt.Errorf("unknown format %q", format)
			}
		},
	}
	cmd.Flags().StringVar(&grantPath, "grant", "-", "grant JSON file, - for stdin")
	cmd.Flags().StringVar(&format, "format", "text", "output format: text, json or yaml")
	return cmd
}
