// Package cli implements rhctl, the operator tool for inspecting grants and
// pushing permission refreshes to running consoles.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rh-console/rh-console/internal/access"
)

// NewRootCommand assembles the rhctl command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "rhctl",
		Short:         "Inspect and refresh RH console permissions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newResolveCommand(),
		newNavCommand(),
		newFetchCommand(),
		newRefreshCommand(),
		newPurgeSessionsCommand(),
	)
	return root
}

// readGrant loads a grant document from path, or stdin when path is "-".
func readGrant(cmd *cobra.Command, path string) (*access.Grant, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read grant: %w", err)
	}
	return access.ParseGrant(data)
}
