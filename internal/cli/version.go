package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soyeahso/orchestrator/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of orchestrator",
		Args:  cobra.NoArgs,
		// No config or .env needed to print the version.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Info())
		},
	}
}
