// Package cli wires the taskgate commands.
package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCmd builds the taskgate command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "taskgate",
		Short: "taskgate - declarative AI task gateway",
		Long: "taskgate serves declarative AI task definitions over HTTP, resolving " +
			"provider credentials, caching responses, and persisting captured data.",
		SilenceUsage: true,
	}
	root.AddCommand(NewServeCmd())
	root.AddCommand(NewMigrateCmd())
	return root
}
