package utils

import "github.com/spf13/cobra"

// DefaultPersistentPreRun chains a subcommand's PersistentPreRun up to its
// parent, so root-level option parsing still runs for nested commands.
func DefaultPersistentPreRun(cmd *cobra.Command, args []string) {
	if parent := cmd.Parent(); parent != nil && parent.PersistentPreRun != nil {
		parent.PersistentPreRun(parent, args)
	}
}
