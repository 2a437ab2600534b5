// Package commands wires the spf13/cobra command tree described in
// SPEC_FULL.md §4.15.
package commands

import (
	"github.com/spf13/cobra"
)

// Root returns the top-level `ralph` command.
func Root() *cobra.Command {
	root := &cobra.Command{
		Use:   "ralph",
		Short: "Autonomous task-driver: selects, runs, and verifies one task at a time",
	}
	root.AddCommand(newRunCommand())
	root.AddCommand(newStatusCommand())
	root.AddCommand(newResetTaskCommand())
	root.AddCommand(newValidatePRDCommand())
	return root
}
