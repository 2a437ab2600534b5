package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"ralph/internal/metadata"
	"ralph/internal/task"
)

func newValidatePRDCommand() *cobra.Command {
	var tasksPath string

	cmd := &cobra.Command{
		Use:   "validate-prd",
		Short: "Validate every task's required metadata, not just the first runnable one",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := task.Load(tasksPath)
			if err != nil {
				return err
			}
			var violations int
			for _, t := range list.Tasks() {
				if err := metadata.Validate(t); err != nil {
					violations++
					fmt.Fprintln(cmd.OutOrStdout(), err.Error())
				}
			}
			if violations > 0 {
				return fmt.Errorf("%d task(s) failed metadata validation", violations)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "all tasks valid")
			return nil
		},
	}

	cmd.Flags().StringVar(&tasksPath, "tasks", "tasks.json", "path to the task list")
	return cmd
}
