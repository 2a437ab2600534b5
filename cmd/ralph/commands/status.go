package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"ralph/internal/task"
)

func newStatusCommand() *cobra.Command {
	var taskID, tasksPath string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print task status without touching the workspace or invoking any agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := task.Load(tasksPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if taskID != "" {
				t := list.ByID(taskID)
				if t == nil {
					return fmt.Errorf("task %s not found", taskID)
				}
				printTaskDetail(out, t)
				return nil
			}
			fmt.Fprintf(out, "%-20s %-12s %-6s %s\n", "TASK_ID", "STATUS", "ATTEMPTS", "TITLE")
			for _, t := range list.Tasks() {
				fmt.Fprintf(out, "%-20s %-12s %-6d %s\n", t.ID(), t.Status(), t.RunAttempts(), t.Title())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&taskID, "task-id", "", "show detail for a single task")
	cmd.Flags().StringVar(&tasksPath, "tasks", "tasks.json", "path to the task list")
	return cmd
}

func printTaskDetail(out interface{ Write([]byte) (int, error) }, t *task.Task) {
	fmt.Fprintf(out, "task_id: %s\n", t.ID())
	fmt.Fprintf(out, "title: %s\n", t.Title())
	fmt.Fprintf(out, "model: %s\n", t.Model())
	fmt.Fprintf(out, "status: %s\n", t.Status())
	obs := t.Observability()
	fmt.Fprintf(out, "run_attempts: %d\n", obs.RunAttempts)
	fmt.Fprintf(out, "last_run_id: %s\n", obs.LastRunID)
	fmt.Fprintf(out, "last_update_utc: %s\n", obs.LastUpdateUTC)
	fmt.Fprintf(out, "last_note: %s\n", obs.LastNote)
}
