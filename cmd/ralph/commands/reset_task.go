package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"ralph/internal/config"
	"ralph/internal/driver"
	rerr "ralph/internal/errors"
	"ralph/internal/shutdown"
)

func newResetTaskCommand() *cobra.Command {
	var (
		taskID     string
		tasksPath  string
		promptPath string
		workspace  string
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   "reset-task",
		Short: "Reset a task's attempt counter, then run it once",
		RunE: func(cmd *cobra.Command, args []string) error {
			if taskID == "" {
				return fmt.Errorf("--task-id is required")
			}
			if dryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "would reset attempts and run task %s\n", taskID)
				return nil
			}

			settings, err := config.Load(config.Options{Workspace: workspace, TasksPath: tasksPath, PromptPath: promptPath})
			if err != nil {
				return err
			}

			flag, stop := shutdown.NewFlag()
			defer stop()

			result := driver.Run(cmd.Context(), driver.Options{
				Settings:       settings,
				Mode:           driver.ModeSingle,
				ExplicitTaskID: taskID,
				ResetTask:      true,
			}, flag, nil)

			fmt.Fprintf(cmd.OutOrStdout(), "stopped: %s (last_exit=%d)\n", result.StopReason, result.LastExit)
			if result.ProcessExit != 0 {
				return &rerr.ExitError{
					Code:    result.ProcessExit,
					Message: fmt.Sprintf("stopped: %s (exit %d)", result.StopReason, result.ProcessExit),
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&taskID, "task-id", "", "task to reset and run")
	cmd.Flags().StringVar(&tasksPath, "tasks", "tasks.json", "path to the task list")
	cmd.Flags().StringVar(&promptPath, "prompt", "prompt.md", "path to the base prompt file")
	cmd.Flags().StringVar(&workspace, "workspace", ".", "workspace directory")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print what would happen without invoking codex")
	return cmd
}
