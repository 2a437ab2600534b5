package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ralph/internal/config"
	"ralph/internal/driver"
	rerr "ralph/internal/errors"
	"ralph/internal/shutdown"
	"ralph/internal/telemetry"
)

func newRunCommand() *cobra.Command {
	var (
		taskID         string
		next           bool
		mode           string
		count          int
		resetTask      bool
		tasksPath      string
		promptPath     string
		workspace      string
		baseBranch     string
		loopDelay      time.Duration
		tokenBudget    uint64
		telemetryAddr  string
		contextCompile bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drive the task loop: select, run, verify, and advance one or more tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			var contextEnabled *bool
			if cmd.Flags().Changed("context-compile") {
				v := contextCompile
				contextEnabled = &v
			}
			settings, err := config.Load(config.Options{
				Workspace:      workspace,
				TasksPath:      tasksPath,
				PromptPath:     promptPath,
				BaseBranch:     baseBranch,
				LoopDelay:      loopDelay,
				TokenBudget:    tokenBudget,
				TelemetryAddr:  telemetryAddr,
				ContextEnabled: contextEnabled,
			})
			if err != nil {
				return err
			}

			driverMode, iterCount, err := resolveMode(mode, count)
			if err != nil {
				return err
			}

			collector, err := telemetry.New(telemetry.Config{
				Enabled:        settings.Telemetry.Enabled,
				PrometheusPort: settings.Telemetry.PrometheusPort,
			})
			if err != nil {
				return err
			}
			defer collector.Shutdown(context.Background())

			flag, stop := shutdown.NewFlag()
			defer stop()

			result := driver.Run(cmd.Context(), driver.Options{
				Settings:       settings,
				Mode:           driverMode,
				Count:          iterCount,
				ExplicitTaskID: taskID,
				ResetTask:      resetTask,
			}, flag, collector)

			fmt.Fprintf(cmd.OutOrStdout(), "stopped: %s (iterations=%d, last_exit=%d)\n",
				result.StopReason, result.Iterations, result.LastExit)
			if result.ProcessExit != 0 {
				return &rerr.ExitError{
					Code:    result.ProcessExit,
					Message: fmt.Sprintf("stopped: %s (exit %d)", result.StopReason, result.ProcessExit),
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&taskID, "task-id", "", "run exactly this task id")
	cmd.Flags().BoolVar(&next, "next", false, "select the next runnable task automatically")
	cmd.Flags().StringVar(&mode, "mode", "single", "single|continuous|count")
	cmd.Flags().IntVar(&count, "count", 1, "iteration count when --mode=count")
	cmd.Flags().BoolVar(&resetTask, "reset-task", false, "reset the task's attempt counter before running")
	cmd.Flags().StringVar(&tasksPath, "tasks", "tasks.json", "path to the task list")
	cmd.Flags().StringVar(&promptPath, "prompt", "prompt.md", "path to the base prompt file")
	cmd.Flags().StringVar(&workspace, "workspace", ".", "workspace directory")
	cmd.Flags().StringVar(&baseBranch, "base-branch", "", "base branch (defaults to $BASE_BRANCH or main)")
	cmd.Flags().DurationVar(&loopDelay, "loop-delay", 0, "delay between iterations (defaults to $RALPH_LOOP_DELAY_SECONDS or 5s)")
	cmd.Flags().Uint64Var(&tokenBudget, "context-token-budget", 0, "context-compile token budget override")
	cmd.Flags().StringVar(&telemetryAddr, "telemetry-addr", "", "host:port whose port serves Prometheus metrics (the host part is ignored; the listener binds all interfaces)")
	cmd.Flags().BoolVar(&contextCompile, "context-compile", false, "enable the optional assembly context-pack build stage")

	return cmd
}

func resolveMode(mode string, count int) (driver.Mode, int, error) {
	switch mode {
	case "single", "":
		return driver.ModeSingle, 0, nil
	case "continuous":
		return driver.ModeContinuous, 0, nil
	case "count":
		if count <= 0 {
			return driver.ModeContinuous, 0, nil
		}
		return driver.ModeCount, count, nil
	default:
		return driver.ModeSingle, 0, fmt.Errorf("unknown --mode %q", mode)
	}
}
