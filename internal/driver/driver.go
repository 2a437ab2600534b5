// Package driver implements the Driver Loop (C8): outer task selection,
// loop-mode arithmetic, inter-iteration delay, and translation of the
// pipeline's exit codes into a stop reason, per SPEC_FULL.md §4.10.
package driver

import (
	"context"
	"time"

	"ralph/internal/config"
	rerr "ralph/internal/errors"
	"ralph/internal/logging"
	"ralph/internal/pipeline"
	"ralph/internal/shutdown"
	"ralph/internal/task"
	"ralph/internal/telemetry"
	"ralph/internal/workspace"
)

var log = logging.For("driver")

// clock is a seam over time.Now so iteration timing stays out of the hot
// path's otherwise-deterministic control flow.
var clock = time.Now

// Mode selects the outer loop's iteration count.
type Mode int

const (
	ModeSingle Mode = iota
	ModeContinuous
	ModeCount
)

// StopReason explains why the driver loop ended.
type StopReason string

const (
	StopNone         StopReason = ""
	StopDone         StopReason = "done"
	StopHuman        StopReason = "human"
	StopDependencies StopReason = "dependencies"
	StopBlocked      StopReason = "blocked"
	StopCancelled    StopReason = "cancelled"
	StopFailure      StopReason = "failure"
)

// Options configures one driver invocation.
type Options struct {
	Settings       config.RuntimeSettings
	Mode           Mode
	Count          int
	ExplicitTaskID string
	ResetTask      bool
}

// Result summarizes the whole driver run.
type Result struct {
	Iterations int
	StopReason StopReason
	LastExit   rerr.ExitCode
	ProcessExit int
}

// Run drives iterations until the mode's budget is exhausted, no task
// remains, or shutdown is requested.
func Run(ctx context.Context, opts Options, flag *shutdown.Flag, collector *telemetry.Collector) Result {
	iterations := 0
	var lastExit rerr.ExitCode

	for {
		if flag.Tripped() {
			return Result{Iterations: iterations, StopReason: StopCancelled, LastExit: lastExit, ProcessExit: int(rerr.ExitCancelled)}
		}
		if opts.Mode == ModeCount && iterations >= opts.Count {
			return Result{Iterations: iterations, StopReason: StopDone, LastExit: lastExit}
		}

		taskID := opts.ExplicitTaskID
		allowNext := taskID == ""
		resetTask := opts.ResetTask && iterations == 0

		if taskID == "" {
			list, err := task.Load(opts.Settings.TasksPath)
			if err != nil {
				log.Error("failed to load task list", "error", err)
				return Result{Iterations: iterations, StopReason: StopFailure, LastExit: rerr.ExitGenericFailure, ProcessExit: 1}
			}
			next := list.FirstNonCompleted()
			if next == nil {
				return Result{Iterations: iterations, StopReason: StopDone, LastExit: rerr.ExitNoRunnableTask}
			}
			if next.Status() == task.StatusBlocked {
				log.Info("resuming a previously blocked task", "task_id", next.ID())
			}
			taskID = next.ID()
		}

		guard, err := workspace.Acquire(ctx, opts.Settings.Workspace, opts.Settings.BaseBranch, taskID)
		if err != nil {
			log.Error("failed to acquire workspace guard", "error", err)
			return Result{Iterations: iterations, StopReason: StopFailure, LastExit: rerr.ExitGenericFailure, ProcessExit: 1}
		}

		var elapsed time.Duration
		outcome := func() pipeline.Outcome {
			defer guard.Release(ctx)
			start := clock()
			defer func() { elapsed = clock().Sub(start) }()
			return pipeline.Run(ctx, pipeline.Config{
				TasksPath:      opts.Settings.TasksPath,
				PromptPath:     opts.Settings.PromptPath,
				Workspace:      opts.Settings.Workspace,
				ResetTask:      resetTask,
				ExplicitTaskID: taskID,
				AllowNext:      allowNext,
				BaseBranch:     opts.Settings.BaseBranch,
				ContextCompile: opts.Settings.ContextCompile,
			}, flag, collector)
		}()

		iterations++
		lastExit = outcome.ExitCode
		if collector != nil {
			collector.RecordPipelineRun(ctx, int(outcome.ExitCode), elapsed)
		}
		logging.PrintSummary(logging.RunSummary{
			TaskID: outcome.TaskID, ExitCode: int(outcome.ExitCode), Status: outcome.ExitCode.String(), Note: outcome.Message,
		})

		stop, reason, processExit := translate(outcome.ExitCode)
		if stop {
			if collector != nil {
				collector.RecordDriverIteration(ctx, string(reason))
			}
			return Result{Iterations: iterations, StopReason: reason, LastExit: lastExit, ProcessExit: processExit}
		}
		if collector != nil {
			collector.RecordDriverIteration(ctx, "continue")
		}

		if opts.Mode == ModeSingle {
			return Result{Iterations: iterations, StopReason: StopDone, LastExit: lastExit}
		}

		if sleepInterruptible(ctx, opts.Settings.LoopDelay, flag) {
			return Result{Iterations: iterations, StopReason: StopCancelled, LastExit: lastExit, ProcessExit: int(rerr.ExitCancelled)}
		}
	}
}

// translate maps a pipeline exit code to a driver stop decision, per the
// §4.10 table.
func translate(code rerr.ExitCode) (stop bool, reason StopReason, processExit int) {
	switch code {
	case rerr.ExitOK:
		return false, StopNone, 0
	case rerr.ExitNoRunnableTask:
		return true, StopDone, 0
	case rerr.ExitHumanRequired:
		return true, StopHuman, 0
	case rerr.ExitDependencyGate, rerr.ExitExplicitTaskMismatch:
		return true, StopDependencies, 0
	case rerr.ExitMissingResult, rerr.ExitAttemptLimit, rerr.ExitContextRequired:
		return true, StopBlocked, 0
	case rerr.ExitProgressNotDone:
		return false, StopNone, 0
	case rerr.ExitCancelled:
		return true, StopCancelled, int(rerr.ExitCancelled)
	default:
		if int(code) < 10 {
			return true, StopFailure, int(code)
		}
		return false, StopNone, 0
	}
}

func sleepInterruptible(ctx context.Context, d time.Duration, flag *shutdown.Flag) bool {
	deadline := time.Now().Add(d)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for time.Now().Before(deadline) {
		if flag.Tripped() {
			return true
		}
		select {
		case <-ctx.Done():
			return true
		case <-ticker.C:
		}
	}
	return false
}
