// Package pipeline implements the Task Pipeline (C7): the single-task
// orchestration of admission, context compile, agent invocation, result
// parsing, verification, and durable status recording described in
// SPEC_FULL.md §4.7, grounded on the admission/attempt/retry sequencing of
// the original run_task_agent.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"ralph/internal/agent"
	aspkg "ralph/internal/assembly"
	"ralph/internal/config"
	rerr "ralph/internal/errors"
	"ralph/internal/gitutil"
	"ralph/internal/logging"
	"ralph/internal/metadata"
	"ralph/internal/ratelimit"
	"ralph/internal/runpaths"
	"ralph/internal/schema"
	"ralph/internal/shutdown"
	"ralph/internal/task"
	"ralph/internal/telemetry"
	"ralph/internal/tokencount"
	"ralph/internal/verify"
	"ralph/internal/workspace"
)

var log = logging.For("pipeline")

const maxRunAttempts = 3

var supportedModels = map[string]bool{
	"gpt-5.1-codex-mini": true,
	"gpt-5.1-codex":       true,
	"gpt-5.2-codex":       true,
}

// Config mirrors the original TaskAgentConfig.
type Config struct {
	TasksPath      string
	PromptPath     string
	Workspace      string
	ResetTask      bool
	ExplicitTaskID string
	AllowNext      bool
	BaseBranch     string
	ContextCompile config.ContextCompileConfig
}

// Outcome is what the pipeline reports back to the driver.
type Outcome struct {
	ExitCode rerr.ExitCode
	TaskID   string
	Message  string
}

// Run executes one pipeline iteration against cfg. collector may be nil.
func Run(ctx context.Context, cfg Config, flag *shutdown.Flag, collector *telemetry.Collector) Outcome {
	if _, err := exec.LookPath("codex"); err != nil {
		return Outcome{ExitCode: rerr.ExitGenericFailure, Message: "codex not found on PATH"}
	}

	list, err := task.Load(cfg.TasksPath)
	if err != nil {
		log.Error("failed to load task list", "error", err)
		return Outcome{ExitCode: rerr.ExitGenericFailure, Message: err.Error()}
	}

	first := list.FirstNonCompleted()
	if first == nil {
		return Outcome{ExitCode: rerr.ExitNoRunnableTask, Message: "no runnable task"}
	}
	if first.Model() == "human" {
		return Outcome{ExitCode: rerr.ExitHumanRequired, TaskID: first.ID(), Message: "task requires a human"}
	}

	var tsk *task.Task
	if cfg.ExplicitTaskID != "" {
		tsk = list.ByID(cfg.ExplicitTaskID)
		if tsk == nil {
			return Outcome{ExitCode: rerr.ExitContractViolation, Message: "explicit task id not found"}
		}
		if first.ID() != tsk.ID() {
			return Outcome{ExitCode: rerr.ExitExplicitTaskMismatch, TaskID: tsk.ID(),
				Message: fmt.Sprintf("requested task %s is not the first runnable task %s", tsk.ID(), first.ID())}
		}
	} else {
		if !cfg.AllowNext {
			return Outcome{ExitCode: rerr.ExitContractViolation, Message: "no task id and --next not given"}
		}
		tsk = first
	}

	if err := metadata.Validate(tsk); err != nil {
		return Outcome{ExitCode: rerr.ExitContractViolation, TaskID: tsk.ID(), Message: err.Error()}
	}

	if !supportedModels[tsk.Model()] {
		return Outcome{ExitCode: rerr.ExitContractViolation, TaskID: tsk.ID(), Message: "unsupported model: " + tsk.Model()}
	}

	taskID := tsk.ID()
	runID := newRunID()

	if cfg.ResetTask {
		if err := task.ResetAttempts(cfg.TasksPath, taskID, runID, "attempts reset"); err != nil {
			return Outcome{ExitCode: rerr.ExitGenericFailure, TaskID: taskID, Message: err.Error()}
		}
	}

	attempts, err := task.CountAttempts(cfg.TasksPath, taskID)
	if err != nil {
		return Outcome{ExitCode: rerr.ExitGenericFailure, TaskID: taskID, Message: err.Error()}
	}
	if attempts >= maxRunAttempts {
		return blockAndCommit(ctx, cfg, taskID, runID, "attempt limit reached", rerr.ExitAttemptLimit)
	}

	paths := runpaths.New(cfg.Workspace, taskID, runID)
	if err := os.MkdirAll(paths.PackDirAbs, 0o755); err != nil {
		return Outcome{ExitCode: rerr.ExitGenericFailure, TaskID: taskID, Message: err.Error()}
	}

	taskSnapshot := taskSnapshotBytes(tsk)
	_ = os.WriteFile(paths.TaskSnapshotPath, taskSnapshot, 0o644)

	if err := writeAssemblyTask(paths.AssemblyTaskPath, tsk); err != nil {
		return Outcome{ExitCode: rerr.ExitGenericFailure, TaskID: taskID, Message: err.Error()}
	}

	if tsk.Status() == task.StatusUnstarted || tsk.Status() == task.StatusBlocked {
		if err := task.SetStatus(cfg.TasksPath, taskID, task.StatusStarted, runID,
			fmt.Sprintf("run %s started (attempt %d)", runID, attempts+1)); err != nil {
			return Outcome{ExitCode: rerr.ExitGenericFailure, TaskID: taskID, Message: err.Error()}
		}
		commit(ctx, cfg.Workspace, workspace.CommitSubject(tsk.Title(), taskID))
	}

	if flag.Tripped() {
		return interrupted(cfg, taskID, runID)
	}

	if cfg.ContextCompile.Enabled {
		if outcome, stop := runContextCompile(ctx, cfg, paths, taskID, runID, flag); stop {
			return outcome
		}
	}

	if err := schema.Ensure(runpaths.SchemaPath(cfg.Workspace)); err != nil {
		return Outcome{ExitCode: rerr.ExitGenericFailure, TaskID: taskID, Message: err.Error()}
	}

	if err := buildPrompt(paths.PromptPath, cfg.PromptPath, tsk, taskSnapshot); err != nil {
		return Outcome{ExitCode: rerr.ExitGenericFailure, TaskID: taskID, Message: err.Error()}
	}
	if promptBytes, err := os.ReadFile(paths.PromptPath); err == nil {
		log.Debug("prompt token estimate", "precise", tokencount.Estimate(string(promptBytes)))
	}

	tpm, rpm := ratelimit.Settings(tsk.Model())
	estimated := ratelimit.EstimatePromptTokens(paths.PromptPath)
	ledgerPath := runpaths.RateLimitPath(cfg.Workspace)

	if stop := sleepForRateLimit(ctx, ledgerPath, tsk.Model(), tpm, rpm, estimated, flag, collector); stop {
		return interrupted(cfg, taskID, runID)
	}

	succeeded := false
	for attempt := 1; attempt <= maxRunAttempts; attempt++ {
		if flag.Tripped() {
			return interrupted(cfg, taskID, runID)
		}
		exitCode, _ := agent.RunCodex(ctx, agent.CodexConfig{
			Workspace:  cfg.Workspace,
			Model:      tsk.Model(),
			SchemaPath: runpaths.SchemaPath(cfg.Workspace),
			ResultPath: paths.ResultPathAbs,
			PromptPath: paths.PromptPath,
			LogPath:    paths.CodexLogAbs,
		}, flag)
		if exitCode == int(rerr.ExitCancelled) {
			return interrupted(cfg, taskID, runID)
		}

		if schema.NonEmptyFile(paths.ResultPathAbs) {
			succeeded = true
			break
		}

		logBytes, _ := os.ReadFile(paths.CodexLogAbs)
		if delay, ok := agent.RateLimitRetryDelay(string(logBytes)); ok && attempt < maxRunAttempts {
			sleepInterruptible(ctx, time.Duration(delay)*time.Second, flag)
			continue
		}
		break
	}

	tokens, ok := agent.ParseUsageTokens(paths.CodexLogAbs)
	if !ok {
		tokens = int64(estimated)
	}
	_ = ratelimit.Record(ledgerPath, tsk.Model(), ratelimit.Window, uint64(tokens))

	if !succeeded {
		return blockAndCommit(ctx, cfg, taskID, runID, "no result produced after "+itoa(maxRunAttempts)+" attempts", rerr.ExitMissingResult)
	}

	result, err := schema.ParseResult(paths.ResultPathAbs)
	if err != nil {
		return blockAndCommit(ctx, cfg, taskID, runID, "result.json did not parse: "+err.Error(), rerr.ExitMissingResult)
	}

	verifyOK := true
	if result.DodMet {
		vr := verify.Run(ctx, cfg.Workspace, tsk.VerificationCommands())
		verifyOK = vr.OK
		_ = os.WriteFile(paths.VerifyLogPath, []byte(vr.Output), 0o644)
	}

	success := result.DodMet && verifyOK
	if success {
		if _, err := task.IncrementAttempts(cfg.TasksPath, taskID); err != nil {
			return Outcome{ExitCode: rerr.ExitGenericFailure, TaskID: taskID, Message: err.Error()}
		}
		if err := task.SetStatus(cfg.TasksPath, taskID, task.StatusCompleted, runID, "completed"); err != nil {
			return Outcome{ExitCode: rerr.ExitGenericFailure, TaskID: taskID, Message: err.Error()}
		}
		commit(ctx, cfg.Workspace, workspace.CommitSubject(tsk.Title(), taskID))
		if err := workspace.Finalize(ctx, cfg.Workspace, cfg.BaseBranch, taskID, workspace.CommitSubject(tsk.Title(), taskID)); err != nil {
			log.Warn("branch finalization failed", "error", err)
			return Outcome{ExitCode: rerr.ExitGenericFailure, TaskID: taskID, Message: err.Error()}
		}
		return Outcome{ExitCode: rerr.ExitOK, TaskID: taskID, Message: "completed"}
	}

	note := fmt.Sprintf("outcome=%s dod_met=%v verify_ok=%v result=%s", result.Outcome, result.DodMet, verifyOK, paths.ResultPathRel)
	if _, err := task.IncrementAttempts(cfg.TasksPath, taskID); err != nil {
		return Outcome{ExitCode: rerr.ExitGenericFailure, TaskID: taskID, Message: err.Error()}
	}
	if err := task.SetStatus(cfg.TasksPath, taskID, task.StatusStarted, runID, note); err != nil {
		return Outcome{ExitCode: rerr.ExitGenericFailure, TaskID: taskID, Message: err.Error()}
	}
	commit(ctx, cfg.Workspace, workspace.CommitSubject(tsk.Title(), taskID))
	return Outcome{ExitCode: rerr.ExitProgressNotDone, TaskID: taskID, Message: note}
}

func blockAndCommit(ctx context.Context, cfg Config, taskID, runID, note string, code rerr.ExitCode) Outcome {
	if _, err := task.IncrementAttempts(cfg.TasksPath, taskID); err != nil {
		return Outcome{ExitCode: rerr.ExitGenericFailure, TaskID: taskID, Message: err.Error()}
	}
	if err := task.SetStatus(cfg.TasksPath, taskID, task.StatusBlocked, runID, note); err != nil {
		return Outcome{ExitCode: rerr.ExitGenericFailure, TaskID: taskID, Message: err.Error()}
	}
	tskList, _ := task.Load(cfg.TasksPath)
	title := taskID
	if tskList != nil {
		if t := tskList.ByID(taskID); t != nil {
			title = t.Title()
		}
	}
	commit(ctx, cfg.Workspace, workspace.CommitSubject(title, taskID))
	return Outcome{ExitCode: code, TaskID: taskID, Message: note}
}

func interrupted(cfg Config, taskID, runID string) Outcome {
	_, _ = task.IncrementAttempts(cfg.TasksPath, taskID)
	_ = task.SetStatus(cfg.TasksPath, taskID, task.StatusStarted, runID, "interrupted")
	ctx := context.Background()
	tskList, _ := task.Load(cfg.TasksPath)
	title := taskID
	if tskList != nil {
		if t := tskList.ByID(taskID); t != nil {
			title = t.Title()
		}
	}
	commit(ctx, cfg.Workspace, workspace.CommitSubject(title, taskID))
	return Outcome{ExitCode: rerr.ExitCancelled, TaskID: taskID, Message: "interrupted"}
}

func runContextCompile(ctx context.Context, cfg Config, paths runpaths.RunPaths, taskID, runID string, flag *shutdown.Flag) (Outcome, bool) {
	assemblyPath := cfg.ContextCompile.AssemblyPath
	if assemblyPath == "" {
		assemblyPath = "assembly"
	}
	record := contextCompileRecord{Policy: string(cfg.ContextCompile.Policy), TokenBudget: cfg.ContextCompile.TokenBudget}

	if err := aspkg.ValidateContract(ctx, assemblyPath); err != nil {
		record.OK = false
		record.Error = err.Error()
		writeContextCompileRecord(paths.ContextCompilePath, record)
		if cfg.ContextCompile.Policy == config.ContextRequired {
			return blockAndCommit(ctx, cfg, taskID, runID, "assembly contract invalid: "+err.Error(), rerr.ExitContextRequired), true
		}
		log.Warn("assembly contract invalid, continuing best-effort", "error", err)
		return Outcome{}, false
	}

	exitCode, err := agent.RunAssembly(ctx, agent.AssemblyConfig{
		AssemblyPath:        assemblyPath,
		Workspace:           cfg.Workspace,
		TaskJSONPath:        paths.AssemblyTaskPath,
		TaskID:              taskID,
		OutDir:              paths.PackDirAbs,
		TokenBudget:         cfg.ContextCompile.TokenBudget,
		ExcludeGlobs:        cfg.ContextCompile.ExcludeGlobs,
		ExcludeRuntimeGlobs: cfg.ContextCompile.ExcludeRuntimeGlobs,
		SummaryJSONPath:     paths.AssemblySummaryPath,
		StdoutPath:          paths.AssemblyStdoutPath,
		StderrPath:          paths.AssemblyStderrPath,
	}, flag)
	record.ExitCode = exitCode

	if exitCode == int(rerr.ExitCancelled) {
		record.OK = false
		record.Error = "cancelled"
		writeContextCompileRecord(paths.ContextCompilePath, record)
		return interrupted(cfg, taskID, runID), true
	}

	if err != nil || exitCode != 0 {
		record.OK = false
		if err != nil {
			record.Error = err.Error()
		}
		writeContextCompileRecord(paths.ContextCompilePath, record)
		if cfg.ContextCompile.Policy == config.ContextRequired {
			return blockAndCommit(ctx, cfg, taskID, runID, "context compile failed", rerr.ExitContextRequired), true
		}
		log.Warn("context compile failed, continuing best-effort", "exit_code", exitCode)
		return Outcome{}, false
	}

	record.OK = true
	if err := aspkg.ValidatePackDir(paths.PackDirAbs); err != nil {
		record.OK = false
		record.Error = err.Error()
		writeContextCompileRecord(paths.ContextCompilePath, record)
		if cfg.ContextCompile.Policy == config.ContextRequired {
			return blockAndCommit(ctx, cfg, taskID, runID, "pack incomplete: "+err.Error(), rerr.ExitContextRequired), true
		}
		log.Warn("pack incomplete, continuing best-effort", "error", err)
		return Outcome{}, false
	}

	writeContextCompileRecord(paths.ContextCompilePath, record)
	return Outcome{}, false
}

// contextCompileRecord is the persisted summary at context-compile.json
// (§3's Run Layout), letting a postmortem see the stage's outcome without
// re-parsing the assembly stdout/stderr logs.
type contextCompileRecord struct {
	OK          bool   `json:"ok"`
	Policy      string `json:"policy"`
	TokenBudget uint64 `json:"token_budget"`
	ExitCode    int    `json:"exit_code"`
	Error       string `json:"error,omitempty"`
}

func writeContextCompileRecord(path string, r contextCompileRecord) {
	data, err := marshalIndent(r)
	if err != nil {
		return
	}
	_ = os.WriteFile(path, data, 0o644)
}

func sleepForRateLimit(ctx context.Context, ledgerPath, model string, tpm, rpm, estimated uint64, flag *shutdown.Flag, collector *telemetry.Collector) (interrupted bool) {
	seconds, err := ratelimit.SleepSeconds(ledgerPath, model, ratelimit.Window, tpm, rpm, estimated)
	if err != nil || seconds == 0 {
		return false
	}
	if collector != nil {
		collector.RecordRateLimitSleep(ctx, float64(seconds))
	}
	return sleepInterruptible(ctx, time.Duration(seconds)*time.Second, flag)
}

func sleepInterruptible(ctx context.Context, d time.Duration, flag *shutdown.Flag) bool {
	deadline := time.Now().Add(d)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for time.Now().Before(deadline) {
		if flag != nil && flag.Tripped() {
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

func commit(ctx context.Context, dir, subject string) {
	repo := gitutil.New(dir)
	if _, err := repo.Run(ctx, "add", "-A"); err != nil {
		log.Warn("git add failed", "error", err)
		return
	}
	if _, err := repo.Run(ctx, "commit", "-m", subject); err != nil {
		log.Debug("commit no-op or failed", "error", err)
	}
}

func newRunID() string {
	return fmt.Sprintf("%s-%d", time.Now().UTC().Format("20060102T150405Z"), os.Getpid())
}

func taskSnapshotBytes(t *task.Task) []byte {
	data, _ := marshalIndent(t.Raw())
	return data
}

func writeAssemblyTask(path string, t *task.Task) error {
	projection := map[string]interface{}{
		"task_id":            t.ID(),
		"title":              t.Title(),
		"status":             string(t.Status()),
		"model":              t.Model(),
		"definition_of_done": t.DefinitionOfDone(),
	}
	if r, ok := t.Recommended(); ok {
		projection["recommended"] = map[string]interface{}{"approach": r.Approach}
	}
	if cmds := t.VerificationCommands(); len(cmds) > 0 {
		projection["verification"] = map[string]interface{}{"commands": cmds}
	}
	data, err := marshalIndent(projection)
	if err != nil {
		return &rerr.IOError{Op: "marshal assembly task projection", Err: err}
	}
	return os.WriteFile(path, data, 0o644)
}

func buildPrompt(promptPath, basePromptPath string, t *task.Task, taskSnapshot []byte) error {
	base, err := os.ReadFile(basePromptPath)
	if err != nil {
		return &rerr.IOError{Op: "read base prompt " + basePromptPath, Err: err}
	}

	var sb []byte
	sb = append(sb, base...)
	sb = append(sb, []byte(fmt.Sprintf("\n\nTask title: %s\n\nDefinition of done:\n", t.Title()))...)
	for _, item := range t.DefinitionOfDone() {
		sb = append(sb, []byte(fmt.Sprintf("  - %s\n", item))...)
	}
	approach := ""
	if r, ok := t.Recommended(); ok {
		approach = r.Approach
	}
	sb = append(sb, []byte(fmt.Sprintf("\nRecommended approach:\n%s\n\nTask JSON (authoritative):\n", approach))...)
	sb = append(sb, taskSnapshot...)
	if len(sb) == 0 || sb[len(sb)-1] != '\n' {
		sb = append(sb, '\n')
	}

	if err := os.MkdirAll(filepath.Dir(promptPath), 0o755); err != nil {
		return &rerr.IOError{Op: "create run directory", Err: err}
	}
	return os.WriteFile(promptPath, sb, 0o644)
}

func itoa(n int) string { return fmt.Sprintf("%d", n) }

func marshalIndent(v interface{}) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}
