// Package runpaths computes the deterministic on-disk layout for a single
// task run. It performs no I/O; callers create the directories it names.
package runpaths

import "path/filepath"

// RunPaths is the full set of files and directories a pipeline run touches,
// rooted at <workspace>/.ralph/runs/<task_id>/<run_id>/.
type RunPaths struct {
	RunDirRel  string
	RunDirAbs  string
	PackDirRel string
	PackDirAbs string

	PromptPath string

	ResultPathRel string
	ResultPathAbs string

	CodexLogRel string
	CodexLogAbs string

	TaskSnapshotPath string

	AssemblyTaskPath    string
	AssemblySummaryPath string
	AssemblyStdoutPath  string
	AssemblyStderrPath  string
	ContextCompilePath  string
	VerifyLogPath       string
}

// New returns the paths for the given task/run pair rooted at workspace.
// It is a pure function: identical inputs always yield identical output.
func New(workspace, taskID, runID string) RunPaths {
	runDirRel := filepath.Join(".ralph", "runs", taskID, runID)
	runDirAbs := filepath.Join(workspace, runDirRel)
	packDirRel := filepath.Join(runDirRel, "pack")
	packDirAbs := filepath.Join(runDirAbs, "pack")
	resultRel := filepath.Join(runDirRel, "result.json")
	codexLogRel := filepath.Join(runDirRel, "codex.jsonl")

	return RunPaths{
		RunDirRel:  runDirRel,
		RunDirAbs:  runDirAbs,
		PackDirRel: packDirRel,
		PackDirAbs: packDirAbs,

		PromptPath: filepath.Join(runDirAbs, "prompt.md"),

		ResultPathRel: resultRel,
		ResultPathAbs: filepath.Join(workspace, resultRel),

		CodexLogRel: codexLogRel,
		CodexLogAbs: filepath.Join(workspace, codexLogRel),

		TaskSnapshotPath: filepath.Join(runDirAbs, "task.json"),

		AssemblyTaskPath:    filepath.Join(runDirAbs, "assembly-task.json"),
		AssemblySummaryPath: filepath.Join(runDirAbs, "assembly-summary.json"),
		AssemblyStdoutPath:  filepath.Join(runDirAbs, "assembly.stdout.log"),
		AssemblyStderrPath:  filepath.Join(runDirAbs, "assembly.stderr.log"),
		ContextCompilePath:  filepath.Join(runDirAbs, "context-compile.json"),
		VerifyLogPath:       filepath.Join(runDirAbs, "verify.log"),
	}
}

// SchemaPath is the fixed location of the auto-materialized result schema,
// shared by every run in a workspace.
func SchemaPath(workspace string) string {
	return filepath.Join(workspace, ".ralph", "task_result.schema.json")
}

// RateLimitPath is the fixed location of the rate-limit ledger.
func RateLimitPath(workspace string) string {
	return filepath.Join(workspace, ".ralph", "rate_limit.json")
}

// ConfigPath is the optional layered-config file location (§4.11).
func ConfigPath(workspace string) string {
	return filepath.Join(workspace, ".ralph", "config.yaml")
}
