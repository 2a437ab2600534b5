package agent

import (
	"context"
	"os"

	rerr "ralph/internal/errors"
	"ralph/internal/shutdown"
)

// AssemblyConfig carries the eight required build flags from §6's contract.
type AssemblyConfig struct {
	AssemblyPath        string
	Workspace           string
	TaskJSONPath        string
	TaskID              string
	OutDir              string
	TokenBudget         uint64
	ExcludeGlobs        []string
	ExcludeRuntimeGlobs []string
	SummaryJSONPath     string
	StdoutPath          string
	StderrPath          string
}

// RunAssembly invokes the context-pack builder with the required flags.
// It shares the same <=100ms cancellation polling as RunCodex (§5).
func RunAssembly(ctx context.Context, cfg AssemblyConfig, flag *shutdown.Flag) (exitCode int, err error) {
	stdout, err := os.Create(cfg.StdoutPath)
	if err != nil {
		return 0, &rerr.IOError{Op: "create assembly stdout log", Err: err}
	}
	defer stdout.Close()
	stderr, err := os.Create(cfg.StderrPath)
	if err != nil {
		return 0, &rerr.IOError{Op: "create assembly stderr log", Err: err}
	}
	defer stderr.Close()

	args := []string{
		"build",
		"--repo", cfg.Workspace,
		"--task", "@" + cfg.TaskJSONPath,
		"--task-id", cfg.TaskID,
		"--out", cfg.OutDir,
		"--token-budget", itoa(cfg.TokenBudget),
		"--summary-json", cfg.SummaryJSONPath,
	}
	for _, g := range cfg.ExcludeGlobs {
		args = append(args, "--exclude", g)
	}
	for _, g := range cfg.ExcludeRuntimeGlobs {
		args = append(args, "--exclude-runtime", g)
	}

	assemblyPath := cfg.AssemblyPath
	if assemblyPath == "" {
		assemblyPath = "assembly"
	}

	proc, err := Start(ctx, ProcessConfig{
		Command:    assemblyPath,
		Args:       args,
		Env:        os.Environ(),
		WorkingDir: cfg.Workspace,
		Stdout:     stdout,
		Stderr:     stderr,
	})
	if err != nil {
		return 0, &rerr.IOError{Op: "spawn assembly", Err: err}
	}
	return proc.Wait(pollingContext(ctx, flag))
}

func itoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
