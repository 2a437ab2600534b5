// Package assembly validates the external context-pack builder's CLI
// contract before the pipeline ever invokes it for real, matching
// assembly_contract.rs: a --version probe, then a build --help scan for
// the eight required flags, plus (supplemented from original_source/) a
// check that a completed pack directory contains the five required files.
package assembly

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	rerr "ralph/internal/errors"
)

// ContractVersion mirrors CONTRACT_VERSION in the original source; bump it
// when the flag/file contract changes.
const ContractVersion = "2026-02-16"

// RequiredBuildFlags are the eight flags §6 requires assembly's `build
// --help` output to mention.
var RequiredBuildFlags = []string{
	"--repo", "--task", "--task-id", "--out",
	"--token-budget", "--exclude", "--exclude-runtime", "--summary-json",
}

// RequiredPackFiles are the five files a completed pack directory must
// contain; not named in spec.md's prose but present in the original
// implementation's contract, and worth validating so a silently-incomplete
// pack never reaches the prompt build step.
var RequiredPackFiles = []string{
	"manifest.json", "index.json", "context.md", "policy.md", "lint.json",
}

// MissingBuildFlagsError reports a conformance gap in the builder's CLI.
type MissingBuildFlagsError struct {
	Missing []string
}

func (e *MissingBuildFlagsError) Error() string {
	return fmt.Sprintf("assembly CLI contract mismatch (version %s): missing required build flags: %s",
		ContractVersion, strings.Join(e.Missing, ", "))
}

// ValidateContract runs `<path> --version` then `<path> build --help` and
// checks every required flag appears in the combined help output. Each
// probe is wrapped in the shared bounded-retry helper: a probe that runs
// but exits non-zero (an IOError) is retried; a probe that cannot be
// started is reported as DependencyMissingError and is not retried, and
// neither is a missing-flag contract mismatch.
func ValidateContract(ctx context.Context, assemblyPath string) error {
	if _, err := runWithRetry(ctx, assemblyPath, "--version"); err != nil {
		return err
	}
	help, err := runWithRetry(ctx, assemblyPath, "build", "--help")
	if err != nil {
		return err
	}
	return ValidateBuildHelp(help)
}

func runWithRetry(ctx context.Context, path string, args ...string) (string, error) {
	var out string
	err := rerr.Retry(ctx, rerr.DefaultRetryConfig(), func(ctx context.Context) error {
		o, err := run(ctx, path, args...)
		out = o
		return err
	})
	return out, err
}

// ValidateBuildHelp checks helpOutput mentions every required build flag.
func ValidateBuildHelp(helpOutput string) error {
	var missing []string
	for _, flag := range RequiredBuildFlags {
		if !strings.Contains(helpOutput, flag) {
			missing = append(missing, flag)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &MissingBuildFlagsError{Missing: missing}
}

// ValidatePackDir checks that dir contains every required pack file.
func ValidatePackDir(dir string) error {
	var missing []string
	for _, name := range RequiredPackFiles {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &rerr.ContractError{Reason: fmt.Sprintf("assembly pack missing required files: %s", strings.Join(missing, ", "))}
}

func run(ctx context.Context, path string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, path, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", &rerr.IOError{Op: fmt.Sprintf("%s %s", path, strings.Join(args, " ")), Err: err}
		}
		if errors.Is(err, exec.ErrNotFound) || os.IsNotExist(err) {
			return "", &rerr.DependencyMissingError{Command: path}
		}
		return "", &rerr.DependencyMissingError{Command: path}
	}
	return string(out), nil
}
