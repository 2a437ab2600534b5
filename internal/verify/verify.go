// Package verify implements §4.8: running a task's declared verification
// commands, or else the project-detection priority chain the original
// run_verification used (scripts/ci.sh, make ci, tests/run.sh, pytest).
package verify

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Result is the outcome of a verification run.
type Result struct {
	OK      bool
	Command string
	Output  string
}

// Run executes commands (if non-empty) as a single bash script, or else
// auto-detects a verification command in the workspace. If nothing
// matches, verification is a no-op success.
func Run(ctx context.Context, workspace string, commands []string) Result {
	if len(commands) > 0 {
		script := "set -euo pipefail\n" + strings.Join(commands, "\n")
		return runScript(ctx, workspace, "bash -lc <declared commands>", "bash", "-lc", script)
	}

	if path := filepath.Join(workspace, "scripts", "ci.sh"); isExecutable(path) {
		return runScript(ctx, workspace, "scripts/ci.sh", path)
	}
	if hasCITarget(filepath.Join(workspace, "Makefile")) {
		return runScript(ctx, workspace, "make ci", "make", "ci")
	}
	if path := filepath.Join(workspace, "tests", "run.sh"); isExecutable(path) {
		return runScript(ctx, workspace, "tests/run.sh", path)
	}
	if pytestDetected(workspace) {
		return runScript(ctx, workspace, "pytest -q", "pytest", "-q")
	}

	return Result{OK: true, Command: "(none detected)", Output: ""}
}

func runScript(ctx context.Context, dir, label string, name string, args ...string) Result {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	return Result{OK: err == nil, Command: label, Output: buf.String()}
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode().Perm()&0o111 != 0
}

func hasCITarget(makefilePath string) bool {
	data, err := os.ReadFile(makefilePath)
	if err != nil {
		return false
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "ci:") {
			return true
		}
	}
	return false
}

func pytestDetected(workspace string) bool {
	if _, err := exec.LookPath("pytest"); err != nil {
		return false
	}
	for _, marker := range []string{"pytest.ini", "pyproject.toml", "setup.cfg", "tox.ini"} {
		if _, err := os.Stat(filepath.Join(workspace, marker)); err == nil {
			return true
		}
	}
	testsDir := filepath.Join(workspace, "tests")
	found := false
	filepathWalk(testsDir, func(path string) {
		if strings.HasSuffix(path, ".py") {
			found = true
		}
	})
	return found
}

func filepathWalk(root string, visit func(path string)) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return
	}
	for _, e := range entries {
		full := filepath.Join(root, e.Name())
		if e.IsDir() {
			filepathWalk(full, visit)
			continue
		}
		visit(full)
	}
}
