package workspace

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"ralph/internal/gitutil"
)

func TestAcquireCleanTreeChecksOutTaskBranch(t *testing.T) {
	dir := initRepo(t)
	base := currentBranch(t, dir)

	g, err := Acquire(context.Background(), dir, base, "TASK-1")
	require.NoError(t, err)
	require.False(t, g.stashed)
	require.Equal(t, "ralph/TASK-1", currentBranch(t, dir))
}

func TestAcquireReusesExistingTaskBranch(t *testing.T) {
	dir := initRepo(t)
	base := currentBranch(t, dir)
	runGit(t, dir, "checkout", "-b", "ralph/TASK-1")
	runGit(t, dir, "checkout", base)

	g, err := Acquire(context.Background(), dir, base, "TASK-1")
	require.NoError(t, err)
	require.Equal(t, "ralph/TASK-1", currentBranch(t, dir))
	g.Release(context.Background())
}

func TestAcquireStashesDirtyTreeAndReleaseRestoresIt(t *testing.T) {
	dir := initRepo(t)
	base := currentBranch(t, dir)
	writeFile(t, filepath.Join(dir, "README.md"), "dirty edit")

	g, err := Acquire(context.Background(), dir, base, "")
	require.NoError(t, err)
	require.True(t, g.stashed)
	require.Equal(t, "clean", runGitOutput(t, dir, "status", "--porcelain"))

	g.Release(context.Background())
	require.Contains(t, readFile(t, filepath.Join(dir, "README.md")), "dirty edit")
}

func TestReleaseLeavesStashWhenRunTouchedDirtyFiles(t *testing.T) {
	dir := initRepo(t)
	base := currentBranch(t, dir)
	writeFile(t, filepath.Join(dir, "README.md"), "dirty edit")

	g, err := Acquire(context.Background(), dir, base, "")
	require.NoError(t, err)
	require.True(t, g.stashed)

	writeFile(t, filepath.Join(dir, "README.md"), "run touched this")
	runGit(t, dir, "add", "README.md")
	runGit(t, dir, "commit", "-m", "run commit")

	g.Release(context.Background())
	require.Contains(t, runGitOutput(t, dir, "stash", "list"), "stash@{0}")
}

func TestBranchNameDerivation(t *testing.T) {
	require.Equal(t, "ralph/TASK-1", BranchName("TASK-1"))
}

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	runGit(t, dir, "init", "-b", "master")
	writeFile(t, filepath.Join(dir, "README.md"), "init")
	runGit(t, dir, "add", "README.md")
	runGit(t, dir, "commit", "-m", "init")
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=Test", "GIT_AUTHOR_EMAIL=test@example.com",
		"GIT_COMMITTER_NAME=Test", "GIT_COMMITTER_EMAIL=test@example.com",
	)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %s: %s", strings.Join(args, " "), string(out))
}

func runGitOutput(t *testing.T, dir string, args ...string) string {
	t.Helper()
	repo := gitutil.New(dir)
	out, err := repo.Run(context.Background(), args...)
	require.NoError(t, err)
	if out == "" {
		return "clean"
	}
	return out
}

func currentBranch(t *testing.T, dir string) string {
	t.Helper()
	repo := gitutil.New(dir)
	return repo.CurrentBranch(context.Background())
}
