// Package gitutil wraps exec.CommandContext(ctx, "git", ...) the way the
// teacher's workspace manager does: stderr captured into the returned
// error, stdout trimmed and returned on success.
package gitutil

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Repo is a git work-tree rooted at Dir.
type Repo struct {
	Dir string
}

// New returns a Repo rooted at dir.
func New(dir string) *Repo { return &Repo{Dir: dir} }

// Run executes `git <args...>` in the repo directory, returning trimmed
// stdout on success or an error embedding stderr on failure.
func (r *Repo) Run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.Dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

// RunOrEmpty behaves like Run but returns "" instead of an error when the
// command fails — useful for probes like `git stash list`.
func (r *Repo) RunOrEmpty(ctx context.Context, args ...string) string {
	out, err := r.Run(ctx, args...)
	if err != nil {
		return ""
	}
	return out
}

// Lines splits RunOrEmpty's output into non-empty lines.
func Lines(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, "\n")
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}

// IsAvailable reports whether git is on PATH.
func IsAvailable() bool {
	_, err := exec.LookPath("git")
	return err == nil
}

// CurrentBranch returns the checked-out branch name, or "" if detached.
func (r *Repo) CurrentBranch(ctx context.Context) string {
	out := r.RunOrEmpty(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if out == "HEAD" {
		return ""
	}
	return out
}

// HeadSHA returns the current commit SHA.
func (r *Repo) HeadSHA(ctx context.Context) string {
	return r.RunOrEmpty(ctx, "rev-parse", "HEAD")
}

// IsDirty reports whether the work-tree has uncommitted or untracked
// changes.
func (r *Repo) IsDirty(ctx context.Context) bool {
	out := r.RunOrEmpty(ctx, "status", "--porcelain")
	return out != ""
}

// DirtyFiles returns the union of unstaged, staged, and untracked paths.
func (r *Repo) DirtyFiles(ctx context.Context) []string {
	seen := map[string]bool{}
	var out []string
	add := func(lines []string) {
		for _, l := range lines {
			if !seen[l] {
				seen[l] = true
				out = append(out, l)
			}
		}
	}
	add(Lines(r.RunOrEmpty(ctx, "diff", "--name-only")))
	add(Lines(r.RunOrEmpty(ctx, "diff", "--cached", "--name-only")))
	add(Lines(r.RunOrEmpty(ctx, "ls-files", "--others", "--exclude-standard")))
	return out
}

// DiffNameOnly returns the files changed between two refs.
func (r *Repo) DiffNameOnly(ctx context.Context, from, to string) []string {
	return Lines(r.RunOrEmpty(ctx, "diff", "--name-only", from, to))
}
