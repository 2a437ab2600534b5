package workspace

import (
	"context"
	"regexp"
	"strings"

	rerr "ralph/internal/errors"
	"ralph/internal/gitutil"
)

// Finalize implements §4.9: rebase the task branch onto base, squash it
// into one commit, fast-forward base onto it, and delete the task branch.
func Finalize(ctx context.Context, dir, baseBranch, taskID, subject string) error {
	if baseBranch == "" {
		baseBranch = "main"
	}
	repo := gitutil.New(dir)
	branch := BranchName(taskID)

	if _, err := repo.Run(ctx, "checkout", branch); err != nil {
		return &rerr.IOError{Op: "checkout task branch " + branch, Err: err}
	}
	// Best-effort rebase: conflicts are left for the squash-commit below to
	// capture as-is rather than aborting the whole finalize.
	_, _ = repo.Run(ctx, "rebase", baseBranch)

	if _, err := repo.Run(ctx, "reset", "--soft", baseBranch); err != nil {
		return &rerr.IOError{Op: "soft reset onto " + baseBranch, Err: err}
	}
	if _, err := repo.Run(ctx, "add", "-A"); err != nil {
		return &rerr.IOError{Op: "stage finalize commit", Err: err}
	}
	if _, err := repo.Run(ctx, "commit", "-m", subject); err != nil {
		// A clean tree (nothing to finalize) is not an error.
		if !strings.Contains(err.Error(), "nothing to commit") {
			return &rerr.IOError{Op: "commit finalize squash", Err: err}
		}
	}
	if _, err := repo.Run(ctx, "checkout", baseBranch); err != nil {
		return &rerr.IOError{Op: "checkout base branch " + baseBranch, Err: err}
	}
	if _, err := repo.Run(ctx, "merge", "--ff-only", branch); err != nil {
		return &rerr.IOError{Op: "fast-forward merge " + branch, Err: err}
	}
	if _, err := repo.Run(ctx, "branch", "-D", branch); err != nil {
		return &rerr.IOError{Op: "delete task branch " + branch, Err: err}
	}
	return nil
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// CommitSubject derives a commit subject from a task title per §4.7:
// collapse whitespace, strip a trailing period, truncate to <=50 chars
// preferring a word boundary, capitalize the first letter.
func CommitSubject(title, taskID string) string {
	collapsed := strings.TrimSpace(whitespaceRun.ReplaceAllString(title, " "))
	collapsed = strings.TrimSuffix(collapsed, ".")
	if collapsed == "" {
		return "Update " + taskID
	}
	if len(collapsed) > 50 {
		truncated := collapsed[:50]
		if idx := strings.LastIndex(truncated, " "); idx > 0 {
			truncated = truncated[:idx]
		}
		collapsed = truncated
	}
	r := []rune(collapsed)
	r[0] = []rune(strings.ToUpper(string(r[0])))[0]
	return string(r)
}
