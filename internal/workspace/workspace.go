// Package workspace implements the Workspace Guard (C5): a scoped
// resource that stashes dirty files, checks out the task branch, and
// restores everything on release, mirroring the Allocate/Merge/Cleanup
// shape of the teacher's infra/external/workspace manager but driven by
// the task-driver's stash-then-branch semantics instead of its
// shared/branch/worktree modes.
package workspace

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	rerr "ralph/internal/errors"
	"ralph/internal/gitutil"
	"ralph/internal/logging"
)

var log = logging.For("guard")

// Guard is the acquired workspace lifetime. Release must run on every
// exit path, including cancellation and panics.
type Guard struct {
	repo *gitutil.Repo

	originalBranch string // "" if HEAD was detached
	preRunHead     string
	dirtyFiles     []string
	stashed        bool
	stashRef       string
}

var branchSanitizer = regexp.MustCompile(`[\\/\s]+`)

// BranchName derives the ralph/<task_id> branch name, sanitizing path
// separators and whitespace the way the teacher's branchName helper does.
func BranchName(taskID string) string {
	return "ralph/" + branchSanitizer.ReplaceAllString(taskID, "-")
}

// Acquire verifies git availability, snapshots the current branch and
// HEAD, stashes any dirty tree, and checks out baseBranch then the task
// branch (§4.5).
func Acquire(ctx context.Context, dir, baseBranch, taskID string) (*Guard, error) {
	if !gitutil.IsAvailable() {
		return nil, &rerr.DependencyMissingError{Command: "git"}
	}
	repo := gitutil.New(dir)
	if _, err := repo.Run(ctx, "rev-parse", "--is-inside-work-tree"); err != nil {
		return nil, &rerr.IOError{Op: "verify git work-tree", Err: err}
	}

	g := &Guard{
		repo:           repo,
		originalBranch: repo.CurrentBranch(ctx),
		preRunHead:     repo.HeadSHA(ctx),
	}

	if repo.IsDirty(ctx) {
		g.dirtyFiles = repo.DirtyFiles(ctx)
		stamp := fmt.Sprintf("ralph-%d-%d", time.Now().Unix(), pid())
		if _, err := repo.Run(ctx, "stash", "push", "-u", "-m", stamp); err != nil {
			return nil, &rerr.IOError{Op: "stash dirty tree", Err: err}
		}
		g.stashed = true
		g.stashRef = findStashRef(ctx, repo, stamp)
	}

	if taskID != "" {
		if baseBranch == "" {
			baseBranch = "main"
		}
		if _, err := repo.Run(ctx, "checkout", baseBranch); err != nil {
			return nil, &rerr.IOError{Op: "checkout base branch " + baseBranch, Err: err}
		}
		branch := BranchName(taskID)
		if _, err := repo.Run(ctx, "checkout", branch); err != nil {
			if _, err2 := repo.Run(ctx, "checkout", "-b", branch); err2 != nil {
				return nil, &rerr.IOError{Op: "checkout or create task branch " + branch, Err: err2}
			}
		}
	}

	return g, nil
}

func findStashRef(ctx context.Context, repo *gitutil.Repo, stamp string) string {
	for _, line := range gitutil.Lines(repo.RunOrEmpty(ctx, "stash", "list")) {
		if strings.Contains(line, stamp) {
			if idx := strings.Index(line, ":"); idx > 0 {
				return line[:idx]
			}
		}
	}
	return ""
}

// Release restores the original branch and re-applies the stash, unless
// the run itself touched any of the originally-dirty files — in which
// case the stash is left in place for manual recovery and a warning is
// logged. Release never returns an error; it always logs and returns.
func (g *Guard) Release(ctx context.Context) {
	if !g.stashed {
		return
	}

	head := g.repo.HeadSHA(ctx)
	runFiles := g.repo.DiffNameOnly(ctx, g.preRunHead, head)
	if overlap(g.dirtyFiles, runFiles) {
		log.Warn("leaving stash in place: run touched originally dirty files", "stash", g.stashRef)
		return
	}

	target := g.originalBranch
	if target == "" {
		target = g.preRunHead
	}
	if _, err := g.repo.Run(ctx, "checkout", target); err != nil {
		log.Warn("failed to restore original branch, leaving stash", "error", err)
		return
	}
	if _, err := g.repo.Run(ctx, "stash", "apply"); err != nil {
		log.Warn("failed to reapply stash, leaving it in place", "error", err)
		return
	}
	if _, err := g.repo.Run(ctx, "stash", "drop"); err != nil {
		log.Warn("failed to drop stash after apply", "error", err)
	}
}

func pid() int { return os.Getpid() }

func overlap(a, b []string) bool {
	set := map[string]bool{}
	for _, x := range a {
		set[x] = true
	}
	for _, y := range b {
		if set[y] {
			return true
		}
	}
	return false
}
