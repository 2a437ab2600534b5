package agent

import (
	"context"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	rerr "ralph/internal/errors"
	"ralph/internal/logging"
	"ralph/internal/shutdown"
)

var log = logging.For("agent")

// CodexConfig carries the fixed invocation contract from §6:
//
//	codex exec --yolo --model <M> --output-schema <schema> \
//	           --output-last-message <result> --json --skip-git-repo-check -
type CodexConfig struct {
	Workspace  string
	Model      string
	SchemaPath string
	ResultPath string
	PromptPath string
	LogPath    string
}

// RunCodex launches one codex attempt, tailing its JSONL log live until the
// child exits or shutdown is tripped. The tailer's context is cancelled
// explicitly once the wait goroutine observes the child's exit — errgroup
// only cancels its shared context on a non-nil error, and a clean or
// non-zero-but-exited codex run returns nil from Wait, so relying on
// errgroup cancellation alone would leave the tailer running forever.
func RunCodex(ctx context.Context, cfg CodexConfig, flag *shutdown.Flag) (exitCode int, err error) {
	promptFile, err := os.Open(cfg.PromptPath)
	if err != nil {
		return 0, &rerr.IOError{Op: "open prompt file " + cfg.PromptPath, Err: err}
	}
	defer promptFile.Close()

	logFile, err := os.Create(cfg.LogPath)
	if err != nil {
		return 0, &rerr.IOError{Op: "create codex log " + cfg.LogPath, Err: err}
	}
	defer logFile.Close()

	proc, err := Start(ctx, ProcessConfig{
		Command: "codex",
		Args: []string{
			"exec", "--yolo",
			"--model", cfg.Model,
			"--output-schema", cfg.SchemaPath,
			"--output-last-message", cfg.ResultPath,
			"--json", "--skip-git-repo-check", "-",
		},
		WorkingDir: cfg.Workspace,
		Env:        os.Environ(),
		Stdin:      promptFile,
		Stdout:     logFile,
		Stderr:     logFile,
	})
	if err != nil {
		return 0, &rerr.IOError{Op: "spawn codex", Err: err}
	}

	tailCtx, stopTail := context.WithCancel(ctx)
	defer stopTail()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return tailLog(tailCtx, cfg.LogPath, flag)
	})
	g.Go(func() error {
		defer stopTail()
		code, werr := proc.Wait(pollingContext(gctx, flag))
		exitCode = code
		return werr
	})

	_ = g.Wait()
	return exitCode, nil
}

// pollingContext returns a context cancelled either when parent is done or
// when flag trips, polled at <=100ms, matching §5's suspension-point rule.
func pollingContext(parent context.Context, flag *shutdown.Flag) context.Context {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		defer cancel()
		for {
			select {
			case <-parent.Done():
				return
			default:
			}
			if flag != nil && flag.Tripped() {
				return
			}
			select {
			case <-parent.Done():
				return
			case <-time.After(100 * time.Millisecond):
			}
		}
	}()
	return ctx
}
