package runpaths

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsDeterministic(t *testing.T) {
	a := New("/work", "TASK-1", "run-123")
	b := New("/work", "TASK-1", "run-123")
	require.Equal(t, a, b)
}

func TestNewLayout(t *testing.T) {
	p := New("/work", "TASK-1", "run-123")

	assert.Equal(t, filepath.Join(".ralph", "runs", "TASK-1", "run-123"), p.RunDirRel)
	assert.Equal(t, "/work/.ralph/runs/TASK-1/run-123", p.RunDirAbs)
	assert.Equal(t, "/work/.ralph/runs/TASK-1/run-123/pack", p.PackDirAbs)
	assert.Equal(t, "/work/.ralph/runs/TASK-1/run-123/prompt.md", p.PromptPath)
	assert.Equal(t, "/work/.ralph/runs/TASK-1/run-123/result.json", p.ResultPathAbs)
	assert.Equal(t, "/work/.ralph/runs/TASK-1/run-123/codex.jsonl", p.CodexLogAbs)
	assert.Equal(t, "/work/.ralph/runs/TASK-1/run-123/task.json", p.TaskSnapshotPath)
}

func TestSchemaAndLedgerPaths(t *testing.T) {
	assert.Equal(t, "/work/.ralph/task_result.schema.json", SchemaPath("/work"))
	assert.Equal(t, "/work/.ralph/rate_limit.json", RateLimitPath("/work"))
	assert.Equal(t, "/work/.ralph/config.yaml", ConfigPath("/work"))
}
