package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnsureWritesTemplateOnlyOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "task_result.schema.json")

	require.NoError(t, Ensure(path))
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("sentinel"), 0o644))
	require.NoError(t, Ensure(path))
	second, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "sentinel", string(second))
	require.NotEqual(t, string(first), string(second))
}

func TestParseResultWellFormed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "result.json")
	body := `{"task_id":"A","outcome":"completed","dod_met":true,"summary":"done",
	  "tests":{"ran":true,"commands":["go test ./..."],"passed":true},"notes":"","blockers":[]}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	r, err := ParseResult(path)
	require.NoError(t, err)
	require.Equal(t, "A", r.TaskID)
	require.True(t, r.DodMet)
	require.True(t, r.Tests.Passed)
}

func TestParseResultRepairsTrailingComma(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "result.json")
	body := `{"task_id":"A","outcome":"started","dod_met":false,"summary":"s",
	  "tests":{"ran":false,"commands":[],"passed":false},"notes":"n","blockers":[],}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	r, err := ParseResult(path)
	require.NoError(t, err)
	require.Equal(t, "A", r.TaskID)
}

func TestNonEmptyFile(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.json")
	require.False(t, NonEmptyFile(missing))

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	require.False(t, NonEmptyFile(empty))

	nonEmpty := filepath.Join(dir, "result.json")
	require.NoError(t, os.WriteFile(nonEmpty, []byte("{}"), 0o644))
	require.True(t, NonEmptyFile(nonEmpty))
}
