package task

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleArray = `[
  {"task_id":"A","title":"t","model":"gpt-5.1-codex-mini","definition_of_done":["d"],
   "recommended":{"approach":"a"},"custom_field":"keep-me"}
]`

const sampleEnvelope = `{"tasks":[{"task_id":"A","title":"t"}],"meta":"keep"}`

func TestParseListBareArray(t *testing.T) {
	list, err := ParseList([]byte(sampleArray))
	require.NoError(t, err)
	require.Len(t, list.Tasks(), 1)
	require.Equal(t, "A", list.Tasks()[0].ID())
	require.Equal(t, StatusUnstarted, list.Tasks()[0].Status())
}

func TestParseListEnvelopePreserved(t *testing.T) {
	list, err := ParseList([]byte(sampleEnvelope))
	require.NoError(t, err)
	out, err := list.Marshal()
	require.NoError(t, err)
	require.Contains(t, string(out), `"meta": "keep"`)
}

func TestRoundTripPreservesUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.json")
	require.NoError(t, atomicWrite(path, []byte(sampleArray)))

	list, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, Save(path, list))

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "keep-me", reloaded.Tasks()[0].Raw()["custom_field"])
}

func TestIncrementAndResetAttempts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.json")
	require.NoError(t, atomicWrite(path, []byte(sampleArray)))

	n, err := IncrementAttempts(path, "A")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = IncrementAttempts(path, "A")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	require.NoError(t, ResetAttempts(path, "A", "run-1", "reset"))
	count, err := CountAttempts(path, "A")
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func TestSetStatusStampsObservability(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.json")
	require.NoError(t, atomicWrite(path, []byte(sampleArray)))

	require.NoError(t, SetStatus(path, "A", StatusCompleted, "run-9", "done"))

	list, err := Load(path)
	require.NoError(t, err)
	tsk := list.ByID("A")
	require.Equal(t, StatusCompleted, tsk.Status())
	obs := tsk.Observability()
	require.Equal(t, "run-9", obs.LastRunID)
	require.Equal(t, "done", obs.LastNote)
}

func TestRecommendedRequiresExactlyOneKey(t *testing.T) {
	list, err := ParseList([]byte(`[{"task_id":"A","recommended":{"approach":"a","extra":"b"}}]`))
	require.NoError(t, err)
	_, ok := list.Tasks()[0].Recommended()
	require.False(t, ok)
}
