package metadata

import (
	"testing"

	"github.com/stretchr/testify/require"

	"ralph/internal/task"
)

func parseFirst(t *testing.T, raw string) *task.Task {
	t.Helper()
	list, err := task.ParseList([]byte(raw))
	require.NoError(t, err)
	require.NotEmpty(t, list.Tasks())
	return list.Tasks()[0]
}

func TestValidatePasses(t *testing.T) {
	tk := parseFirst(t, `[{"task_id":"A","title":"t","definition_of_done":["d"],"recommended":{"approach":"a"}}]`)
	require.NoError(t, Validate(tk))
}

func TestValidateMissingTitle(t *testing.T) {
	tk := parseFirst(t, `[{"task_id":"A","title":"","definition_of_done":["d"],"recommended":{"approach":"a"}}]`)
	err := Validate(tk)
	require.Error(t, err)
	var mErr *Error
	require.ErrorAs(t, err, &mErr)
	require.Contains(t, mErr.Missing, "title")
}

func TestValidateRecommendedMustBeExactlyOneKey(t *testing.T) {
	tk := parseFirst(t, `[{"task_id":"A","title":"t","definition_of_done":["d"],"recommended":{"approach":"a","extra":"x"}}]`)
	err := Validate(tk)
	require.Error(t, err)
}

func TestValidateEmptyDodItem(t *testing.T) {
	tk := parseFirst(t, `[{"task_id":"A","title":"t","definition_of_done":["d",""],"recommended":{"approach":"a"}}]`)
	err := Validate(tk)
	require.Error(t, err)
}
