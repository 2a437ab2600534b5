package workspace

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCommitSubjectCollapsesWhitespaceAndPeriod(t *testing.T) {
	require.Equal(t, "Fix the thing", CommitSubject("  fix   the thing.  ", "TASK-1"))
}

func TestCommitSubjectEmptyFallsBackToTaskID(t *testing.T) {
	require.Equal(t, "Update TASK-1", CommitSubject("   ", "TASK-1"))
}

func TestCommitSubjectTruncatesAtWordBoundary(t *testing.T) {
	title := strings.Repeat("word ", 20)
	subject := CommitSubject(title, "TASK-1")
	require.LessOrEqual(t, len(subject), 50)
	require.NotEqual(t, byte(' '), subject[len(subject)-1])
}

func TestCommitSubjectIsIdempotent(t *testing.T) {
	title := "some task title here"
	once := CommitSubject(title, "TASK-1")
	twice := CommitSubject(once, "TASK-1")
	require.Equal(t, once, twice)
}

func TestBranchNameSanitizesSeparators(t *testing.T) {
	require.Equal(t, "ralph/feature-x-y", BranchName("feature/x y"))
}
