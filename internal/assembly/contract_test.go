package assembly

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateBuildHelpAllFlagsPresent(t *testing.T) {
	help := `Usage: assembly build --repo <dir> --task <file> --task-id <id> --out <dir>
  --token-budget <n> --exclude <glob> --exclude-runtime <glob> --summary-json <file>`
	require.NoError(t, ValidateBuildHelp(help))
}

func TestValidateBuildHelpMissingFlags(t *testing.T) {
	help := "Usage: assembly build --repo <dir> --task <file>"
	err := ValidateBuildHelp(help)
	require.Error(t, err)
	var missing *MissingBuildFlagsError
	require.ErrorAs(t, err, &missing)
	require.Contains(t, missing.Missing, "--task-id")
	require.Contains(t, missing.Missing, "--summary-json")
}

func TestValidatePackDirComplete(t *testing.T) {
	dir := t.TempDir()
	for _, name := range RequiredPackFiles {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0o644))
	}
	require.NoError(t, ValidatePackDir(dir))
}

func TestValidatePackDirIncomplete(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.json"), []byte("{}"), 0o644))
	err := ValidatePackDir(dir)
	require.Error(t, err)
}
