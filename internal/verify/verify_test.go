package verify

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunDeclaredCommands(t *testing.T) {
	dir := t.TempDir()
	res := Run(context.Background(), dir, []string{"exit 0"})
	require.True(t, res.OK)
}

func TestRunDeclaredCommandsFailure(t *testing.T) {
	dir := t.TempDir()
	res := Run(context.Background(), dir, []string{"exit 1"})
	require.False(t, res.OK)
}

func TestRunDetectsScriptsCI(t *testing.T) {
	dir := t.TempDir()
	scriptsDir := filepath.Join(dir, "scripts")
	require.NoError(t, os.MkdirAll(scriptsDir, 0o755))
	path := filepath.Join(scriptsDir, "ci.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755))

	res := Run(context.Background(), dir, nil)
	require.True(t, res.OK)
	require.Equal(t, "scripts/ci.sh", res.Command)
}

func TestRunNoopWhenNothingDetected(t *testing.T) {
	dir := t.TempDir()
	res := Run(context.Background(), dir, nil)
	require.True(t, res.OK)
}
