package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	settings, err := Load(Options{Workspace: dir, TasksPath: "tasks.json", PromptPath: "prompt.md"})
	require.NoError(t, err)
	require.Equal(t, "main", settings.BaseBranch)
	require.Equal(t, uint64(8000), settings.ContextCompile.TokenBudget)
	require.False(t, settings.ContextCompile.Enabled)
	require.Equal(t, ContextBestEffort, settings.ContextCompile.Policy)
}

func TestLoadCLIFlagsOverrideDefaults(t *testing.T) {
	dir := t.TempDir()
	enabled := true
	settings, err := Load(Options{
		Workspace:      dir,
		BaseBranch:     "develop",
		TokenBudget:    12345,
		ContextEnabled: &enabled,
	})
	require.NoError(t, err)
	require.Equal(t, "develop", settings.BaseBranch)
	require.Equal(t, uint64(12345), settings.ContextCompile.TokenBudget)
	require.True(t, settings.ContextCompile.Enabled)
}

func TestLoadTelemetryAddrEnablesCollector(t *testing.T) {
	dir := t.TempDir()
	settings, err := Load(Options{Workspace: dir, TelemetryAddr: "127.0.0.1:9090"})
	require.NoError(t, err)
	require.True(t, settings.Telemetry.Enabled)
	require.Equal(t, 9090, settings.Telemetry.PrometheusPort)
}

func TestParsePort(t *testing.T) {
	require.Equal(t, 9090, parsePort("127.0.0.1:9090"))
	require.Equal(t, 9090, parsePort(":9090"))
	require.Equal(t, 0, parsePort("no-port"))
}
