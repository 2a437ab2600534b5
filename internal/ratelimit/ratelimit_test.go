package ratelimit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeLedger(t *testing.T, payload map[string]interface{}) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "rate_limit.json")
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestSleepRespectsRPMLimit(t *testing.T) {
	path := writeLedger(t, map[string]interface{}{
		"requests": []interface{}{
			map[string]interface{}{"ts": 950.0, "model": "gpt-5.2-codex", "tokens": 10},
			map[string]interface{}{"ts": 980.0, "model": "gpt-5.2-codex", "tokens": 20},
			map[string]interface{}{"ts": 990.0, "model": "gpt-5.2-codex", "tokens": 30},
		},
	})

	sleep, err := sleepSecondsAt(path, "gpt-5.2-codex", Window, 0, 2, 0, 1000.0)
	require.NoError(t, err)
	require.Equal(t, uint64(40), sleep)
}

func TestSleepRespectsTPMLimit(t *testing.T) {
	path := writeLedger(t, map[string]interface{}{
		"requests": []interface{}{
			map[string]interface{}{"ts": 950.0, "model": "gpt-5.2-codex", "tokens": 50},
			map[string]interface{}{"ts": 980.0, "model": "gpt-5.2-codex", "tokens": 30},
		},
	})

	sleep, err := sleepSecondsAt(path, "gpt-5.2-codex", Window, 100, 0, 40, 1000.0)
	require.NoError(t, err)
	require.Equal(t, uint64(10), sleep)
}

func TestRecordPrunesOldEntries(t *testing.T) {
	path := writeLedger(t, map[string]interface{}{
		"requests": []interface{}{
			map[string]interface{}{"ts": 800.0, "model": "gpt-5.2-codex", "tokens": 10},
			map[string]interface{}{"ts": 990.0, "model": "gpt-5.1-codex", "tokens": 20},
		},
		"extra": "keep",
	})

	require.NoError(t, recordAt(path, "gpt-5.2-codex", Window, 5, 1000.0))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var written map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &written))

	require.Equal(t, "keep", written["extra"])
	requests := written["requests"].([]interface{})
	require.Len(t, requests, 2)
	require.Equal(t, "gpt-5.1-codex", requests[0].(map[string]interface{})["model"])
	require.Equal(t, "gpt-5.2-codex", requests[1].(map[string]interface{})["model"])
}

func TestPublicHelpersSmoke(t *testing.T) {
	dir := t.TempDir()
	ledger := filepath.Join(dir, "rate_limit.json")
	prompt := filepath.Join(dir, "prompt.md")
	require.NoError(t, os.WriteFile(prompt, []byte("abc"), 0o644))

	tpm, rpm := Settings("gpt-5.2-codex")
	require.Equal(t, uint64(500_000), tpm)
	require.Equal(t, uint64(500), rpm)
	require.GreaterOrEqual(t, EstimatePromptTokens(prompt), uint64(1000))

	sleep, err := SleepSeconds(ledger, "gpt-5.2-codex", 60*time.Second, tpm, rpm, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(0), sleep)

	require.NoError(t, Record(ledger, "gpt-5.2-codex", 60*time.Second, 25))
	raw, err := os.ReadFile(ledger)
	require.NoError(t, err)
	var written map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &written))
	require.Len(t, written["requests"].([]interface{}), 1)
}

func TestEstimatePromptTokensFloor(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.md")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	require.Equal(t, uint64(1000), EstimatePromptTokens(empty))
	require.Equal(t, uint64(1000), EstimatePromptTokens(filepath.Join(dir, "missing.md")))
}
