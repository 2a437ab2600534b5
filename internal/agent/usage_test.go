package agent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeLog(t *testing.T, lines ...string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "codex.jsonl")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseUsageTokensPrefersTotalTokens(t *testing.T) {
	path := writeLog(t,
		`{"type":"turn.completed","usage":{"total_tokens":42,"input_tokens":10,"output_tokens":5}}`,
	)
	tokens, ok := ParseUsageTokens(path)
	require.True(t, ok)
	require.Equal(t, int64(42), tokens)
}

func TestParseUsageTokensUsesLastRecord(t *testing.T) {
	path := writeLog(t,
		`{"type":"turn.completed","usage":{"total_tokens":42}}`,
		`{"type":"turn.completed","usage":{"input_tokens":10,"output_tokens":5}}`,
	)
	tokens, ok := ParseUsageTokens(path)
	require.True(t, ok)
	require.Equal(t, int64(15), tokens)
}

func TestParseUsageTokensFallsBackToInputOutput(t *testing.T) {
	path := writeLog(t, `{"type":"turn.completed","usage":{"prompt_tokens":7,"completion_tokens":3}}`)
	tokens, ok := ParseUsageTokens(path)
	require.True(t, ok)
	require.Equal(t, int64(10), tokens)
}

func TestParseUsageTokensNoMatch(t *testing.T) {
	path := writeLog(t, `{"type":"other"}`)
	_, ok := ParseUsageTokens(path)
	require.False(t, ok)
}

func TestRateLimitRetryDelayParsesSeconds(t *testing.T) {
	delay, ok := RateLimitRetryDelay("error: rate limit exceeded, please try again in 2.3 seconds")
	require.True(t, ok)
	require.Equal(t, uint64(3), delay)
}

func TestRateLimitRetryDelayNoHint(t *testing.T) {
	_, ok := RateLimitRetryDelay("some unrelated error")
	require.False(t, ok)
}

func TestRateLimitRetryDelayHyphenatedVariant(t *testing.T) {
	delay, ok := RateLimitRetryDelay("rate-limit hit, please try again in 5 seconds")
	require.True(t, ok)
	require.Equal(t, uint64(5), delay)
}
