package agent

import (
	"bufio"
	"encoding/json"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// ParseUsageTokens scans a codex.jsonl log for "turn.completed" records
// and returns the total token count from the last one, matching
// parse_usage_tokens in the original source: prefer usage.total_tokens,
// else input_tokens+output_tokens with prompt_tokens/completion_tokens as
// aliases.
func ParseUsageTokens(path string) (int64, bool) {
	f, err := os.Open(path)
	if err != nil {
		return 0, false
	}
	defer f.Close()

	var total int64
	found := false

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var record map[string]interface{}
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			continue
		}
		if t, _ := record["type"].(string); t != "turn.completed" {
			continue
		}
		usage, ok := record["usage"].(map[string]interface{})
		if !ok {
			continue
		}
		if v, ok := numField(usage, "total_tokens"); ok {
			total = v
			found = true
			continue
		}
		input, hasInput := numField(usage, "input_tokens")
		if !hasInput {
			input, hasInput = numField(usage, "prompt_tokens")
		}
		output, hasOutput := numField(usage, "output_tokens")
		if !hasOutput {
			output, hasOutput = numField(usage, "completion_tokens")
		}
		if hasInput || hasOutput {
			total = input + output
			found = true
		}
	}
	return total, found
}

func numField(m map[string]interface{}, key string) (int64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	if f, ok := v.(float64); ok {
		return int64(f), true
	}
	return 0, false
}

var rateLimitPhraseRe = regexp.MustCompile(`(?i)please try again in ([0-9]+(?:\.[0-9]+)?)`)

// RateLimitRetryDelay scans logText for a case-insensitive "rate limit" or
// "rate-limit" mention followed by "please try again in <N[.M]>", ceiling
// the parsed seconds to the next whole second. Returns 0, false if no hint
// is present.
func RateLimitRetryDelay(logText string) (uint64, bool) {
	lower := strings.ToLower(logText)
	if !strings.Contains(lower, "rate limit") && !strings.Contains(lower, "rate-limit") {
		return 0, false
	}
	m := rateLimitPhraseRe.FindStringSubmatch(logText)
	if m == nil {
		return 0, false
	}
	secs, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return uint64(math.Ceil(secs)), true
}
