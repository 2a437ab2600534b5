// Package ratelimit implements the Rate-Limit Ledger (C2): a sliding
// window request/token budget persisted as a small JSON file, matching
// the exact algorithm in the original rate_limit.rs (§4.2).
package ratelimit

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	rerr "ralph/internal/errors"
)

// Window is the sliding-window duration for both RPM and TPM accounting.
const Window = 60 * time.Second

// Settings returns the (tpm, rpm) budget for a model, matching the exact
// table in the original rate_limit_settings.
func Settings(model string) (tpm, rpm uint64) {
	switch model {
	case "gpt-5.1-codex-mini":
		return 200_000, 500
	case "gpt-5.1-codex", "gpt-5.2-codex":
		return 500_000, 500
	default:
		return 200_000, 500
	}
}

// EstimatePromptTokens returns max(1000, ceil(size/4)) for the file at
// path, or 1000 if the file is missing or empty. This is the mandated
// heuristic for sleep/record accounting; it is never replaced by the
// expansion's precise tiktoken-based estimator.
func EstimatePromptTokens(path string) uint64 {
	info, err := os.Stat(path)
	if err != nil {
		return 1000
	}
	size := info.Size()
	if size == 0 {
		return 1000
	}
	estimate := uint64(math.Ceil(float64(size) / 4.0))
	if estimate < 1000 {
		return 1000
	}
	return estimate
}

type entry struct {
	TS     float64 `json:"ts"`
	Model  string  `json:"model"`
	Tokens int64   `json:"tokens"`
}

// SleepSeconds computes the required wait before the next request of
// estimatedTokens for model, given the ledger at path (§4.2).
func SleepSeconds(path, model string, window time.Duration, tpmLimit, rpmLimit, estimatedTokens uint64) (uint64, error) {
	return sleepSecondsAt(path, model, window, tpmLimit, rpmLimit, estimatedTokens, nowEpochSeconds())
}

func sleepSecondsAt(path, model string, window time.Duration, tpmLimit, rpmLimit, estimatedTokens uint64, now float64) (uint64, error) {
	requests, err := readRequests(path)
	if err != nil {
		return 0, err
	}
	windowSecs := window.Seconds()

	var recent []entry
	for _, r := range requests {
		if r.Model == model && isRecent(r, now, windowSecs) {
			recent = append(recent, r)
		}
	}
	sort.Slice(recent, func(i, j int) bool { return recent[i].TS < recent[j].TS })

	sleepFor := 0.0

	if rpmLimit > 0 && uint64(len(recent)) >= rpmLimit {
		idx := len(recent) - int(rpmLimit)
		if idx >= 0 && idx < len(recent) {
			e := recent[idx]
			expireAt := e.TS + windowSecs
			if s := expireAt - now; s > sleepFor {
				sleepFor = s
			}
		}
	}

	if tpmLimit > 0 {
		var used int64
		for _, r := range recent {
			used += r.Tokens
		}
		limit := int64(tpmLimit)
		est := int64(estimatedTokens)
		if used+est > limit {
			over := used + est - limit
			var dropped int64
			for _, r := range recent {
				dropped += r.Tokens
				expireAt := r.TS + windowSecs
				if dropped >= over {
					if s := expireAt - now; s > sleepFor {
						sleepFor = s
					}
					break
				}
			}
		}
	}

	if sleepFor < 0 {
		sleepFor = 0
	}
	return uint64(math.Floor(sleepFor + 0.999)), nil
}

// Record appends a usage entry for model, pruning stale entries, and
// atomically rewrites the ledger (§4.2).
func Record(path, model string, window time.Duration, tokens uint64) error {
	return recordAt(path, model, window, tokens, nowEpochSeconds())
}

func recordAt(path, model string, window time.Duration, tokens uint64, now float64) error {
	payload, requests, err := readPayload(path)
	if err != nil {
		return err
	}
	windowSecs := window.Seconds()

	kept := make([]entry, 0, len(requests)+1)
	for _, r := range requests {
		if isRecent(r, now, windowSecs) {
			kept = append(kept, r)
		}
	}
	kept = append(kept, entry{TS: now, Model: model, Tokens: int64(tokens)})

	arr := make([]interface{}, 0, len(kept))
	for _, e := range kept {
		arr = append(arr, map[string]interface{}{"ts": e.TS, "model": e.Model, "tokens": e.Tokens})
	}
	if payload == nil {
		payload = map[string]interface{}{}
	}
	payload["requests"] = arr

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &rerr.IOError{Op: "create rate limit directory " + dir, Err: err}
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return &rerr.IOError{Op: "marshal rate limit ledger", Err: err}
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".rate_limit-*")
	if err != nil {
		return &rerr.IOError{Op: "create temp rate limit ledger", Err: err}
	}
	tmpPath := tmp.Name()
	_, werr := tmp.Write(data)
	if cerr := tmp.Close(); werr == nil {
		werr = cerr
	}
	if werr == nil {
		werr = os.Rename(tmpPath, path)
	}
	if werr != nil {
		os.Remove(tmpPath)
		return &rerr.IOError{Op: "write rate limit ledger " + path, Err: werr}
	}
	invalidate(path)
	return nil
}

func isRecent(e entry, now, windowSecs float64) bool {
	if math.IsInf(e.TS, 0) || math.IsNaN(e.TS) {
		return false
	}
	return now-e.TS < windowSecs
}

func nowEpochSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

func readPayload(path string) (map[string]interface{}, []entry, error) {
	if cached, ok := lookup(path); ok {
		return cloneMap(cached.payload), cached.requests, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]interface{}{"requests": []interface{}{}}, nil, nil
		}
		return map[string]interface{}{"requests": []interface{}{}}, nil, nil
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return map[string]interface{}{"requests": []interface{}{}}, nil, nil
	}

	requests := extractRequests(payload)
	store(path, payload, requests)
	return cloneMap(payload), requests, nil
}

func readRequests(path string) ([]entry, error) {
	_, requests, err := readPayload(path)
	return requests, err
}

func extractRequests(payload map[string]interface{}) []entry {
	raw, ok := payload["requests"]
	if !ok {
		return nil
	}
	arr, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	out := make([]entry, 0, len(arr))
	for _, item := range arr {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		out = append(out, entry{
			TS:     toFloat(obj["ts"]),
			Model:  toStr(obj["model"]),
			Tokens: toInt(obj["tokens"]),
		})
	}
	return out
}

func toFloat(v interface{}) float64 {
	switch x := v.(type) {
	case float64:
		return x
	default:
		return 0
	}
}

func toInt(v interface{}) int64 {
	switch x := v.(type) {
	case float64:
		return int64(x)
	default:
		return 0
	}
}

func toStr(v interface{}) string {
	s, _ := v.(string)
	return s
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// --- read memo (expansion, §4.2) ---

type cacheEntry struct {
	mtime    time.Time
	size     int64
	payload  map[string]interface{}
	requests []entry
}

var memo *lru.Cache[string, cacheEntry]

func init() {
	c, err := lru.New[string, cacheEntry](32)
	if err == nil {
		memo = c
	}
}

func lookup(path string) (cacheEntry, bool) {
	if memo == nil {
		return cacheEntry{}, false
	}
	info, err := os.Stat(path)
	if err != nil {
		return cacheEntry{}, false
	}
	cached, ok := memo.Get(path)
	if !ok {
		return cacheEntry{}, false
	}
	if cached.mtime.Equal(info.ModTime()) && cached.size == info.Size() {
		return cached, true
	}
	return cacheEntry{}, false
}

func store(path string, payload map[string]interface{}, requests []entry) {
	if memo == nil {
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	memo.Add(path, cacheEntry{mtime: info.ModTime(), size: info.Size(), payload: payload, requests: requests})
}

func invalidate(path string) {
	if memo == nil {
		return
	}
	memo.Remove(path)
}
