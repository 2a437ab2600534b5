// Package tokencount provides a precise, tiktoken-based token estimate.
// Its only caller is the pipeline's debug log line of the prompt's token
// count; the context-pack token budget comes from configuration. It never
// substitutes for the mandated max(1000, ceil(bytes/4)) heuristic that
// governs rate-limit accounting.
package tokencount

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
	encErr  error
)

func encoding() (*tiktoken.Tiktoken, error) {
	encOnce.Do(func() {
		enc, encErr = tiktoken.GetEncoding("cl100k_base")
	})
	return enc, encErr
}

// Estimate returns the precise token count of text, falling back to a
// byte/4 heuristic if the tokenizer cannot be loaded (e.g. no network
// access to fetch its vocabulary file).
func Estimate(text string) int {
	tk, err := encoding()
	if err != nil {
		return len(text) / 4
	}
	return len(tk.Encode(text, nil, nil))
}
