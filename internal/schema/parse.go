package schema

import (
	"encoding/json"
	"os"

	"github.com/kaptinlin/jsonrepair"

	rerr "ralph/internal/errors"
)

// ParseResult reads and decodes result.json at path, applying the same
// best-effort repair pass as the task store before giving up.
func ParseResult(path string) (*Result, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &rerr.IOError{Op: "read result file " + path, Err: err}
	}

	var r Result
	if err := json.Unmarshal(raw, &r); err == nil {
		return &r, nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(string(raw))
	if repairErr != nil {
		return nil, &rerr.IOError{Op: "parse result file " + path, Err: err}
	}
	if err := json.Unmarshal([]byte(repaired), &r); err != nil {
		return nil, &rerr.IOError{Op: "parse repaired result file " + path, Err: err}
	}
	return &r, nil
}

// NonEmptyFile reports whether path exists and has non-zero size, the
// §4.7 gate for "did codex produce a usable result".
func NonEmptyFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}
