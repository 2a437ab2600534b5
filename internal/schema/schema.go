// Package schema holds the canonical result-schema template the pipeline
// auto-materializes at .ralph/task_result.schema.json on first use (§6).
package schema

import "os"

// Template is the exact draft 2020-12 schema the original ensure_schema_file
// writes, reproduced verbatim (task_id/outcome/dod_met/summary/tests/notes/
// blockers, additionalProperties:false at every object).
const Template = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "title": "TaskResult",
  "type": "object",
  "required": ["task_id", "outcome", "dod_met", "summary", "tests", "notes", "blockers"],
  "additionalProperties": false,
  "properties": {
    "task_id": { "type": "string" },
    "outcome": { "type": "string", "enum": ["completed", "blocked", "started"] },
    "dod_met": { "type": "boolean" },
    "summary": { "type": "string" },
    "tests": {
      "type": "object",
      "required": ["ran", "commands", "passed"],
      "additionalProperties": false,
      "properties": {
        "ran": { "type": "boolean" },
        "commands": { "type": "array", "items": { "type": "string" } },
        "passed": { "type": "boolean" }
      }
    },
    "notes": { "type": "string" },
    "blockers": { "type": "array", "items": { "type": "string" } }
  }
}
`

// Ensure writes Template to path if it does not already exist.
func Ensure(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, []byte(Template), 0o644)
}

// Result is the parsed shape of .../result.json, matching Template.
type Result struct {
	TaskID  string   `json:"task_id"`
	Outcome string   `json:"outcome"`
	DodMet  bool     `json:"dod_met"`
	Summary string   `json:"summary"`
	Tests   Tests    `json:"tests"`
	Notes   string   `json:"notes"`
	Blockers []string `json:"blockers"`
}

// Tests is the result.tests sub-object.
type Tests struct {
	Ran      bool     `json:"ran"`
	Commands []string `json:"commands"`
	Passed   bool     `json:"passed"`
}
