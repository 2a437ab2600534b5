// Package metadata implements the Metadata Validator (C4): a structural
// check of the required task fields, matching task_metadata.rs exactly.
package metadata

import (
	"fmt"
	"strings"

	"ralph/internal/task"
)

// Error reports which required fields a task is missing or malformed.
type Error struct {
	TaskID  string
	Missing []string
}

func (e *Error) Error() string {
	return fmt.Sprintf("task %s missing required metadata: %s", e.TaskID, strings.Join(e.Missing, ", "))
}

// ExitCode is always 2 for a metadata violation (§6).
func (e *Error) ExitCode() int { return 2 }

// Validate checks title, definition_of_done, and recommended.approach.
// Returns nil when the task satisfies all three.
func Validate(t *task.Task) error {
	var missing []string

	if strings.TrimSpace(t.Title()) == "" {
		missing = append(missing, "title")
	}

	dod := t.DefinitionOfDone()
	if len(dod) == 0 {
		missing = append(missing, "definition_of_done")
	} else {
		for _, item := range dod {
			if strings.TrimSpace(item) == "" {
				missing = append(missing, "definition_of_done")
				break
			}
		}
	}

	if _, ok := t.Recommended(); !ok {
		missing = append(missing, "recommended.approach")
	} else if strings.TrimSpace(mustApproach(t)) == "" {
		missing = append(missing, "recommended.approach")
	}

	if len(missing) == 0 {
		return nil
	}
	return &Error{TaskID: t.ID(), Missing: dedupe(missing)}
}

func mustApproach(t *task.Task) string {
	r, _ := t.Recommended()
	return r.Approach
}

func dedupe(in []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
