// Package task implements the Task Store (C1): a generic-JSON-backed
// read-modify-write store over the declarative task list, preserving any
// unknown fields a caller-defined schema adds on top of the fields this
// engine cares about.
package task

import (
	"time"
)

// Status is the task lifecycle state (§3).
type Status string

const (
	StatusUnstarted Status = "unstarted"
	StatusStarted   Status = "started"
	StatusBlocked   Status = "blocked"
	StatusCompleted Status = "completed"
)

// Recommended is the single-key {approach: "..."} object §3/§4.4 requires.
type Recommended struct {
	Approach string
}

// Observability is the per-task mutable telemetry sub-object.
type Observability struct {
	RunAttempts   int
	LastRunID     string
	LastUpdateUTC string
	LastNote      string
}

// Task is a typed projection over a task document's known fields. The
// backing *Doc retains every field, known or not, across writes.
type Task struct {
	doc *Doc
}

// ID returns the task_id field.
func (t *Task) ID() string { return t.doc.getString("task_id") }

// Title returns the title field.
func (t *Task) Title() string { return t.doc.getString("title") }

// Model returns the model field.
func (t *Task) Model() string { return t.doc.getString("model") }

// Status returns the status field, defaulting to unstarted when absent.
func (t *Task) Status() Status {
	s := t.doc.getString("status")
	if s == "" {
		return StatusUnstarted
	}
	return Status(s)
}

// DefinitionOfDone returns the definition_of_done array as strings.
func (t *Task) DefinitionOfDone() []string {
	return t.doc.getStringArray("definition_of_done")
}

// Recommended returns the recommended.approach projection, and whether the
// field parsed as a well-formed single-key object.
func (t *Task) Recommended() (Recommended, bool) {
	raw, ok := t.doc.get("recommended")
	if !ok {
		return Recommended{}, false
	}
	obj, ok := raw.(map[string]interface{})
	if !ok || len(obj) != 1 {
		return Recommended{}, false
	}
	approach, ok := obj["approach"].(string)
	if !ok {
		return Recommended{}, false
	}
	return Recommended{Approach: approach}, true
}

// VerificationCommands returns verification.commands if present.
func (t *Task) VerificationCommands() []string {
	raw, ok := t.doc.get("verification")
	if !ok {
		return nil
	}
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return nil
	}
	arr, ok := obj["commands"].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Observability returns the observability sub-object, defaulting zero
// values when absent or malformed.
func (t *Task) Observability() Observability {
	raw, ok := t.doc.get("observability")
	if !ok {
		return Observability{}
	}
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return Observability{}
	}
	obs := Observability{}
	if n, ok := obj["run_attempts"].(float64); ok {
		obs.RunAttempts = int(n)
	}
	if s, ok := obj["last_run_id"].(string); ok {
		obs.LastRunID = s
	}
	if s, ok := obj["last_update_utc"].(string); ok {
		obs.LastUpdateUTC = s
	}
	if s, ok := obj["last_note"].(string); ok {
		obs.LastNote = s
	}
	return obs
}

// RunAttempts is a convenience accessor for Observability().RunAttempts.
func (t *Task) RunAttempts() int { return t.Observability().RunAttempts }

// Raw exposes the underlying generic document for advanced callers (e.g.
// building the assembly-task.json projection).
func (t *Task) Raw() map[string]interface{} { return t.doc.obj }

func (t *Task) ensureObservability() map[string]interface{} {
	raw, ok := t.doc.obj["observability"]
	obj, isObj := raw.(map[string]interface{})
	if !ok || !isObj {
		obj = map[string]interface{}{}
		t.doc.obj["observability"] = obj
	}
	return obj
}

// SetStatus updates status and stamps the observability block, matching
// §4.1's set_status contract.
func (t *Task) SetStatus(status Status, runID, note string) {
	t.doc.obj["status"] = string(status)
	obs := t.ensureObservability()
	obs["last_run_id"] = runID
	obs["last_update_utc"] = nowUTC()
	obs["last_note"] = note
}

// IncrementAttempts increments run_attempts and returns the new value.
func (t *Task) IncrementAttempts() int {
	obs := t.ensureObservability()
	n := 0
	if v, ok := obs["run_attempts"].(float64); ok {
		n = int(v)
	}
	n++
	obs["run_attempts"] = float64(n)
	return n
}

// ResetAttempts sets status unstarted, zeroes run_attempts, and records the
// reset, per §4.7 step 5.
func (t *Task) ResetAttempts(runID, note string) {
	t.doc.obj["status"] = string(StatusUnstarted)
	obs := t.ensureObservability()
	obs["run_attempts"] = float64(0)
	obs["last_run_id"] = runID
	obs["last_update_utc"] = nowUTC()
	obs["last_note"] = note
}

func nowUTC() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05Z")
}
