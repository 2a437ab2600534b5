package task

import (
	"encoding/json"

	rerr "ralph/internal/errors"
)

// List is the parsed task list, retaining whether the file's top-level
// envelope was a bare array or a {"tasks": [...]} object so writes
// preserve the original shape (§3).
type List struct {
	envelope map[string]interface{} // non-nil only when the object form was used
	tasks    []*Task
}

// Tasks returns the ordered tasks.
func (l *List) Tasks() []*Task { return l.tasks }

// ByID returns the task with the given id, or nil.
func (l *List) ByID(id string) *Task {
	for _, t := range l.tasks {
		if t.ID() == id {
			return t
		}
	}
	return nil
}

// FirstNonCompleted returns the first task whose status is not completed.
func (l *List) FirstNonCompleted() *Task {
	for _, t := range l.tasks {
		if t.Status() != StatusCompleted {
			return t
		}
	}
	return nil
}

// ParseList decodes raw bytes into a List, accepting either a bare array
// or an object with a "tasks" field (§3).
func ParseList(raw []byte) (*List, error) {
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, &rerr.IOError{Op: "parse task list", Err: err}
	}

	switch v := generic.(type) {
	case []interface{}:
		return &List{tasks: toTasks(v)}, nil
	case map[string]interface{}:
		tasksRaw, ok := v["tasks"]
		if !ok {
			return nil, &rerr.ContractError{Reason: "task list object missing \"tasks\" field"}
		}
		arr, ok := tasksRaw.([]interface{})
		if !ok {
			return nil, &rerr.ContractError{Reason: "\"tasks\" field is not an array"}
		}
		return &List{envelope: v, tasks: toTasks(arr)}, nil
	default:
		return nil, &rerr.ContractError{Reason: "task list is neither an array nor an object"}
	}
}

func toTasks(items []interface{}) []*Task {
	out := make([]*Task, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		out = append(out, &Task{doc: newDoc(obj)})
	}
	return out
}

// Marshal serializes the list back to pretty-printed JSON, preserving the
// original envelope shape.
func (l *List) Marshal() ([]byte, error) {
	rawTasks := make([]interface{}, 0, len(l.tasks))
	for _, t := range l.tasks {
		rawTasks = append(rawTasks, t.doc.obj)
	}

	var out interface{}
	if l.envelope != nil {
		clone := make(map[string]interface{}, len(l.envelope))
		for k, v := range l.envelope {
			clone[k] = v
		}
		clone["tasks"] = rawTasks
		out = clone
	} else {
		out = rawTasks
	}

	return json.MarshalIndent(out, "", "  ")
}
