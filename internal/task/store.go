package task

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kaptinlin/jsonrepair"

	rerr "ralph/internal/errors"
)

// Load reads and parses the task list at path. Malformed JSON is given one
// best-effort repair pass (trailing commas, unbalanced quotes/braces —
// the class of damage a truncated write produces) before the original
// parse error is returned; repair never silently rewrites the file on
// disk, it only feeds the in-memory retry.
func Load(path string) (*List, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &rerr.IOError{Op: "read task list " + path, Err: err}
	}

	list, parseErr := ParseList(raw)
	if parseErr == nil {
		return list, nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(string(raw))
	if repairErr != nil {
		return nil, parseErr
	}
	if list, err := ParseList([]byte(repaired)); err == nil {
		return list, nil
	}
	return nil, parseErr
}

// Save atomically writes list back to path (write-tmp-then-rename, §3
// invariant that readers never observe a partial write).
func Save(path string, list *List) error {
	data, err := list.Marshal()
	if err != nil {
		return &rerr.IOError{Op: "marshal task list", Err: err}
	}
	return atomicWrite(path, data)
}

func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return &rerr.IOError{Op: "create temp file in " + dir, Err: err}
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return &rerr.IOError{Op: "write temp file", Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return &rerr.IOError{Op: "close temp file", Err: err}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return &rerr.IOError{Op: fmt.Sprintf("rename %s -> %s", tmpPath, path), Err: err}
	}
	return nil
}

// CountAttempts returns run_attempts for the given task id, loading and
// discarding the list (§4.1 contract). Prefer reusing an already-loaded
// List via ByID when one is in hand.
func CountAttempts(path, taskID string) (int, error) {
	list, err := Load(path)
	if err != nil {
		return 0, err
	}
	t := list.ByID(taskID)
	if t == nil {
		return 0, &rerr.ContractError{TaskID: taskID, Reason: "task not found"}
	}
	return t.RunAttempts(), nil
}

// IncrementAttempts loads, increments, and saves in one read-modify-write
// cycle, returning the new attempt count.
func IncrementAttempts(path, taskID string) (int, error) {
	list, err := Load(path)
	if err != nil {
		return 0, err
	}
	t := list.ByID(taskID)
	if t == nil {
		return 0, &rerr.ContractError{TaskID: taskID, Reason: "task not found"}
	}
	n := t.IncrementAttempts()
	if err := Save(path, list); err != nil {
		return 0, err
	}
	return n, nil
}

// ResetAttempts loads, resets, and saves the attempt counter for taskID.
func ResetAttempts(path, taskID, runID, note string) error {
	list, err := Load(path)
	if err != nil {
		return err
	}
	t := list.ByID(taskID)
	if t == nil {
		return &rerr.ContractError{TaskID: taskID, Reason: "task not found"}
	}
	t.ResetAttempts(runID, note)
	return Save(path, list)
}

// SetStatus loads, updates status + observability, and saves for taskID.
func SetStatus(path, taskID string, status Status, runID, note string) error {
	list, err := Load(path)
	if err != nil {
		return err
	}
	t := list.ByID(taskID)
	if t == nil {
		return &rerr.ContractError{TaskID: taskID, Reason: "task not found"}
	}
	t.SetStatus(status, runID, note)
	return Save(path, list)
}
