package logging

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
)

var panelStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("63")).
	Padding(0, 1)

// RunSummary is the end-of-run panel rendered after a pipeline iteration.
type RunSummary struct {
	TaskID   string
	ExitCode int
	Status   string
	Note     string
}

// PrintSummary renders the run summary panel to stdout when it is a
// terminal; otherwise it falls back to a single structured log line so
// scripted output stays plain.
func PrintSummary(s RunSummary) {
	initOnce.Do(initGlobals)
	if !isTTY || noColor {
		For("driver").Info("run summary", "task_id", s.TaskID, "exit_code", s.ExitCode, "status", s.Status, "note", s.Note)
		return
	}
	body := fmt.Sprintf("task %s\nexit code: %d\nstatus: %s\n%s", s.TaskID, s.ExitCode, s.Status, s.Note)
	fmt.Fprintln(os.Stdout, panelStyle.Render(body))
}
