// Package tui renders live prefill progress in the terminal.
package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kelsos/design-survey/internal/batch"
	"github.com/kelsos/design-survey/internal/models"
)

// Monitor is a batch.Observer that forwards run events to a bubbletea program.
type Monitor struct {
	program *tea.Program
	cancel  context.CancelFunc
}

var _ batch.Observer = (*Monitor)(nil)

// NewMonitor creates the monitor. Quitting the UI calls cancel so the run stops between tasks.
func NewMonitor(cancel context.CancelFunc, logPath string, opts ...tea.ProgramOption) *Monitor {
	if len(opts) == 0 {
		opts = []tea.ProgramOption{tea.WithAltScreen()}
	}
	return &Monitor{
		program: tea.NewProgram(NewModel(logPath), opts...),
		cancel:  cancel,
	}
}

// Run executes work while the UI is shown and returns work's error once both have finished.
func (m *Monitor) Run(work func() error) error {
	done := make(chan error, 1)
	go func() {
		err := work()
		if err != nil {
			m.AddLog(fmt.Sprintf("❌ Fatal error: %v", err))
		}
		done <- err
		m.program.Quit()
	}()

	_, uiErr := m.program.Run()
	if m.cancel != nil {
		m.cancel()
	}

	err := <-done
	if err != nil {
		return err
	}
	if uiErr != nil {
		return fmt.Errorf("failed to run TUI: %w", uiErr)
	}
	return nil
}

func (m *Monitor) AddLog(message string) {
	m.program.Send(LogMessage{Message: message})
}

func (m *Monitor) RunStarted(total int) {
	m.program.Send(RunStarted{Total: total})
}

func (m *Monitor) TaskSkipped(id models.TaskID) {
	m.program.Send(TaskUpdate{TaskID: id, Status: StatusSkipped})
}

func (m *Monitor) TaskStarted(id models.TaskID) {
	m.program.Send(TaskUpdate{TaskID: id, Status: StatusStarted})
}

func (m *Monitor) TaskSucceeded(id models.TaskID) {
	m.program.Send(TaskUpdate{TaskID: id, Status: StatusSucceeded})
}

func (m *Monitor) TaskFailed(id models.TaskID, err error) {
	m.program.Send(TaskUpdate{TaskID: id, Status: StatusFailed, Error: err})
}

func (m *Monitor) RunFinished(summary batch.Summary) {
	m.program.Send(RunFinished{Summary: summary})
}
