package batch

import "github.com/kelsos/design-survey/internal/models"

// Observer receives progress events from a run. Calls happen on the driver's goroutine.
type Observer interface {
	RunStarted(total int)
	TaskSkipped(id models.TaskID)
	TaskStarted(id models.TaskID)
	TaskSucceeded(id models.TaskID)
	TaskFailed(id models.TaskID, err error)
	RunFinished(summary Summary)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) RunStarted(int)                  {}
func (NopObserver) TaskSkipped(models.TaskID)       {}
func (NopObserver) TaskStarted(models.TaskID)       {}
func (NopObserver) TaskSucceeded(models.TaskID)     {}
func (NopObserver) TaskFailed(models.TaskID, error) {}
func (NopObserver) RunFinished(Summary)             {}
