// Package batch drives a prefill run over the task list with checkpointed resumption.
package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kelsos/design-survey/internal/checkpoint"
	"github.com/kelsos/design-survey/internal/logger"
	"github.com/kelsos/design-survey/internal/models"
	"github.com/kelsos/design-survey/internal/storage"
)

// TaskProcessor produces the model answer for one task.
type TaskProcessor interface {
	Process(ctx context.Context, task models.Task) (*models.ModelAnswer, error)
}

// Options configures a run.
type Options struct {
	InputFile  string
	OutputFile string
	// TrialLimit keeps only the first TrialLimit tasks when positive.
	TrialLimit int
	// TaskDelay is waited after every processed task to stay under the API rate limit.
	TaskDelay time.Duration
}

// Summary reports what a run did.
type Summary struct {
	OutputFile  string
	Total       int
	Processed   int
	Skipped     int
	Failed      []models.TaskID
	Completed   int
	Interrupted bool
}

// Driver processes tasks one at a time, persisting each success before moving on.
type Driver struct {
	processor TaskProcessor
	store     checkpoint.Store
	opts      Options
	observer  Observer
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewDriver creates a driver. observer may be nil.
func NewDriver(processor TaskProcessor, store checkpoint.Store, opts Options, observer Observer) *Driver {
	if observer == nil {
		observer = NopObserver{}
	}
	return &Driver{
		processor: processor,
		store:     store,
		opts:      opts,
		observer:  observer,
		sleep:     sleepContext,
	}
}

// LoadTasks reads the input file in order and applies the trial limit.
func LoadTasks(path string, trialLimit int) ([]models.Task, error) {
	tasks, err := storage.ReadJSONLines[models.Task](path)
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}

	if trialLimit > 0 && len(tasks) > trialLimit {
		tasks = tasks[:trialLimit]
	}
	return tasks, nil
}

// Run processes every pending task. Task failures are logged and left uncheckpointed; only
// loading and persistence errors are returned. Cancelling ctx stops the run between tasks.
func (d *Driver) Run(ctx context.Context) (*Summary, error) {
	tasks, err := LoadTasks(d.opts.InputFile, d.opts.TrialLimit)
	if err != nil {
		return nil, err
	}
	if d.opts.TrialLimit > 0 {
		logger.Info("Trial mode: Processing first %d tasks", len(tasks))
	}

	cp, err := d.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	summary := Summary{OutputFile: d.opts.OutputFile, Total: len(tasks)}
	d.observer.RunStarted(len(tasks))

	for _, task := range tasks {
		if ctx.Err() != nil {
			summary.Interrupted = true
			break
		}

		id := task.ID
		if cp.Done(id.String()) {
			logger.Info("Skipping task %s (already completed)", id)
			summary.Skipped++
			d.observer.TaskSkipped(id)
			continue
		}

		logger.Info("Processing task %s...", id)
		d.observer.TaskStarted(id)

		answer, err := d.processor.Process(ctx, task)
		if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			summary.Interrupted = true
			break
		}

		if err != nil || answer == nil {
			if err == nil {
				err = fmt.Errorf("no answer")
			}
			logger.Warn("Skipping task %s due to failure: %v", id, err)
			summary.Failed = append(summary.Failed, id)
			d.observer.TaskFailed(id, err)
		} else {
			if err := d.persist(ctx, cp, task.WithAnswer(answer)); err != nil {
				return &summary, err
			}
			summary.Processed++
			logger.Info("Successfully processed task %s", id)
			d.observer.TaskSucceeded(id)
		}

		if err := d.sleep(ctx, d.opts.TaskDelay); err != nil {
			summary.Interrupted = true
			break
		}
	}

	summary.Completed = cp.Completed()

	if summary.Interrupted {
		logger.Warn("Run interrupted, checkpoint holds %d completed tasks", summary.Completed)
	}
	if len(summary.Failed) > 0 {
		logger.Warn("%d tasks failed and will be retried on the next run: %v", len(summary.Failed), summary.Failed)
	}
	logger.Info("Processing complete. Results saved to %s", summary.OutputFile)
	logger.Info("Processed %d tasks in total", summary.Completed)

	d.observer.RunFinished(summary)
	return &summary, nil
}

// persist appends the record and then checkpoints it. A crash between the two writes can
// duplicate the record on the next run, never lose it.
func (d *Driver) persist(ctx context.Context, cp checkpoint.Checkpoint, record models.Task) error {
	if err := storage.AppendJSONLine(d.opts.OutputFile, record); err != nil {
		return fmt.Errorf("failed to save result for task %s: %w", record.ID, err)
	}

	cp.Mark(record.ID.String())
	// a finished task is recorded even when the run is being cancelled
	if err := d.store.Save(context.WithoutCancel(ctx), cp); err != nil {
		return fmt.Errorf("failed to checkpoint task %s: %w", record.ID, err)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
