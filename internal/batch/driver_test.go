package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kelsos/design-survey/internal/checkpoint"
	"github.com/kelsos/design-survey/internal/models"
	"github.com/kelsos/design-survey/internal/storage"
)

type fakeProcessor struct {
	calls  []models.TaskID
	failOn map[models.TaskID]bool
	onCall func(id models.TaskID)
}

func (f *fakeProcessor) Process(ctx context.Context, task models.Task) (*models.ModelAnswer, error) {
	f.calls = append(f.calls, task.ID)
	if f.onCall != nil {
		f.onCall(task.ID)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("interrupted: %w", err)
	}
	if f.failOn[task.ID] {
		return nil, errors.New("model unavailable")
	}
	return &models.ModelAnswer{
		BackgroundColor:   models.Suggestion{Suggestion: "white", Confidence: models.ConfidenceLow},
		OverallConfidence: models.ConfidenceLow,
	}, nil
}

type recordingObserver struct {
	NopObserver
	events []string
}

func (r *recordingObserver) RunStarted(total int) {
	r.events = append(r.events, fmt.Sprintf("start:%d", total))
}
func (r *recordingObserver) TaskSkipped(id models.TaskID) {
	r.events = append(r.events, "skip:"+id.String())
}
func (r *recordingObserver) TaskSucceeded(id models.TaskID) {
	r.events = append(r.events, "ok:"+id.String())
}
func (r *recordingObserver) TaskFailed(id models.TaskID, _ error) {
	r.events = append(r.events, "fail:"+id.String())
}
func (r *recordingObserver) RunFinished(s Summary) {
	r.events = append(r.events, fmt.Sprintf("done:%d", s.Completed))
}

type env struct {
	dir        string
	input      string
	output     string
	store      *checkpoint.FileStore
	sleeps     []time.Duration
	processor  *fakeProcessor
	observer   *recordingObserver
	trialLimit int
}

func newEnv(t *testing.T, taskCount int) *env {
	t.Helper()
	dir := t.TempDir()

	var lines []string
	for i := 1; i <= taskCount; i++ {
		lines = append(lines, fmt.Sprintf(`{"ID": %d, "user_query": "brief %d", "images": [{"urls": ["https://img/%d.png"]}], "design_choices": {}}`, i, i, i))
	}
	input := filepath.Join(dir, "data.jsonl")
	require.NoError(t, os.WriteFile(input, []byte(strings.Join(lines, "\n")+"\n"), 0o644))

	return &env{
		dir:       dir,
		input:     input,
		output:    filepath.Join(dir, "data_with_gpt.jsonl"),
		store:     checkpoint.NewFileStore(filepath.Join(dir, "checkpoint.json")),
		processor: &fakeProcessor{failOn: map[models.TaskID]bool{}},
		observer:  &recordingObserver{},
	}
}

func (e *env) driver() *Driver {
	d := NewDriver(e.processor, e.store, Options{
		InputFile:  e.input,
		OutputFile: e.output,
		TrialLimit: e.trialLimit,
		TaskDelay:  time.Second,
	}, e.observer)
	d.sleep = func(ctx context.Context, dur time.Duration) error {
		e.sleeps = append(e.sleeps, dur)
		return ctx.Err()
	}
	return d
}

func (e *env) outputIDs(t *testing.T) []models.TaskID {
	t.Helper()
	records, err := storage.ReadJSONLines[models.Task](e.output)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	require.NoError(t, err)

	var ids []models.TaskID
	for _, r := range records {
		require.NotNil(t, r.Answer, "record %s carries gpt_answer", r.ID)
		ids = append(ids, r.ID)
	}
	return ids
}

func TestRunProcessesAndCheckpointsEveryTask(t *testing.T) {
	e := newEnv(t, 4)

	summary, err := e.driver().Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Processed)
	assert.Equal(t, 4, summary.Completed)
	assert.Empty(t, summary.Failed)
	assert.Equal(t, []models.TaskID{"1", "2", "3", "4"}, e.outputIDs(t))

	cp, err := e.store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, checkpoint.Checkpoint{"1": true, "2": true, "3": true, "4": true}, cp)

	assert.Len(t, e.sleeps, 4, "throttle after every processed task")
	assert.Equal(t, time.Second, e.sleeps[0])
}

func TestRunSkipsCheckpointedTasks(t *testing.T) {
	e := newEnv(t, 5)
	require.NoError(t, e.store.Save(context.Background(), checkpoint.Checkpoint{"3": true}))

	summary, err := e.driver().Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []models.TaskID{"1", "2", "4", "5"}, e.processor.calls)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 4, summary.Processed)
	assert.Equal(t, 5, summary.Completed)
	assert.Contains(t, e.observer.events, "skip:3")
	assert.NotContains(t, e.outputIDs(t), models.TaskID("3"))
}

func TestRunLeavesFailedTasksUncheckpointed(t *testing.T) {
	e := newEnv(t, 3)
	e.processor.failOn["2"] = true

	summary, err := e.driver().Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []models.TaskID{"2"}, summary.Failed)
	assert.Equal(t, 2, summary.Completed)
	assert.Equal(t, []models.TaskID{"1", "3"}, e.outputIDs(t))
	assert.Len(t, e.sleeps, 3, "failures are throttled too")

	cp, err := e.store.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, cp.Done("2"))

	// the next run only retries the failed task
	e.processor.failOn = map[models.TaskID]bool{}
	e.processor.calls = nil
	summary, err = e.driver().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.TaskID{"2"}, e.processor.calls)
	assert.Equal(t, 3, summary.Completed)
}

func TestRunTrialModeKeepsFirstTwoBatches(t *testing.T) {
	e := newEnv(t, 50)
	e.trialLimit = 2 * 5

	summary, err := e.driver().Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 10, summary.Total)
	assert.Equal(t, 10, summary.Processed+summary.Skipped)
	assert.Len(t, e.processor.calls, 10)
	assert.Equal(t, models.TaskID("10"), e.processor.calls[9])
}

func TestRunIsIdempotent(t *testing.T) {
	e := newEnv(t, 3)

	_, err := e.driver().Run(context.Background())
	require.NoError(t, err)
	first, err := os.ReadFile(e.output)
	require.NoError(t, err)

	e.processor.calls = nil
	summary, err := e.driver().Run(context.Background())
	require.NoError(t, err)

	second, err := os.ReadFile(e.output)
	require.NoError(t, err)
	assert.Equal(t, first, second, "second run appends nothing")
	assert.Empty(t, e.processor.calls)
	assert.Equal(t, 3, summary.Skipped)
}

func TestRunStopsWhenCancelled(t *testing.T) {
	e := newEnv(t, 5)
	ctx, cancel := context.WithCancel(context.Background())
	e.processor.onCall = func(id models.TaskID) {
		if id == "2" {
			cancel()
		}
	}

	summary, err := e.driver().Run(ctx)
	require.NoError(t, err)

	assert.True(t, summary.Interrupted)
	assert.Equal(t, []models.TaskID{"1", "2"}, e.processor.calls)
	assert.Empty(t, summary.Failed, "an interrupted task is not a failure")
	assert.Equal(t, 1, summary.Completed)
}

func TestRunObserverEvents(t *testing.T) {
	e := newEnv(t, 2)
	require.NoError(t, e.store.Save(context.Background(), checkpoint.Checkpoint{"1": true}))
	e.processor.failOn["2"] = true

	_, err := e.driver().Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"start:2", "skip:1", "fail:2", "done:1"}, e.observer.events)
}

func TestRunMissingInput(t *testing.T) {
	e := newEnv(t, 0)
	e.input = filepath.Join(e.dir, "missing.jsonl")

	_, err := e.driver().Run(context.Background())
	require.Error(t, err)
}
