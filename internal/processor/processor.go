// Package processor asks the model for one task's design answer, retrying failed attempts.
package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/kelsos/design-survey/internal/client"
	"github.com/kelsos/design-survey/internal/logger"
	"github.com/kelsos/design-survey/internal/models"
)

// ErrAttemptsExhausted is returned when every allowed attempt failed.
var ErrAttemptsExhausted = errors.New("all attempts failed")

// ModelClient sends one prompt to the model.
type ModelClient interface {
	Complete(ctx context.Context, prompt client.Prompt) (*client.Reply, error)
}

// Processor turns a task into a ModelAnswer with a bounded number of attempts and a fixed
// delay between them.
type Processor struct {
	client      ModelClient
	maxAttempts int
	delay       time.Duration

	// onWait is called before each inter-attempt delay.
	onWait func(taskID models.TaskID, attempt int, delay time.Duration)
}

// New creates a processor. maxAttempts below one is treated as one.
func New(modelClient ModelClient, maxAttempts int, delay time.Duration) *Processor {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Processor{
		client:      modelClient,
		maxAttempts: maxAttempts,
		delay:       delay,
	}
}

// Process returns the parsed answer, or a nil answer and an error wrapping ErrAttemptsExhausted
// once every attempt failed. Transport errors, missing choices and malformed output all count
// against the attempt budget. A cancelled context stops immediately.
func (p *Processor) Process(ctx context.Context, task models.Task) (*models.ModelAnswer, error) {
	prompt := BuildPrompt(task)

	var (
		answer  *models.ModelAnswer
		lastErr error
		attempt int
	)

	err := retry.Do(ctx, p.backoff(task.ID, &attempt), func(ctx context.Context) error {
		attempt++

		result, err := p.attempt(ctx, prompt)
		if err == nil {
			answer = result
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if attempt < p.maxAttempts {
			logger.Warn("Error on task %s (attempt %d/%d): %v", task.ID, attempt, p.maxAttempts, err)
		}
		return retry.RetryableError(err)
	})

	if err == nil {
		return answer, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("task %s interrupted: %w", task.ID, ctxErr)
	}

	logger.Error("Failed to process task %s after %d attempts: %v", task.ID, attempt, lastErr)
	return nil, fmt.Errorf("task %s: %w after %d attempts: %w", task.ID, ErrAttemptsExhausted, attempt, lastErr)
}

func (p *Processor) attempt(ctx context.Context, prompt client.Prompt) (*models.ModelAnswer, error) {
	reply, err := p.client.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	if reply.DroppedImages > 0 {
		logger.Debug("Endpoint %s answered with %d reference images dropped", reply.Endpoint, reply.DroppedImages)
	}

	content, err := reply.Content()
	if err != nil {
		return nil, err
	}

	return ParseAnswer(content)
}

// backoff waits p.delay between attempts and allows p.maxAttempts attempts in total.
func (p *Processor) backoff(taskID models.TaskID, attempt *int) retry.Backoff {
	delay := p.delay
	if delay <= 0 {
		// NewConstant rejects non-positive durations
		delay = time.Nanosecond
	}
	b := retry.WithMaxRetries(uint64(p.maxAttempts-1), retry.NewConstant(delay))

	return retry.BackoffFunc(func() (time.Duration, bool) {
		delay, stop := b.Next()
		if stop {
			return 0, true
		}

		logger.Info("Retrying task %s in %s...", taskID, delay)
		if p.onWait != nil {
			p.onWait(taskID, *attempt, delay)
		}
		return delay, false
	})
}
