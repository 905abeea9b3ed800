// Package checkpoint persists which tasks finished so a batch run can resume.
package checkpoint

import (
	"context"
	"sort"
)

// Checkpoint maps a task ID to its completion marker.
type Checkpoint map[string]bool

// Done reports whether the task was completed in an earlier save.
func (c Checkpoint) Done(taskID string) bool {
	return c[taskID]
}

// Mark records the task as completed.
func (c Checkpoint) Mark(taskID string) {
	c[taskID] = true
}

// Completed returns the number of completed tasks.
func (c Checkpoint) Completed() int {
	n := 0
	for _, done := range c {
		if done {
			n++
		}
	}
	return n
}

// IDs returns the completed task IDs in sorted order.
func (c Checkpoint) IDs() []string {
	ids := make([]string, 0, len(c))
	for id, done := range c {
		if done {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Clone returns an independent copy.
func (c Checkpoint) Clone() Checkpoint {
	out := make(Checkpoint, len(c))
	for id, done := range c {
		out[id] = done
	}
	return out
}

// Store loads and saves checkpoints. Save always replaces the whole persisted mapping.
type Store interface {
	Load(ctx context.Context) (Checkpoint, error)
	Save(ctx context.Context, cp Checkpoint) error
	Close() error
}
