// Package survey splits augmented tasks into participant batches and balances assignments.
package survey

import (
	"math/rand/v2"

	"github.com/kelsos/design-survey/internal/models"
)

// Batch is the group of tasks shown to one participant.
type Batch struct {
	ID    int
	Tasks []models.Task
}

// TaskIDs returns the batch's task IDs in presentation order.
func (b Batch) TaskIDs() []models.TaskID {
	ids := make([]models.TaskID, 0, len(b.Tasks))
	for _, task := range b.Tasks {
		ids = append(ids, task.ID)
	}
	return ids
}

// ShuffleAndBatch shuffles a copy of tasks with a fixed seed and cuts it into batches of size
// tasks. The last batch may be short. Batch IDs start at 1.
func ShuffleAndBatch(tasks []models.Task, size int, seed int64) []Batch {
	if size <= 0 || len(tasks) == 0 {
		return nil
	}

	shuffled := make([]models.Task, len(tasks))
	copy(shuffled, tasks)

	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	batches := make([]Batch, 0, (len(shuffled)+size-1)/size)
	for start := 0; start < len(shuffled); start += size {
		end := min(start+size, len(shuffled))
		batches = append(batches, Batch{
			ID:    start/size + 1,
			Tasks: shuffled[start:end],
		})
	}
	return batches
}
