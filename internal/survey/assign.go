package survey

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/kelsos/design-survey/internal/logger"
	"github.com/kelsos/design-survey/internal/models"
)

// Assignment is the batch a participant annotates in one survey session.
type Assignment struct {
	SessionID     string          `json:"session_id"`
	ParticipantID string          `json:"prolific_id"`
	BatchID       int             `json:"user_batch_unique_id"`
	TaskIDs       []models.TaskID `json:"user_batch_ids"`
}

// Assigner hands out batches so that every batch collects about the same number of participants.
type Assigner struct {
	batches []Batch
	store   *CountStore
}

func NewAssigner(batches []Batch, store *CountStore) *Assigner {
	return &Assigner{batches: batches, store: store}
}

// Assign picks the least-assigned batch for the participant and records the assignment.
func (a *Assigner) Assign(participantID string) (*Assignment, error) {
	if participantID == "" {
		return nil, fmt.Errorf("participant id cannot be empty")
	}

	counts, err := a.store.Init(a.batches)
	if err != nil {
		return nil, err
	}

	batchID, ok := LeastAssigned(counts)
	if !ok {
		return nil, fmt.Errorf("no batches available")
	}

	var batch *Batch
	for i := range a.batches {
		if a.batches[i].ID == batchID {
			batch = &a.batches[i]
			break
		}
	}
	if batch == nil {
		return nil, fmt.Errorf("no batch found with batch_id %d", batchID)
	}

	counts[batchID]++
	if err := a.store.Save(counts); err != nil {
		return nil, err
	}

	assignment := &Assignment{
		SessionID:     uuid.NewString(),
		ParticipantID: participantID,
		BatchID:       batchID,
		TaskIDs:       batch.TaskIDs(),
	}
	logger.Info("Assigned participant %s to batch %d (session %s)", participantID, batchID, assignment.SessionID)
	return assignment, nil
}
