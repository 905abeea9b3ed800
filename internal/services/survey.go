package services

import (
	"github.com/kelsos/design-survey/internal/batch"
	"github.com/kelsos/design-survey/internal/config"
	"github.com/kelsos/design-survey/internal/survey"
)

// SurveyService splits the augmented output into participant batches and assigns participants
type SurveyService struct {
	config *config.Config
}

// NewSurveyService creates a survey service
func NewSurveyService(cfg *config.Config) *SurveyService {
	return &SurveyService{config: cfg}
}

// Batches loads the augmented output file and splits it into shuffled survey batches
func (s *SurveyService) Batches() ([]survey.Batch, error) {
	tasks, err := batch.LoadTasks(s.config.OutputFile, 0)
	if err != nil {
		return nil, err
	}
	return survey.ShuffleAndBatch(tasks, s.config.SurveyBatchSize(), s.config.ShuffleSeed), nil
}

// Assign gives the participant the batch with the fewest assignments so far
func (s *SurveyService) Assign(participantID string) (*survey.Assignment, error) {
	batches, err := s.Batches()
	if err != nil {
		return nil, err
	}
	return survey.NewAssigner(batches, survey.NewCountStore(s.config.CountsFile)).Assign(participantID)
}
