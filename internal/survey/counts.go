package survey

import (
	"fmt"
	"strconv"

	"github.com/kelsos/design-survey/internal/logger"
	"github.com/kelsos/design-survey/internal/storage"
)

// Counts maps a batch ID to the number of participants assigned to it.
type Counts map[int]int

// LeastAssigned returns the batch with the fewest assignments; ties go to the lowest ID.
func LeastAssigned(counts Counts) (int, bool) {
	best, found := 0, false
	for id, n := range counts {
		if !found || n < counts[best] || (n == counts[best] && id < best) {
			best, found = id, true
		}
	}
	return best, found
}

// CountStore persists Counts as a JSON object keyed by batch ID.
type CountStore struct {
	path string
}

func NewCountStore(path string) *CountStore {
	return &CountStore{path: path}
}

// Init loads the counts, creating a zeroed file for the given batches on first use.
func (s *CountStore) Init(batches []Batch) (Counts, error) {
	counts, found, err := s.load()
	if err != nil {
		return nil, err
	}
	if found {
		logger.Debug("Batch counts loaded from %s: %v", s.path, counts)
		return counts, nil
	}

	counts = make(Counts, len(batches))
	for _, batch := range batches {
		counts[batch.ID] = 0
	}
	if err := s.Save(counts); err != nil {
		return nil, err
	}

	logger.Info("Batch counts initialized in %s for %d batches", s.path, len(batches))
	return counts, nil
}

func (s *CountStore) load() (Counts, bool, error) {
	var raw map[string]int
	found, err := storage.ReadJSON(s.path, &raw)
	if err != nil || !found {
		return nil, found, err
	}

	counts := make(Counts, len(raw))
	for key, n := range raw {
		id, err := strconv.Atoi(key)
		if err != nil {
			return nil, false, fmt.Errorf("invalid batch id %q in %s", key, s.path)
		}
		counts[id] = n
	}
	return counts, true, nil
}

// Save atomically replaces the counts file.
func (s *CountStore) Save(counts Counts) error {
	raw := make(map[string]int, len(counts))
	for id, n := range counts {
		raw[strconv.Itoa(id)] = n
	}
	if err := storage.WriteJSON(s.path, raw); err != nil {
		return fmt.Errorf("failed to save batch counts: %w", err)
	}
	return nil
}
