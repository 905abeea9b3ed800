package checkpoint

import (
	"context"
	"fmt"

	"github.com/kelsos/design-survey/internal/logger"
	"github.com/kelsos/design-survey/internal/storage"
)

// FileStore keeps the checkpoint as a single JSON object, e.g. {"3": true}.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by the JSON file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the checkpoint file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load returns an empty checkpoint when the file does not exist yet.
func (s *FileStore) Load(_ context.Context) (Checkpoint, error) {
	cp := Checkpoint{}
	found, err := storage.ReadJSON(s.path, &cp)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if !found {
		logger.Debug("No checkpoint at %s, starting fresh", s.path)
		return Checkpoint{}, nil
	}
	if cp == nil {
		cp = Checkpoint{}
	}

	logger.Debug("Loaded checkpoint %s with %d completed tasks", s.path, cp.Completed())
	return cp, nil
}

// Save atomically overwrites the checkpoint file.
func (s *FileStore) Save(_ context.Context, cp Checkpoint) error {
	if err := storage.WriteJSON(s.path, cp); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }
