package memory

import (
	"context"
	"encoding/json"
	"sync"

	"anki-quiz-service/internal/domain"
	"anki-quiz-service/internal/quiz"
)

// SessionStore is an in-memory implementation of quiz.SnapshotStore. Snapshots
// are held as JSON bytes so saved state never aliases live session slices.
type SessionStore struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		snapshots: make(map[string][]byte),
	}
}

func (s *SessionStore) Save(_ context.Context, snapshot quiz.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snapshot.ID] = data
	return nil
}

func (s *SessionStore) Load(_ context.Context, id string) (quiz.Snapshot, error) {
	s.mu.RLock()
	data, ok := s.snapshots[id]
	s.mu.RUnlock()
	if !ok {
		return quiz.Snapshot{}, domain.ErrSessionNotFound
	}
	var snapshot quiz.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return quiz.Snapshot{}, domain.ErrCorruptSnapshot
	}
	if err := snapshot.Validate(); err != nil {
		return quiz.Snapshot{}, err
	}
	return snapshot, nil
}

func (s *SessionStore) Clear(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, id)
	return nil
}
