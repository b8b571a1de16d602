package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"anki-quiz-service/internal/domain"
	"anki-quiz-service/internal/quiz"
	"github.com/redis/go-redis/v9"
)

// SessionStore keeps session snapshots in Redis as JSON values with a TTL, so
// a quiz survives process restarts and abandoned sessions age out on their own.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) Save(ctx context.Context, snapshot quiz.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(snapshot.ID), data, s.ttl).Err()
}

func (s *SessionStore) Load(ctx context.Context, id string) (quiz.Snapshot, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return quiz.Snapshot{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return quiz.Snapshot{}, err
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

func (s *SessionStore) Clear(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.key(id)).Err()
}

func (s *SessionStore) key(id string) string {
	return "quiz:session:" + id
}
