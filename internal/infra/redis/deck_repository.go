package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"time"

	"anki-quiz-service/internal/domain"
	"anki-quiz-service/internal/infra/memory"
	"anki-quiz-service/internal/quiz"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// DeckRepository caches normalized question pools in Redis (one JSON value per
// deck) and falls back to a loader on cache miss. The cached pool is already
// validated, so cache hits skip normalization entirely.
type DeckRepository struct {
	client *redis.Client
	loader memory.DeckLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewDeckRepository(client *redis.Client, loader memory.DeckLoader, ttl time.Duration) *DeckRepository {
	return &DeckRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *DeckRepository) GetDeck(ctx context.Context, deckID string) ([]domain.Question, error) {
	key := r.key(deckID)

	if questions, ok := r.fromCache(ctx, key); ok {
		return questions, nil
	}

	result, err, _ := r.sf.Do(deckID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if questions, ok := r.fromCache(ctx, key); ok {
			return questions, nil
		}

		records, err := r.loader.LoadDeck(ctx, deckID)
		if err != nil {
			return nil, err
		}
		questions, err := quiz.NormalizeDeck(records)
		if err != nil {
			return nil, err
		}

		if data, err := json.Marshal(questions); err == nil {
			_ = r.client.Set(ctx, key, data, r.ttlWithJitter()).Err()
		}
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (r *DeckRepository) fromCache(ctx context.Context, key string) ([]domain.Question, bool) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) || err != nil {
		return nil, false
	}
	var questions []domain.Question
	if err := json.Unmarshal(data, &questions); err != nil || len(questions) == 0 {
		return nil, false
	}
	return questions, true
}

func (r *DeckRepository) key(deckID string) string {
	return "quiz:deck:" + deckID + ":questions"
}

func (r *DeckRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
