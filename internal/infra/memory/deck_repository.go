package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"anki-quiz-service/internal/domain"
	"anki-quiz-service/internal/quiz"
	"golang.org/x/sync/singleflight"
)

// DeckLoader fetches raw card records from a backing store (file, Postgres).
type DeckLoader interface {
	LoadDeck(ctx context.Context, deckID string) ([]domain.RawCardRecord, error)
}

// DeckRepository normalizes decks once and caches the question pools with TTL
// to avoid re-reading and re-validating on every session start.
type DeckRepository struct {
	loader DeckLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedDeck
}

type cachedDeck struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewDeckRepository(loader DeckLoader, ttl time.Duration) *DeckRepository {
	return &DeckRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedDeck),
	}
}

func (r *DeckRepository) GetDeck(ctx context.Context, deckID string) ([]domain.Question, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[deckID]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.questions, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(deckID, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[deckID]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.questions, nil
		}
		r.mu.RUnlock()

		records, err := r.loader.LoadDeck(ctx, deckID)
		if err != nil {
			return nil, err
		}
		questions, err := quiz.NormalizeDeck(records)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.cache[deckID] = cachedDeck{
			questions: questions,
			expiresAt: now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

// StaticDeckLoader is a loader backed by an in-memory map (tests/demos).
type StaticDeckLoader struct {
	decks map[string][]domain.RawCardRecord
}

func NewStaticDeckLoader(decks map[string][]domain.RawCardRecord) *StaticDeckLoader {
	return &StaticDeckLoader{decks: decks}
}

func (l *StaticDeckLoader) LoadDeck(_ context.Context, deckID string) ([]domain.RawCardRecord, error) {
	if records, ok := l.decks[deckID]; ok {
		return records, nil
	}
	return nil, domain.ErrDeckNotFound
}

func (r *DeckRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
