package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"anki-quiz-service/internal/domain"
)

type countingLoader struct {
	mu    sync.Mutex
	calls int
	decks map[string][]domain.RawCardRecord
}

func (l *countingLoader) LoadDeck(_ context.Context, deckID string) ([]domain.RawCardRecord, error) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	if records, ok := l.decks[deckID]; ok {
		return records, nil
	}
	return nil, domain.ErrDeckNotFound
}

func (l *countingLoader) callCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func rawCard(prompt string) domain.RawCardRecord {
	return domain.RawCardRecord{
		"Question": prompt,
		"Answers":  "1 0",
		"Q_1":      "yes",
		"Q_2":      "no",
	}
}

func TestDeckRepositoryNormalizesAndCaches(t *testing.T) {
	ctx := context.Background()
	loader := &countingLoader{decks: map[string][]domain.RawCardRecord{
		"geo": {rawCard("q1"), rawCard("q2")},
	}}
	repo := NewDeckRepository(loader, time.Minute)

	questions, err := repo.GetDeck(ctx, "geo")
	if err != nil {
		t.Fatalf("get deck: %v", err)
	}
	if len(questions) != 2 || questions[0].Prompt != "q1" {
		t.Fatalf("unexpected pool: %+v", questions)
	}

	if _, err := repo.GetDeck(ctx, "geo"); err != nil {
		t.Fatalf("get deck: %v", err)
	}
	if loader.callCount() != 1 {
		t.Fatalf("expected a cache hit on the second read, loader called %d times", loader.callCount())
	}
}

func TestDeckRepositoryReloadsAfterExpiry(t *testing.T) {
	ctx := context.Background()
	loader := &countingLoader{decks: map[string][]domain.RawCardRecord{
		"geo": {rawCard("q1")},
	}}
	repo := NewDeckRepository(loader, time.Minute)

	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	repo.clock = func() time.Time { return now }

	if _, err := repo.GetDeck(ctx, "geo"); err != nil {
		t.Fatalf("get deck: %v", err)
	}
	now = now.Add(2 * time.Minute) // past ttl even with max jitter
	if _, err := repo.GetDeck(ctx, "geo"); err != nil {
		t.Fatalf("get deck: %v", err)
	}
	if loader.callCount() != 2 {
		t.Fatalf("expected a reload after expiry, loader called %d times", loader.callCount())
	}
}

func TestDeckRepositoryUnknownDeck(t *testing.T) {
	repo := NewDeckRepository(&countingLoader{}, time.Minute)
	if _, err := repo.GetDeck(context.Background(), "missing"); !errors.Is(err, domain.ErrDeckNotFound) {
		t.Fatalf("expected ErrDeckNotFound, got %v", err)
	}
}

func TestDeckRepositoryDoesNotCacheInvalidDecks(t *testing.T) {
	ctx := context.Background()
	bad := rawCard("q1")
	bad["Answers"] = "0 0"
	loader := &countingLoader{decks: map[string][]domain.RawCardRecord{
		"geo": {bad},
	}}
	repo := NewDeckRepository(loader, time.Minute)

	if _, err := repo.GetDeck(ctx, "geo"); !errors.Is(err, domain.ErrInvalidQuestion) {
		t.Fatalf("expected ErrInvalidQuestion, got %v", err)
	}
	if _, err := repo.GetDeck(ctx, "geo"); err == nil {
		t.Fatalf("expected the failure to repeat, not a cached success")
	}
	if loader.callCount() != 2 {
		t.Fatalf("expected the loader consulted on every failed read, got %d calls", loader.callCount())
	}
}

func TestStaticDeckLoader(t *testing.T) {
	loader := NewStaticDeckLoader(map[string][]domain.RawCardRecord{
		"geo": {rawCard("q1")},
	})
	records, err := loader.LoadDeck(context.Background(), "geo")
	if err != nil || len(records) != 1 {
		t.Fatalf("unexpected load result: %v, %v", records, err)
	}
	if _, err := loader.LoadDeck(context.Background(), "nope"); !errors.Is(err, domain.ErrDeckNotFound) {
		t.Fatalf("expected ErrDeckNotFound, got %v", err)
	}
}
