package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"anki-quiz-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// DeckLoader loads deck card records (JSONB) from Postgres.
type DeckLoader struct {
	pool *pgxpool.Pool
}

func NewDeckLoader(pool *pgxpool.Pool) *DeckLoader {
	return &DeckLoader{pool: pool}
}

func (l *DeckLoader) LoadDeck(ctx context.Context, deckID string) ([]domain.RawCardRecord, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM decks WHERE id=$1`, deckID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrDeckNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load deck: %w", err)
	}
	var records []domain.RawCardRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("unmarshal deck: %w", err)
	}
	return records, nil
}
