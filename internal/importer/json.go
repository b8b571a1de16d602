package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"anki-quiz-service/internal/domain"
)

// LoadJSON reads a deck previously exported by the import command.
func LoadJSON(r io.Reader) ([]domain.RawCardRecord, error) {
	var records []domain.RawCardRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode deck json: %w", err)
	}
	return records, nil
}

// LoadJSONFile reads a JSON deck from disk.
func LoadJSONFile(path string) ([]domain.RawCardRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadJSON(f)
}

// FileDeckLoader serves decks from a directory of <deckID>.json files. It is
// the default backing store when no Postgres URL is configured.
type FileDeckLoader struct {
	dir string
}

func NewFileDeckLoader(dir string) *FileDeckLoader {
	return &FileDeckLoader{dir: dir}
}

func (l *FileDeckLoader) LoadDeck(_ context.Context, deckID string) ([]domain.RawCardRecord, error) {
	records, err := LoadJSONFile(filepath.Join(l.dir, deckID+".json"))
	if os.IsNotExist(err) {
		return nil, domain.ErrDeckNotFound
	}
	if err != nil {
		return nil, err
	}
	return records, nil
}
