package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"anki-quiz-service/internal/config"
	"anki-quiz-service/internal/domain"
	"anki-quiz-service/internal/importer"
	"anki-quiz-service/internal/quiz"
)

// NewImportCmd converts an .apkg deck into the JSON form the service reads,
// optionally seeding it straight into Postgres under a deck id.
func NewImportCmd(configPath *string) *cobra.Command {
	var out string
	var deckID string

	cmd := &cobra.Command{
		Use:   "import <deck.apkg>",
		Short: "Convert an Anki deck package into a quiz deck",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), *configPath, args[0], out, deckID)
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "write the deck JSON to this file (default: <deck>.json)")
	cmd.Flags().StringVar(&deckID, "deck-id", "", "seed the deck into Postgres under this id")
	return cmd
}

func runImport(ctx context.Context, configPath, apkgPath, out, deckID string) error {
	var records []domain.RawCardRecord
	var err error
	if strings.EqualFold(filepath.Ext(apkgPath), ".json") {
		records, err = importer.LoadJSONFile(apkgPath)
	} else {
		records, err = importer.ConvertAPKG(apkgPath)
	}
	if err != nil {
		return err
	}

	// Reject malformed decks before they are stored anywhere.
	questions, err := quiz.NormalizeDeck(records)
	if err != nil {
		return fmt.Errorf("deck validation failed: %w", err)
	}
	log.Printf("imported %d cards (%d questions) from %s", len(records), len(questions), apkgPath)

	if deckID != "" {
		if err := seedDeck(ctx, configPath, deckID, records); err != nil {
			return err
		}
		log.Printf("deck %s seeded into postgres", deckID)
		return nil
	}

	if out == "" {
		out = strings.TrimSuffix(apkgPath, filepath.Ext(apkgPath)) + ".json"
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return err
	}
	log.Printf("deck written to %s", out)
	return nil
}

func seedDeck(ctx context.Context, configPath, deckID string, records []domain.RawCardRecord) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}

	db := openBun(cfg.Postgres.URL)
	defer db.Close()
	if err := applyMigrations(ctx, db); err != nil {
		return err
	}

	data, err := json.Marshal(records)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO decks (id, data) VALUES (?, ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`,
		deckID, string(data))
	return err
}
