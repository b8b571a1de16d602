// Package importer reads Anki deck packages (.apkg) and JSON decks into raw
// card records for the quiz core. An .apkg is a zip container holding either a
// zstd-compressed collection.anki21b or a plain collection.anki2 SQLite
// database; cards are pulled with one relational query over notes and cards.
package importer

import (
	"archive/zip"
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"

	"anki-quiz-service/internal/domain"
)

// fieldSep separates note fields inside the flds column.
const fieldSep = "\x1f"

// ConvertAPKG extracts the collection database from an .apkg file and returns
// one raw record per active card.
func ConvertAPKG(path string) ([]domain.RawCardRecord, error) {
	extractDir, err := os.MkdirTemp("", "anki-extract-")
	if err != nil {
		return nil, fmt.Errorf("create extract dir: %w", err)
	}
	defer os.RemoveAll(extractDir)

	dbPath, err := extractCollection(path, extractDir)
	if err != nil {
		return nil, err
	}
	return readCollection(dbPath)
}

// extractCollection pulls the collection database out of the zip container,
// decompressing collection.anki21b when present and falling back to the older
// collection.anki2 format.
func extractCollection(apkgPath, extractDir string) (string, error) {
	archive, err := zip.OpenReader(apkgPath)
	if err != nil {
		return "", fmt.Errorf("open apkg: %w", err)
	}
	defer archive.Close()

	entries := make(map[string]*zip.File, len(archive.File))
	for _, f := range archive.File {
		entries[f.Name] = f
	}

	if f, ok := entries["collection.anki21b"]; ok {
		log.Printf("apkg %s: found collection.anki21b", filepath.Base(apkgPath))
		dbPath := filepath.Join(extractDir, "collection.sqlite")
		if err := decompressZstd(f, dbPath); err != nil {
			return "", err
		}
		return dbPath, nil
	}
	if f, ok := entries["collection.anki2"]; ok {
		log.Printf("apkg %s: found collection.anki2", filepath.Base(apkgPath))
		dbPath := filepath.Join(extractDir, "collection.anki2")
		if err := copyEntry(f, dbPath); err != nil {
			return "", err
		}
		return dbPath, nil
	}
	return "", fmt.Errorf("no collection database found in %s", filepath.Base(apkgPath))
}

func decompressZstd(entry *zip.File, dst string) error {
	src, err := entry.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", entry.Name, err)
	}
	defer src.Close()

	decoder, err := zstd.NewReader(src)
	if err != nil {
		return fmt.Errorf("zstd reader: %w", err)
	}
	defer decoder.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, decoder.IOReadCloser()); err != nil {
		return fmt.Errorf("decompress %s: %w", entry.Name, err)
	}
	return nil
}

func copyEntry(entry *zip.File, dst string) error {
	src, err := entry.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", entry.Name, err)
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("extract %s: %w", entry.Name, err)
	}
	return nil
}

// readCollection queries active cards joined with their notes. Newer exports
// carry a notetypes table for the model name; legacy collection.anki2 files do
// not, so the query degrades to the join without it.
func readCollection(dbPath string) ([]domain.RawCardRecord, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open collection db: %w", err)
	}
	defer db.Close()

	withModel := `
	SELECT n.id, n.flds, n.tags, c.id, c.type, c.queue, c.due, c.ivl, c.factor, c.reps, c.lapses, m.name
	FROM notes n
	JOIN cards c ON c.nid = n.id
	JOIN notetypes m ON n.mid = m.id
	WHERE c.queue != -1`
	withoutModel := `
	SELECT n.id, n.flds, n.tags, c.id, c.type, c.queue, c.due, c.ivl, c.factor, c.reps, c.lapses, '' AS name
	FROM notes n
	JOIN cards c ON c.nid = n.id
	WHERE c.queue != -1`

	rows, err := db.Query(withModel)
	if err != nil {
		rows, err = db.Query(withoutModel)
		if err != nil {
			return nil, fmt.Errorf("query cards: %w", err)
		}
	}
	defer rows.Close()

	var records []domain.RawCardRecord
	for rows.Next() {
		var (
			noteID, cardID                                  int64
			flds, tags, model                               string
			cardType, queue, due, ivl, factor, reps, lapses int64
		)
		if err := rows.Scan(&noteID, &flds, &tags, &cardID, &cardType, &queue, &due, &ivl, &factor, &reps, &lapses, &model); err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		records = append(records, recordFromRow(noteID, cardID, cardType, queue, due, ivl, factor, reps, lapses, model, tags, flds))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	log.Printf("apkg: loaded %d cards", len(records))
	return records, nil
}

// recordFromRow maps the note field list onto the record layout the normalizer
// expects: prompt, question type, six option slots, answer spec, sources,
// explanation, title.
func recordFromRow(noteID, cardID, cardType, queue, due, ivl, factor, reps, lapses int64, model, tags, flds string) domain.RawCardRecord {
	record := domain.RawCardRecord{
		"note_id":  strconv.FormatInt(noteID, 10),
		"card_id":  strconv.FormatInt(cardID, 10),
		"type":     strconv.FormatInt(cardType, 10),
		"queue":    strconv.FormatInt(queue, 10),
		"due":      strconv.FormatInt(due, 10),
		"interval": strconv.FormatInt(ivl, 10),
		"factor":   strconv.FormatInt(factor, 10),
		"reps":     strconv.FormatInt(reps, 10),
		"lapses":   strconv.FormatInt(lapses, 10),
	}
	if model != "" {
		record["model"] = model
	}
	if trimmed := strings.TrimSpace(tags); trimmed != "" {
		record[domain.FieldTags] = strings.Join(strings.Fields(trimmed), " ")
	}

	fields := strings.Split(flds, fieldSep)
	if len(fields) >= 1 {
		record[domain.FieldPrompt] = fields[0]
	}
	if len(fields) >= 2 {
		record["QType"] = fields[1]
	}
	for i := 2; i < 8 && i < len(fields); i++ {
		record[fmt.Sprintf("Q_%d", i-1)] = fields[i]
	}
	if len(fields) >= 9 {
		record[domain.FieldAnswerSpec] = fields[8]
	}
	if len(fields) >= 10 {
		record[domain.FieldSources] = fields[9]
	}
	if len(fields) >= 11 {
		record[domain.FieldExplanation] = fields[10]
	}
	if len(fields) >= 12 {
		record[domain.FieldTitle] = fields[11]
	}
	return record
}
