package quiz

import (
	"fmt"
	"strings"

	"anki-quiz-service/internal/domain"
)

// consumedFields are mapped onto named Question fields; everything else on the
// record passes through as opaque metadata.
var consumedFields = map[string]bool{
	domain.FieldPrompt:      true,
	domain.FieldAnswerSpec:  true,
	domain.FieldExplanation: true,
	domain.FieldTags:        true,
	"Q_1":                   true,
	"Q_2":                   true,
	"Q_3":                   true,
	"Q_4":                   true,
	"Q_5":                   true,
	"Q_6":                   true,
}

// Normalize converts one raw card record into a validated Question. Options
// come from slots Q_1..Q_6 in order, skipping empty slots; the correctness
// vector is re-aligned to the surviving slots. Validation happens here, at
// import time: an invalid card never enters a session.
func Normalize(raw domain.RawCardRecord) (domain.Question, error) {
	prompt := strings.TrimSpace(raw[domain.FieldPrompt])
	if prompt == "" {
		return domain.Question{}, fmt.Errorf("%w: missing prompt", domain.ErrInvalidQuestion)
	}

	spec, ok := raw[domain.FieldAnswerSpec]
	if !ok {
		return domain.Question{}, fmt.Errorf("%w: missing answer spec", domain.ErrInvalidQuestion)
	}
	correctness, err := ParseCorrectness(spec)
	if err != nil {
		return domain.Question{}, err
	}

	var options []string
	var aligned []bool
	for slot := 1; slot <= domain.MaxOptionSlots; slot++ {
		text := strings.TrimSpace(raw[fmt.Sprintf("Q_%d", slot)])
		if text == "" {
			continue
		}
		correct := false
		if slot-1 < len(correctness) {
			correct = correctness[slot-1]
		}
		options = append(options, text)
		aligned = append(aligned, correct)
	}
	if len(options) == 0 {
		return domain.Question{}, fmt.Errorf("%w: no options", domain.ErrInvalidQuestion)
	}
	hasCorrect := false
	for _, correct := range aligned {
		if correct {
			hasCorrect = true
			break
		}
	}
	if !hasCorrect {
		return domain.Question{}, fmt.Errorf("%w: no correct option", domain.ErrInvalidQuestion)
	}

	question := domain.Question{
		Prompt:      prompt,
		Explanation: raw[domain.FieldExplanation],
		Options:     options,
		Correctness: aligned,
		Tags:        strings.Fields(raw[domain.FieldTags]),
	}
	for key, value := range raw {
		if consumedFields[key] || value == "" {
			continue
		}
		if question.Metadata == nil {
			question.Metadata = make(map[string]string)
		}
		question.Metadata[key] = value
	}
	return question, nil
}

// NormalizeDeck normalizes every record of a deck, failing on the first
// invalid card so a malformed upload is rejected as a whole.
func NormalizeDeck(records []domain.RawCardRecord) ([]domain.Question, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: deck has no cards", domain.ErrInvalidQuestion)
	}
	questions := make([]domain.Question, 0, len(records))
	for i, raw := range records {
		question, err := Normalize(raw)
		if err != nil {
			return nil, fmt.Errorf("card %d: %w", i+1, err)
		}
		questions = append(questions, question)
	}
	return questions, nil
}
