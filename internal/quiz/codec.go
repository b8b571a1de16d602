package quiz

import (
	"fmt"
	"strings"

	"anki-quiz-service/internal/domain"
)

// ParseCorrectness converts an answer-spec string like "0 1 0 0" into a
// correctness vector. Every whitespace-separated token must be 0 or 1.
func ParseCorrectness(spec string) ([]bool, error) {
	tokens := strings.Fields(spec)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: empty spec", domain.ErrMalformedAnswerSpec)
	}
	vector := make([]bool, len(tokens))
	for i, token := range tokens {
		switch token {
		case "0":
			vector[i] = false
		case "1":
			vector[i] = true
		default:
			return nil, fmt.Errorf("%w: token %q", domain.ErrMalformedAnswerSpec, token)
		}
	}
	return vector, nil
}

// IsCorrect scores a response against a correctness vector. A nil response is
// treated as all-false over the full vector. A shorter response is compared
// prefix-wise (trailing entries are ignored); extra true entries beyond the
// vector score the response false.
func IsCorrect(response domain.AnswerRecord, correctness []bool) bool {
	if response == nil {
		for _, correct := range correctness {
			if correct {
				return false
			}
		}
		return true
	}
	for i, selected := range response {
		if i >= len(correctness) {
			if selected {
				return false
			}
			continue
		}
		if selected != correctness[i] {
			return false
		}
	}
	return true
}
