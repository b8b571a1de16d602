package quiz

import (
	"anki-quiz-service/internal/domain"
)

// Result is the final score summary of a completed session.
type Result struct {
	Score      int     `json:"score"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// QuestionReport is the per-question breakdown used by the results view. The
// options and correctness are in display order, matching the recorded answer.
type QuestionReport struct {
	Index              int                 `json:"index"`
	Prompt             string              `json:"prompt"`
	Correct            bool                `json:"correct"`
	DisplayOptions     []string            `json:"displayOptions"`
	DisplayCorrectness []bool              `json:"displayCorrectness"`
	Answer             domain.AnswerRecord `json:"answer"`
	Explanation        string              `json:"explanation,omitempty"`
	Flagged            bool                `json:"flagged"`
}

// FinalScore summarizes a completed session. An empty session scores (0,0,0)
// rather than dividing by zero.
func FinalScore(s *Session) (Result, error) {
	if !s.Completed() {
		return Result{}, domain.ErrSessionNotCompleted
	}
	total := s.Len()
	if total == 0 {
		return Result{}, nil
	}
	return Result{
		Score:      s.Score(),
		Total:      total,
		Percentage: 100 * float64(s.Score()) / float64(total),
	}, nil
}

// PerQuestionReport builds the results breakdown. Questions missing a binding
// or an answer are skipped; a well-formed completed session has neither gap.
func PerQuestionReport(s *Session) []QuestionReport {
	reports := make([]QuestionReport, 0, s.Len())
	for i := 0; i < s.Len(); i++ {
		q, err := s.QuestionAt(i)
		if err != nil {
			continue
		}
		answer := s.Answer(i)
		if q.Binding == nil || answer == nil {
			continue
		}
		reports = append(reports, QuestionReport{
			Index:              i,
			Prompt:             q.Question.Prompt,
			Correct:            IsCorrect(answer, q.Binding.Correctness),
			DisplayOptions:     q.Binding.Options,
			DisplayCorrectness: q.Binding.Correctness,
			Answer:             answer,
			Explanation:        q.Question.Explanation,
			Flagged:            s.Flagged(i),
		})
	}
	return reports
}
