package quiz

import (
	"fmt"
	"time"

	"anki-quiz-service/internal/domain"
)

// Snapshot is the plain serializable form of a session, written to the
// snapshot store after every mutating transition. Timestamps round-trip as
// RFC 3339 through encoding/json.
type Snapshot struct {
	ID             string                `json:"id"`
	Questions      []SessionQuestion     `json:"questions"`
	CurrentIndex   int                   `json:"currentIndex"`
	Answers        []domain.AnswerRecord `json:"answers"`
	Flags          []bool                `json:"flags"`
	Score          int                   `json:"score"`
	Started        bool                  `json:"started"`
	Completed      bool                  `json:"completed"`
	StartTime      time.Time             `json:"startTime"`
	Deadline       time.Time             `json:"deadline"`
	CompletionTime time.Time             `json:"completionTime"`
}

// Snapshot captures the session state for persistence.
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		ID:             s.id,
		Questions:      s.questions,
		CurrentIndex:   s.currentIndex,
		Answers:        s.answers,
		Flags:          s.flags,
		Score:          s.score,
		Started:        s.started,
		Completed:      s.completed,
		StartTime:      s.startTime,
		Deadline:       s.deadline,
		CompletionTime: s.completionTime,
	}
}

// Validate checks the structural invariants a well-formed snapshot must hold.
func (sn Snapshot) Validate() error {
	if sn.ID == "" {
		return fmt.Errorf("%w: missing session id", domain.ErrCorruptSnapshot)
	}
	n := len(sn.Questions)
	if len(sn.Answers) != n || len(sn.Flags) != n {
		return fmt.Errorf("%w: parallel slice lengths diverge (%d questions, %d answers, %d flags)",
			domain.ErrCorruptSnapshot, n, len(sn.Answers), len(sn.Flags))
	}
	if n > 0 && (sn.CurrentIndex < 0 || sn.CurrentIndex >= n) {
		return fmt.Errorf("%w: current index %d out of range", domain.ErrCorruptSnapshot, sn.CurrentIndex)
	}
	if sn.Started && sn.Completed {
		return fmt.Errorf("%w: both started and completed", domain.ErrCorruptSnapshot)
	}
	for i, q := range sn.Questions {
		if len(q.Question.Options) != len(q.Question.Correctness) {
			return fmt.Errorf("%w: question %d options/correctness misaligned", domain.ErrCorruptSnapshot, i)
		}
		if q.Binding != nil && (len(q.Binding.Options) != len(q.Question.Options) ||
			len(q.Binding.Correctness) != len(q.Binding.Options) ||
			len(q.Binding.OriginalIndex) != len(q.Binding.Options)) {
			return fmt.Errorf("%w: question %d binding misaligned", domain.ErrCorruptSnapshot, i)
		}
	}
	return nil
}

// Restore rebuilds a live session from a snapshot. Invalid snapshots are
// rejected with ErrCorruptSnapshot; the caller should discard and start fresh.
func Restore(sn Snapshot, now func() time.Time) (*Session, error) {
	if err := sn.Validate(); err != nil {
		return nil, err
	}
	s := NewWithClock(sn.ID, now)
	s.questions = sn.Questions
	s.currentIndex = sn.CurrentIndex
	s.answers = sn.Answers
	s.flags = sn.Flags
	s.score = sn.Score
	s.started = sn.Started
	s.completed = sn.Completed
	s.startTime = sn.StartTime
	s.deadline = sn.Deadline
	s.completionTime = sn.CompletionTime
	return s, nil
}
