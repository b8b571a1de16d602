package quiz

import (
	"fmt"
	"math/rand"
	"time"

	"anki-quiz-service/internal/domain"
)

// DefaultTimePerQuestion sets the deadline budget for each selected question.
const DefaultTimePerQuestion = 2 * time.Minute

// SessionQuestion pairs a question with its session-scoped display binding.
// The binding starts nil and is built lazily, exactly once, on first display.
type SessionQuestion struct {
	Question domain.Question        `json:"question"`
	Binding  *domain.DisplayBinding `json:"binding,omitempty"`
}

// Session is the aggregate root of one quiz run: the selected question set,
// the cursor, per-question answers and flags, the running score, and the
// lifecycle timestamps. It moves NotStarted -> InProgress -> Completed; the
// only way back is a reset (which discards the session) or a retake.
//
// A session is mutated by one user's sequential interactions, so it carries no
// lock; the service layer persists a snapshot after every mutating call.
type Session struct {
	id             string
	questions      []SessionQuestion
	currentIndex   int
	answers        []domain.AnswerRecord
	flags          []bool
	score          int
	started        bool
	completed      bool
	startTime      time.Time
	deadline       time.Time
	completionTime time.Time

	now func() time.Time
	rnd *rand.Rand
}

// New returns an empty NotStarted session.
func New(id string) *Session {
	return NewWithClock(id, time.Now)
}

// NewWithClock allows deterministic timestamps in tests.
func NewWithClock(id string, now func() time.Time) *Session {
	return &Session{
		id:  id,
		now: now,
		rnd: rand.New(rand.NewSource(now().UnixNano())),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Started reports whether the session is in progress.
func (s *Session) Started() bool { return s.started }

// Completed reports whether the session has finished.
func (s *Session) Completed() bool { return s.completed }

// Score returns the running (or, once completed, final) score.
func (s *Session) Score() int { return s.score }

// Len returns the number of questions in the session.
func (s *Session) Len() int { return len(s.questions) }

// CurrentIndex returns the cursor position.
func (s *Session) CurrentIndex() int { return s.currentIndex }

// Deadline returns the absolute wall-clock deadline.
func (s *Session) Deadline() time.Time { return s.deadline }

// StartTime returns when the session was started.
func (s *Session) StartTime() time.Time { return s.startTime }

// CompletionTime returns when the session completed (zero if it hasn't).
func (s *Session) CompletionTime() time.Time { return s.completionTime }

// Start selects count questions from the pool without replacement and
// transitions the session to InProgress. When count exceeds the pool size it
// is clamped and the returned flag is true; the caller may surface a warning.
// The session is left untouched when validation fails.
func (s *Session) Start(pool []domain.Question, count int, perQuestion time.Duration) (clamped bool, err error) {
	if len(pool) == 0 {
		return false, domain.ErrEmptyPool
	}
	if count <= 0 {
		return false, fmt.Errorf("%w: %d", domain.ErrInvalidCount, count)
	}
	if count > len(pool) {
		count = len(pool)
		clamped = true
	}
	if perQuestion <= 0 {
		perQuestion = DefaultTimePerQuestion
	}

	selected := make([]SessionQuestion, count)
	for i, poolIdx := range s.rnd.Perm(len(pool))[:count] {
		selected[i] = SessionQuestion{Question: pool[poolIdx]}
	}

	s.questions = selected
	s.currentIndex = 0
	s.answers = make([]domain.AnswerRecord, count)
	s.flags = make([]bool, count)
	s.score = 0
	s.started = true
	s.completed = false
	s.startTime = s.now()
	s.deadline = s.startTime.Add(time.Duration(count) * perQuestion)
	s.completionTime = time.Time{}
	return clamped, nil
}

// Retake starts a fresh run over the same question set, preserving each
// question's display binding so options appear in the familiar order.
func (s *Session) Retake(id string) *Session {
	next := NewWithClock(id, s.now)
	perQuestion := DefaultTimePerQuestion
	if n := len(s.questions); n > 0 && !s.deadline.IsZero() && !s.startTime.IsZero() {
		perQuestion = s.deadline.Sub(s.startTime) / time.Duration(n)
	}
	questions := make([]SessionQuestion, len(s.questions))
	copy(questions, s.questions)

	next.questions = questions
	next.answers = make([]domain.AnswerRecord, len(questions))
	next.flags = make([]bool, len(questions))
	next.started = true
	next.startTime = next.now()
	next.deadline = next.startTime.Add(time.Duration(len(questions)) * perQuestion)
	return next
}

// IsQuestionAnswered is the single answeredness predicate: the record exists
// and carries at least one selection. All-false records (as written by
// ForceComplete) count as unattempted.
func (s *Session) IsQuestionAnswered(i int) bool {
	if i < 0 || i >= len(s.answers) {
		return false
	}
	for _, selected := range s.answers[i] {
		if selected {
			return true
		}
	}
	return false
}

// AnsweredCount returns how many questions have been attempted.
func (s *Session) AnsweredCount() int {
	count := 0
	for i := range s.answers {
		if s.IsQuestionAnswered(i) {
			count++
		}
	}
	return count
}

func (s *Session) allAnswered() bool {
	return s.AnsweredCount() == len(s.questions)
}

// allRecorded reports whether every question carries an answer record at all,
// including the all-false fills ForceComplete writes. This is the read-side
// predicate; completion keeps the stricter attempted test.
func (s *Session) allRecorded() bool {
	for _, answer := range s.answers {
		if answer == nil {
			return false
		}
	}
	return true
}

// CurrentQuestion returns the question under the cursor. It reports false
// once the session has completed with every answer record present; while the
// session is in progress there is always a current question to show.
func (s *Session) CurrentQuestion() (*SessionQuestion, bool) {
	if s.completed && s.allRecorded() {
		return nil, false
	}
	if s.currentIndex < 0 || s.currentIndex >= len(s.questions) {
		return nil, false
	}
	return &s.questions[s.currentIndex], true
}

// QuestionAt returns the question at index i for read-only inspection.
func (s *Session) QuestionAt(i int) (*SessionQuestion, error) {
	if i < 0 || i >= len(s.questions) {
		return nil, fmt.Errorf("%w: %d", domain.ErrIndexOutOfRange, i)
	}
	return &s.questions[i], nil
}

// Answer returns the recorded answer for question i (nil if unattempted).
func (s *Session) Answer(i int) domain.AnswerRecord {
	if i < 0 || i >= len(s.answers) {
		return nil
	}
	return s.answers[i]
}

// Flagged reports the advisory review marker for question i.
func (s *Session) Flagged(i int) bool {
	return i >= 0 && i < len(s.flags) && s.flags[i]
}

// EnsureBinding builds the display binding for question i if this is its first
// visit. Existing bindings are never rebuilt.
func (s *Session) EnsureBinding(i int) (*domain.DisplayBinding, error) {
	q, err := s.QuestionAt(i)
	if err != nil {
		return nil, err
	}
	if q.Binding == nil {
		q.Binding = BuildBinding(q.Question, s.rnd)
	}
	return q.Binding, nil
}

// Submit records the response for the current question and rescores the
// session. It returns (correct, true) on success and (false, false) when
// there is no current question to answer.
//
// Completion requires the dual condition: every question answered AND the
// cursor sitting on the last index. Otherwise the cursor advances to the next
// unanswered question, wrapping around, and stays put if none remains.
func (s *Session) Submit(response domain.AnswerRecord) (correct bool, ok bool) {
	current, ok := s.CurrentQuestion()
	if !ok || !s.started {
		return false, false
	}
	if current.Binding == nil {
		current.Binding = BuildBinding(current.Question, s.rnd)
	}

	recorded := make(domain.AnswerRecord, len(response))
	copy(recorded, response)
	s.answers[s.currentIndex] = recorded
	correct = IsCorrect(recorded, current.Binding.Correctness)
	s.rescore()

	if s.currentIndex == len(s.questions)-1 && s.allAnswered() {
		s.complete()
		return correct, true
	}
	if next, found := s.nextUnanswered(); found {
		s.currentIndex = next
	}
	return correct, true
}

// nextUnanswered scans forward from the cursor with wraparound.
func (s *Session) nextUnanswered() (int, bool) {
	n := len(s.questions)
	for step := 1; step <= n; step++ {
		idx := (s.currentIndex + step) % n
		if !s.IsQuestionAnswered(idx) {
			return idx, true
		}
	}
	return 0, false
}

// rescore recomputes the score from the recorded answers, so revisiting a
// question can never inflate it.
func (s *Session) rescore() {
	score := 0
	for i := range s.questions {
		if !s.IsQuestionAnswered(i) {
			continue
		}
		binding := s.questions[i].Binding
		if binding == nil {
			continue
		}
		if IsCorrect(s.answers[i], binding.Correctness) {
			score++
		}
	}
	s.score = score
}

// Navigate moves the cursor and makes sure the target question has a display
// binding ready for rendering.
func (s *Session) Navigate(i int) error {
	if i < 0 || i >= len(s.questions) {
		return fmt.Errorf("%w: %d", domain.ErrIndexOutOfRange, i)
	}
	s.currentIndex = i
	_, err := s.EnsureBinding(i)
	return err
}

// ToggleFlag flips the review marker on the current question. Flags are
// advisory and never affect scoring or completion.
func (s *Session) ToggleFlag() {
	if s.currentIndex >= 0 && s.currentIndex < len(s.flags) {
		s.flags[s.currentIndex] = !s.flags[s.currentIndex]
	}
}

// ForceComplete finishes the session immediately, filling every unanswered
// slot with an all-false record sized to that question's option count. Used
// for submit-early and for deadline expiry.
func (s *Session) ForceComplete() {
	for i := range s.questions {
		if s.questions[i].Binding == nil {
			s.questions[i].Binding = BuildBinding(s.questions[i].Question, s.rnd)
		}
		if s.answers[i] == nil {
			s.answers[i] = make(domain.AnswerRecord, len(s.questions[i].Question.Options))
		}
	}
	s.rescore()
	s.complete()
}

func (s *Session) complete() {
	if s.completionTime.IsZero() {
		s.completionTime = s.now()
	}
	s.completed = true
	s.started = false
}

// DeadlineExpired reports whether the wall clock has passed the deadline.
// Callers poll this at the top of every interaction and must ForceComplete
// when it fires.
func (s *Session) DeadlineExpired() bool {
	if !s.started || s.deadline.IsZero() {
		return false
	}
	return !s.now().Before(s.deadline)
}

// Remaining returns the time left before the deadline, derived from the
// absolute deadline so a resumed session never drifts.
func (s *Session) Remaining() time.Duration {
	if s.deadline.IsZero() || s.completed {
		return 0
	}
	remaining := s.deadline.Sub(s.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}
