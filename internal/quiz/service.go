package quiz

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"anki-quiz-service/internal/domain"
)

// SnapshotStore is the persistence gateway for serialized sessions. Save runs
// synchronously after every mutating transition so a crash or reload never
// loses more than the in-flight operation.
type SnapshotStore interface {
	Save(ctx context.Context, snapshot Snapshot) error
	Load(ctx context.Context, id string) (Snapshot, error)
	Clear(ctx context.Context, id string) error
}

// DeckRepository provides normalized question pools (from cache/backing store).
type DeckRepository interface {
	GetDeck(ctx context.Context, deckID string) ([]domain.Question, error)
}

// Service exposes the quiz command surface. Every call loads the session
// snapshot, applies one state-machine transition, and persists the result;
// deadline expiry is polled on each load and force-completes the session.
type Service struct {
	store       SnapshotStore
	decks       DeckRepository
	perQuestion time.Duration
	now         func() time.Time
	newID       func() string
}

// NewService wires the command surface. perQuestion <= 0 falls back to the
// two-minute default.
func NewService(store SnapshotStore, decks DeckRepository, perQuestion time.Duration) *Service {
	return &Service{
		store:       store,
		decks:       decks,
		perQuestion: perQuestion,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// NewServiceWithClock is test-only for deterministic timestamps and ids.
func NewServiceWithClock(store SnapshotStore, decks DeckRepository, perQuestion time.Duration, now func() time.Time, newID func() string) *Service {
	s := NewService(store, decks, perQuestion)
	if now != nil {
		s.now = now
	}
	if newID != nil {
		s.newID = newID
	}
	return s
}

// SessionView is the read-only summary handed to clients.
type SessionView struct {
	ID               string    `json:"id"`
	Total            int       `json:"total"`
	CurrentIndex     int       `json:"currentIndex"`
	AnsweredCount    int       `json:"answeredCount"`
	Answered         []bool    `json:"answered"`
	Flags            []bool    `json:"flags"`
	Started          bool      `json:"started"`
	Completed        bool      `json:"completed"`
	Deadline         time.Time `json:"deadline"`
	RemainingSeconds int       `json:"remainingSeconds"`
	Clamped          bool      `json:"clamped,omitempty"`
}

// QuestionView is the current question as presented: shuffled options without
// correctness, plus the input-widget hints.
type QuestionView struct {
	Index            int                 `json:"index"`
	Total            int                 `json:"total"`
	Prompt           string              `json:"prompt"`
	Options          []string            `json:"options"`
	Kind             domain.QuestionKind `json:"kind"`
	RequiredCount    int                 `json:"requiredCount"`
	Answer           domain.AnswerRecord `json:"answer,omitempty"`
	Flagged          bool                `json:"flagged"`
	Deadline         time.Time           `json:"deadline"`
	RemainingSeconds int                 `json:"remainingSeconds"`
}

// SubmitResult reports the outcome of one answer submission. Accepted is false
// when the session had no current question to answer (already completed).
type SubmitResult struct {
	Accepted      bool `json:"accepted"`
	Correct       bool `json:"correct"`
	Completed     bool `json:"completed"`
	CurrentIndex  int  `json:"currentIndex"`
	AnsweredCount int  `json:"answeredCount"`
	Score         int  `json:"score"`
}

// Start samples count questions from the named deck and begins a new session.
func (svc *Service) Start(ctx context.Context, deckID string, count int) (SessionView, error) {
	pool, err := svc.decks.GetDeck(ctx, deckID)
	if err != nil {
		return SessionView{}, err
	}

	session := NewWithClock(svc.newID(), svc.now)
	clamped, err := session.Start(pool, count, svc.perQuestion)
	if err != nil {
		return SessionView{}, err
	}
	if clamped {
		log.Printf("deck %s: requested %d questions, clamped to pool size %d", deckID, count, session.Len())
	}
	if err := svc.save(ctx, session); err != nil {
		return SessionView{}, err
	}
	view := svc.view(session)
	view.Clamped = clamped
	return view, nil
}

// View returns the session summary without mutating anything beyond the
// opportunistic deadline check.
func (svc *Service) View(ctx context.Context, id string) (SessionView, error) {
	session, err := svc.resume(ctx, id)
	if err != nil {
		return SessionView{}, err
	}
	return svc.view(session), nil
}

// CurrentQuestion returns the question under the cursor, building its display
// binding on first visit. A completed, fully answered session has no current
// question; the second return value reports whether one exists.
func (svc *Service) CurrentQuestion(ctx context.Context, id string) (QuestionView, bool, error) {
	session, err := svc.resume(ctx, id)
	if err != nil {
		return QuestionView{}, false, err
	}
	current, ok := session.CurrentQuestion()
	if !ok {
		return QuestionView{}, false, nil
	}
	built := current.Binding == nil
	if _, err := session.EnsureBinding(session.CurrentIndex()); err != nil {
		return QuestionView{}, false, err
	}
	if built {
		if err := svc.save(ctx, session); err != nil {
			return QuestionView{}, false, err
		}
	}

	qtype := current.Question.Type()
	return QuestionView{
		Index:            session.CurrentIndex(),
		Total:            session.Len(),
		Prompt:           current.Question.Prompt,
		Options:          current.Binding.Options,
		Kind:             qtype.Kind,
		RequiredCount:    qtype.RequiredCount,
		Answer:           session.Answer(session.CurrentIndex()),
		Flagged:          session.Flagged(session.CurrentIndex()),
		Deadline:         session.Deadline(),
		RemainingSeconds: int(session.Remaining() / time.Second),
	}, true, nil
}

// Submit records an answer for the current question.
func (svc *Service) Submit(ctx context.Context, id string, response domain.AnswerRecord) (SubmitResult, error) {
	session, err := svc.resume(ctx, id)
	if err != nil {
		return SubmitResult{}, err
	}
	correct, accepted := session.Submit(response)
	if accepted {
		if err := svc.save(ctx, session); err != nil {
			return SubmitResult{}, err
		}
	}
	return SubmitResult{
		Accepted:      accepted,
		Correct:       correct,
		Completed:     session.Completed(),
		CurrentIndex:  session.CurrentIndex(),
		AnsweredCount: session.AnsweredCount(),
		Score:         session.Score(),
	}, nil
}

// Navigate moves the cursor to the given question index.
func (svc *Service) Navigate(ctx context.Context, id string, index int) (SessionView, error) {
	session, err := svc.resume(ctx, id)
	if err != nil {
		return SessionView{}, err
	}
	if err := session.Navigate(index); err != nil {
		return SessionView{}, err
	}
	if err := svc.save(ctx, session); err != nil {
		return SessionView{}, err
	}
	return svc.view(session), nil
}

// ToggleFlag flips the review marker on the current question.
func (svc *Service) ToggleFlag(ctx context.Context, id string) (SessionView, error) {
	session, err := svc.resume(ctx, id)
	if err != nil {
		return SessionView{}, err
	}
	session.ToggleFlag()
	if err := svc.save(ctx, session); err != nil {
		return SessionView{}, err
	}
	return svc.view(session), nil
}

// ForceComplete ends the session now, filling unanswered questions with
// all-false records ("submit early").
func (svc *Service) ForceComplete(ctx context.Context, id string) (SessionView, error) {
	session, err := svc.resume(ctx, id)
	if err != nil {
		return SessionView{}, err
	}
	if !session.Completed() {
		session.ForceComplete()
		if err := svc.save(ctx, session); err != nil {
			return SessionView{}, err
		}
	}
	return svc.view(session), nil
}

// Reset discards the session and its persisted snapshot.
func (svc *Service) Reset(ctx context.Context, id string) error {
	return svc.store.Clear(ctx, id)
}

// Retake starts a fresh session over the same questions, preserving their
// display bindings, and discards the old snapshot.
func (svc *Service) Retake(ctx context.Context, id string) (SessionView, error) {
	session, err := svc.resume(ctx, id)
	if err != nil {
		return SessionView{}, err
	}
	next := session.Retake(svc.newID())
	if err := svc.save(ctx, next); err != nil {
		return SessionView{}, err
	}
	if err := svc.store.Clear(ctx, id); err != nil {
		log.Printf("session %s: clearing old snapshot after retake: %v", id, err)
	}
	return svc.view(next), nil
}

// Results returns the final score and the per-question breakdown. It fails
// with ErrSessionNotCompleted while the session is still in progress.
func (svc *Service) Results(ctx context.Context, id string) (Result, []QuestionReport, error) {
	session, err := svc.resume(ctx, id)
	if err != nil {
		return Result{}, nil, err
	}
	result, err := FinalScore(session)
	if err != nil {
		return Result{}, nil, err
	}
	return result, PerQuestionReport(session), nil
}

// resume loads and revives a session, applying the deadline policy: an expired
// in-progress session is force-completed before the caller sees it. Corrupt
// snapshots are discarded so the client can start fresh.
func (svc *Service) resume(ctx context.Context, id string) (*Session, error) {
	snapshot, err := svc.store.Load(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrCorruptSnapshot) {
			log.Printf("session %s: discarding corrupt snapshot: %v", id, err)
			_ = svc.store.Clear(ctx, id)
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}
	session, err := Restore(snapshot, svc.now)
	if err != nil {
		log.Printf("session %s: discarding corrupt snapshot: %v", id, err)
		_ = svc.store.Clear(ctx, id)
		return nil, domain.ErrSessionNotFound
	}
	if session.DeadlineExpired() {
		session.ForceComplete()
		if err := svc.save(ctx, session); err != nil {
			return nil, err
		}
	}
	return session, nil
}

func (svc *Service) save(ctx context.Context, session *Session) error {
	return svc.store.Save(ctx, session.Snapshot())
}

func (svc *Service) view(session *Session) SessionView {
	answered := make([]bool, session.Len())
	flags := make([]bool, session.Len())
	for i := 0; i < session.Len(); i++ {
		answered[i] = session.IsQuestionAnswered(i)
		flags[i] = session.Flagged(i)
	}
	return SessionView{
		ID:               session.ID(),
		Total:            session.Len(),
		CurrentIndex:     session.CurrentIndex(),
		AnsweredCount:    session.AnsweredCount(),
		Answered:         answered,
		Flags:            flags,
		Started:          session.Started(),
		Completed:        session.Completed(),
		Deadline:         session.Deadline(),
		RemainingSeconds: int(session.Remaining() / time.Second),
	}
}
