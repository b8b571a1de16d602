package domain

import "errors"

var (
	// ErrMalformedAnswerSpec is returned when an answer-spec field cannot be
	// parsed into a correctness vector.
	ErrMalformedAnswerSpec = errors.New("malformed answer spec")
	// ErrInvalidQuestion is returned when a card record fails normalization.
	ErrInvalidQuestion = errors.New("invalid question")
	// ErrEmptyPool is returned when a quiz is started with no questions.
	ErrEmptyPool = errors.New("question pool is empty")
	// ErrInvalidCount is returned when a quiz is started with count <= 0.
	ErrInvalidCount = errors.New("invalid question count")
	// ErrIndexOutOfRange is returned when navigating outside the session.
	ErrIndexOutOfRange = errors.New("question index out of range")
	// ErrSessionNotCompleted is returned when results are requested too early.
	ErrSessionNotCompleted = errors.New("quiz session not completed")
	// ErrSessionNotFound is returned when no snapshot exists for a session id.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrCorruptSnapshot indicates a persisted snapshot failed validation.
	ErrCorruptSnapshot = errors.New("corrupt session snapshot")
	// ErrDeckNotFound indicates the deck content could not be loaded.
	ErrDeckNotFound = errors.New("deck not found")
)
