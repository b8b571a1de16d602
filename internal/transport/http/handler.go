package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"anki-quiz-service/internal/domain"
	"anki-quiz-service/internal/quiz"
)

// Handler exposes the quiz command surface as a JSON API. It owns no quiz
// logic; every route is a thin adapter over one service call.
type Handler struct {
	service *quiz.Service
}

func NewHandler(service *quiz.Service) *Handler {
	return &Handler{service: service}
}

// Register mounts the API routes.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/api/sessions", h.startSession).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/{id}", h.sessionView).Methods(http.MethodGet)
	r.HandleFunc("/api/sessions/{id}", h.resetSession).Methods(http.MethodDelete)
	r.HandleFunc("/api/sessions/{id}/question", h.currentQuestion).Methods(http.MethodGet)
	r.HandleFunc("/api/sessions/{id}/answers", h.submitAnswer).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/{id}/navigate", h.navigate).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/{id}/flag", h.toggleFlag).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/{id}/complete", h.forceComplete).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/{id}/retake", h.retakeSession).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/{id}/results", h.results).Methods(http.MethodGet)
}

type startRequest struct {
	DeckID string `json:"deckId"`
	Count  int    `json:"count"`
}

type answerRequest struct {
	Response []bool `json:"response"`
}

type navigateRequest struct {
	Index int `json:"index"`
}

type questionResponse struct {
	Question  *quiz.QuestionView `json:"question"`
	Completed bool               `json:"completed"`
}

type resultsResponse struct {
	Result    quiz.Result           `json:"result"`
	Questions []quiz.QuestionReport `json:"questions"`
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	view, err := h.service.Start(r.Context(), req.DeckID, req.Count)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *Handler) sessionView(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.View(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) resetSession(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Reset(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) currentQuestion(w http.ResponseWriter, r *http.Request) {
	question, ok, err := h.service.CurrentQuestion(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	resp := questionResponse{Completed: !ok}
	if ok {
		resp.Question = &question
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) submitAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, err := h.service.Submit(r.Context(), mux.Vars(r)["id"], req.Response)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !result.Accepted {
		writeError(w, http.StatusConflict, "quiz session already completed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) navigate(w http.ResponseWriter, r *http.Request) {
	var req navigateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	view, err := h.service.Navigate(r.Context(), mux.Vars(r)["id"], req.Index)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) toggleFlag(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.ToggleFlag(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) forceComplete(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.ForceComplete(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) retakeSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Retake(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *Handler) results(w http.ResponseWriter, r *http.Request) {
	result, questions, err := h.service.Results(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resultsResponse{Result: result, Questions: questions})
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrDeckNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrEmptyPool),
		errors.Is(err, domain.ErrInvalidCount),
		errors.Is(err, domain.ErrIndexOutOfRange),
		errors.Is(err, domain.ErrInvalidQuestion),
		errors.Is(err, domain.ErrMalformedAnswerSpec):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrSessionNotCompleted):
		writeError(w, http.StatusConflict, err.Error())
	default:
		log.Printf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write response: %v", err)
	}
}
