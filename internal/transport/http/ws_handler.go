package http

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"anki-quiz-service/internal/domain"
	"anki-quiz-service/internal/quiz"
)

// ProgressHandler streams session progress over a websocket: answered count
// and remaining seconds, recomputed server-side from the absolute deadline on
// every tick. The browser countdown renders these without keeping its own
// elapsed counter, so a reconnect never drifts.
type ProgressHandler struct {
	service  *quiz.Service
	upgrader websocket.Upgrader
	interval time.Duration
}

func NewProgressHandler(service *quiz.Service) *ProgressHandler {
	return &ProgressHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		interval: time.Second,
	}
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// Register mounts the websocket route.
func (h *ProgressHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/sessions/{id}/ws", h.ServeWS).Methods(http.MethodGet)
}

// ServeWS upgrades the request and pushes progress updates until the session
// completes or the client disconnects.
func (h *ProgressHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// Reader goroutine only watches for the client going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		view, err := h.service.View(r.Context(), sessionID)
		if err != nil {
			if errors.Is(err, domain.ErrSessionNotFound) {
				_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
				return
			}
			log.Printf("ws progress for session %s: %v", sessionID, err)
			return
		}

		msgType := "progress"
		if view.Completed {
			msgType = "completed"
		}
		if err := conn.WriteJSON(outboundMessage[quiz.SessionView]{Type: msgType, Payload: view}); err != nil {
			return
		}
		if view.Completed {
			return
		}

		select {
		case <-ticker.C:
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
