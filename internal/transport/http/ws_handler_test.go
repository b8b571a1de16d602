package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"anki-quiz-service/internal/domain"
	"anki-quiz-service/internal/infra/memory"
	"anki-quiz-service/internal/quiz"
)

func newProgressFixture(t *testing.T) (*quiz.Service, *httptest.Server) {
	t.Helper()

	records := make([]domain.RawCardRecord, 2)
	for i := range records {
		records[i] = domain.RawCardRecord{
			"Question": fmt.Sprintf("question %d", i),
			"Answers":  "1",
			"Q_1":      "the answer",
		}
	}
	loader := memory.NewStaticDeckLoader(map[string][]domain.RawCardRecord{"geo": records})
	service := quiz.NewService(memory.NewSessionStore(), memory.NewDeckRepository(loader, time.Minute), 0)

	handler := NewProgressHandler(service)
	handler.interval = 10 * time.Millisecond

	router := mux.NewRouter()
	handler.Register(router)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return service, server
}

func dialProgress(t *testing.T, server *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/sessions/" + sessionID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) (string, json.RawMessage) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read message: %v", err)
	}
	return msg.Type, msg.Payload
}

func TestProgressStream(t *testing.T) {
	ctx := context.Background()
	service, server := newProgressFixture(t)
	view, err := service.Start(ctx, "geo", 2)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	conn := dialProgress(t, server, view.ID)

	msgType, payload := readMessage(t, conn)
	if msgType != "progress" {
		t.Fatalf("expected a progress message first, got %q", msgType)
	}
	var progress quiz.SessionView
	if err := json.Unmarshal(payload, &progress); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if progress.Total != 2 || progress.Completed {
		t.Fatalf("unexpected progress payload: %+v", progress)
	}

	if _, err := service.ForceComplete(ctx, view.ID); err != nil {
		t.Fatalf("force complete: %v", err)
	}
	for {
		msgType, payload = readMessage(t, conn)
		if msgType != "completed" {
			continue
		}
		var final quiz.SessionView
		if err := json.Unmarshal(payload, &final); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if !final.Completed {
			t.Fatalf("completed message with incomplete payload: %+v", final)
		}
		break
	}

	// The stream closes after the completed message.
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected the server to close the stream after completion")
	}
}

func TestProgressStreamUnknownSession(t *testing.T) {
	_, server := newProgressFixture(t)
	conn := dialProgress(t, server, "nope")

	msgType, _ := readMessage(t, conn)
	if msgType != "error" {
		t.Fatalf("expected an error message, got %q", msgType)
	}
}
