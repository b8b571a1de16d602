package redis_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"anki-quiz-service/internal/domain"
	infraredis "anki-quiz-service/internal/infra/redis"
	"anki-quiz-service/internal/quiz"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func sampleSnapshot(id string) quiz.Snapshot {
	started := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	return quiz.Snapshot{
		ID: id,
		Questions: []quiz.SessionQuestion{{
			Question: domain.Question{
				Prompt:      "q",
				Options:     []string{"yes", "no"},
				Correctness: []bool{true, false},
			},
		}},
		Answers:   []domain.AnswerRecord{nil},
		Flags:     []bool{false},
		Started:   true,
		StartTime: started,
		Deadline:  started.Add(2 * time.Minute),
	}
}

func TestSessionStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestClient(t)
	store := infraredis.NewSessionStore(client, time.Hour)
	snapshot := sampleSnapshot("s1")

	if err := store.Save(ctx, snapshot); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !mr.Exists("quiz:session:s1") {
		t.Fatalf("expected snapshot under the session key")
	}
	if mr.TTL("quiz:session:s1") != time.Hour {
		t.Fatalf("expected the configured ttl, got %v", mr.TTL("quiz:session:s1"))
	}

	loaded, err := store.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(snapshot, loaded) {
		t.Fatalf("round trip changed the snapshot:\n%+v\nvs\n%+v", snapshot, loaded)
	}
}

func TestSessionStoreMissingSession(t *testing.T) {
	_, client := newTestClient(t)
	store := infraredis.NewSessionStore(client, time.Hour)
	if _, err := store.Load(context.Background(), "nope"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSessionStoreClear(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestClient(t)
	store := infraredis.NewSessionStore(client, time.Hour)
	if err := store.Save(ctx, sampleSnapshot("s1")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Clear(ctx, "s1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if mr.Exists("quiz:session:s1") {
		t.Fatalf("expected the session key deleted")
	}
}

func TestSessionStoreCorruptValue(t *testing.T) {
	mr, client := newTestClient(t)
	store := infraredis.NewSessionStore(client, time.Hour)
	if err := mr.Set("quiz:session:s1", "not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := store.Load(context.Background(), "s1"); !errors.Is(err, domain.ErrCorruptSnapshot) {
		t.Fatalf("expected ErrCorruptSnapshot, got %v", err)
	}
}
