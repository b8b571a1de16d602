package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"anki-quiz-service/internal/domain"
	pgloader "anki-quiz-service/internal/infra/postgres"
	pgmigrations "anki-quiz-service/internal/infra/postgres/migrations"
	infraredis "anki-quiz-service/internal/infra/redis"
	"anki-quiz-service/internal/quiz"
)

func TestQuizSessionEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedDeck(t, ctx, pgURL, "geo", sampleDeck())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	loader := pgloader.NewDeckLoader(pool)
	decks := infraredis.NewDeckRepository(redisClient, loader, 5*time.Minute)
	sessionStore := infraredis.NewSessionStore(redisClient, 5*time.Minute)
	service := quiz.NewService(sessionStore, decks, 0)

	view, err := service.Start(ctx, "geo", 2)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if view.Total != 2 || view.Completed {
		t.Fatalf("unexpected start view: %+v", view)
	}

	// First question right, second wrong. The correct display-order response
	// comes from the persisted snapshot, since the API hides correctness.
	if _, err := service.Submit(ctx, view.ID, displayCorrectness(t, ctx, service, sessionStore, view.ID)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	wrong := displayCorrectness(t, ctx, service, sessionStore, view.ID)
	for i := range wrong {
		wrong[i] = !wrong[i]
	}
	result, err := service.Submit(ctx, view.ID, wrong)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !result.Completed || result.Score != 1 {
		t.Fatalf("expected a completed session scoring 1, got %+v", result)
	}

	final, reports, err := service.Results(ctx, view.ID)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if final.Score != 1 || final.Total != 2 || final.Percentage != 50 {
		t.Fatalf("unexpected final score: %+v", final)
	}
	if len(reports) != 2 || !reports[0].Correct || reports[1].Correct {
		t.Fatalf("unexpected reports: %+v", reports)
	}

	// The deck pool is cached in Redis after the first load.
	if n, err := redisClient.Exists(ctx, "quiz:deck:geo:questions").Result(); err != nil || n != 1 {
		t.Fatalf("expected the deck cached in redis, exists=%d err=%v", n, err)
	}
}

// displayCorrectness renders the current question (building its binding) and
// reads the display-order correctness vector back from the snapshot store.
func displayCorrectness(t *testing.T, ctx context.Context, service *quiz.Service, store *infraredis.SessionStore, id string) domain.AnswerRecord {
	t.Helper()
	if _, ok, err := service.CurrentQuestion(ctx, id); err != nil || !ok {
		t.Fatalf("current question: ok=%v err=%v", ok, err)
	}
	snapshot, err := store.Load(ctx, id)
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	binding := snapshot.Questions[snapshot.CurrentIndex].Binding
	if binding == nil {
		t.Fatalf("expected a binding for question %d", snapshot.CurrentIndex)
	}
	return append(domain.AnswerRecord(nil), binding.Correctness...)
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func seedDeck(t *testing.T, ctx context.Context, dsn, deckID string, records []domain.RawCardRecord) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	data, err := json.Marshal(records)
	if err != nil {
		t.Fatalf("marshal deck: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO decks (id, data) VALUES (?, ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, deckID, string(data)); err != nil {
		t.Fatalf("insert deck: %v", err)
	}
}

func sampleDeck() []domain.RawCardRecord {
	return []domain.RawCardRecord{
		{
			"Question": "What is the capital of France?",
			"Answers":  "0 1 0",
			"Q_1":      "Berlin",
			"Q_2":      "Paris",
			"Q_3":      "Madrid",
			"Extra_1":  "Paris has been the capital since 987.",
		},
		{
			"Question": "What is 2 + 2?",
			"Answers":  "0 1 0",
			"Q_1":      "3",
			"Q_2":      "4",
			"Q_3":      "5",
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
