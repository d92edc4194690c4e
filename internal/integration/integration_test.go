package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
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

	"teamquiz-service/internal/app"
	"teamquiz-service/internal/config"
	"teamquiz-service/internal/domain"
	"teamquiz-service/internal/infra/postgres"
	pgmigrations "teamquiz-service/internal/infra/postgres/migrations"
	infraredis "teamquiz-service/internal/infra/redis"
	"teamquiz-service/internal/notify"
)

const adminToken = "integration-admin"

type tokenAuth struct {
	store *postgres.Store
}

func (a tokenAuth) IsAdmin(_ context.Context, token string) bool {
	return token == adminToken
}

func (a tokenAuth) CurrentUser(ctx context.Context, roomID int64, token string) (domain.User, error) {
	return a.store.UserByToken(ctx, roomID, token)
}

func TestScoringEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db := migratedDB(t, ctx, pgURL)
	defer db.Close()
	store := postgres.NewStore(db)
	if err := store.SeedTeams(ctx, config.DefaultTeams()); err != nil {
		t.Fatalf("seed teams: %v", err)
	}

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	listener, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire listener: %v", err)
	}
	defer listener.Release()
	if _, err := listener.Exec(ctx, "LISTEN "+postgres.DefaultNotifyChannel); err != nil {
		t.Fatalf("listen: %v", err)
	}

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()
	redisPub := infraredis.NewPublisher(redisClient, "", time.Minute)

	publisher := notify.NewFanout(postgres.NewNotifier(pool, ""), redisPub)
	service := app.NewScoringService(store, publisher, tokenAuth{store: store}, app.Options{Location: time.UTC})

	room, err := service.CreateRoom(ctx, adminToken, app.CreateRoomRequest{Code: "INTEG"})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if _, err := service.CreateRoom(ctx, adminToken, app.CreateRoomRequest{Code: "INTEG"}); !errors.Is(err, domain.ErrRoomCodeTaken) {
		t.Fatalf("expected duplicate code conflict, got %v", err)
	}

	expected := "Tokyo"
	if _, err := service.UpdateQuestion(ctx, adminToken, "INTEG", 1, app.QuestionPatch{SetExpectedAnswer: true, ExpectedAnswer: &expected}); err != nil {
		t.Fatalf("update question: %v", err)
	}
	start := time.Now().Add(-time.Minute)
	if _, err := service.StartQuestion(ctx, adminToken, "INTEG", 1, &start); err != nil {
		t.Fatalf("start question: %v", err)
	}

	users := make([]domain.User, 0, 4)
	for i := 0; i < 4; i++ {
		u, err := service.JoinRoom(ctx, "INTEG", fmt.Sprintf("player-%d", i), int64(i%2+1))
		if err != nil {
			t.Fatalf("join: %v", err)
		}
		users = append(users, u)
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(users)*2)
	for _, u := range users {
		for j := 0; j < 2; j++ {
			wg.Add(1)
			go func(u domain.User) {
				defer wg.Done()
				_, err := service.SubmitAnswer(ctx, "INTEG", u.SessionToken, app.SubmitRequest{QuestionNumber: 1, AnswerText: " tokyo "})
				if err != nil && !errors.Is(err, domain.ErrAlreadyAnswered) {
					errs <- err
				}
			}(u)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("submit: %v", err)
	}

	number := 1
	answers, err := service.ListAnswers(ctx, adminToken, "INTEG", &number)
	if err != nil {
		t.Fatalf("list answers: %v", err)
	}
	if len(answers) != len(users) {
		t.Fatalf("expected one answer per user, got %d", len(answers))
	}

	result, err := service.FinalizeQuestion(ctx, adminToken, "INTEG", 1)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if result.RankedCount != len(users) {
		t.Fatalf("expected %d ranked answers, got %d", len(users), result.RankedCount)
	}

	answers, err = service.ListAnswers(ctx, adminToken, "INTEG", &number)
	if err != nil {
		t.Fatalf("list answers: %v", err)
	}
	total := 0
	for _, a := range answers {
		if a.Correctness != domain.Correct || a.ElapsedMS == nil {
			t.Fatalf("unexpected stored answer %+v", a)
		}
		total += a.Score
	}
	if total != 10+7+5+3 {
		t.Fatalf("expected score total 25, got %d", total)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	n, err := listener.Conn().WaitForNotification(waitCtx)
	if err != nil {
		t.Fatalf("wait for notification: %v", err)
	}
	var ev domain.Event
	if err := json.Unmarshal([]byte(n.Payload), &ev); err != nil {
		t.Fatalf("decode notification: %v", err)
	}
	if ev.RoomID != room.ID {
		t.Fatalf("unexpected notification %+v", ev)
	}

	last, ok, err := redisPub.LastEvent(ctx, room.ID)
	if err != nil || !ok || last.Type != domain.EventQuestionFinalized {
		t.Fatalf("expected finalized event in redis, got %+v ok=%v err=%v", last, ok, err)
	}

	if _, err := service.UpdateRoom(ctx, adminToken, "INTEG", app.RoomPatch{ScoreTable: []int{4, 3, 2, 1}}); err != nil {
		t.Fatalf("update room: %v", err)
	}
	if _, err := service.ReapplyScores(ctx, adminToken, "INTEG", 1); err != nil {
		t.Fatalf("reapply: %v", err)
	}
	answers, err = service.ListAnswers(ctx, adminToken, "INTEG", &number)
	if err != nil {
		t.Fatalf("list answers: %v", err)
	}
	total = 0
	for _, a := range answers {
		total += a.Score
	}
	if total != 4+3+2+1 {
		t.Fatalf("expected score total 10 under the new table, got %d", total)
	}

	if err := service.DeleteRoom(ctx, adminToken, "INTEG"); err != nil {
		t.Fatalf("delete room: %v", err)
	}
	remaining, err := store.ListAnswers(ctx, app.AnswerFilter{RoomID: room.ID})
	if err != nil {
		t.Fatalf("list after delete: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected answers to cascade, got %d", len(remaining))
	}
	if _, err := store.UserByToken(ctx, room.ID, users[0].SessionToken); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected users to cascade, got %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
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

func migratedDB(t *testing.T, ctx context.Context, dsn string) *bun.DB {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
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
