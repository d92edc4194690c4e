package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"teamquiz-service/internal/app"
	"teamquiz-service/internal/auth"
	"teamquiz-service/internal/config"
	"teamquiz-service/internal/infra/memory"
	"teamquiz-service/internal/infra/postgres"
	infraredis "teamquiz-service/internal/infra/redis"
	"teamquiz-service/internal/notify"
	transport "teamquiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the scoring server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	hub := memory.NewHub(cfg.Scoring.NotificationBufferSize)
	sinks := []notify.Publisher{hub}

	var store app.Store = memory.NewStore()
	if cfg.Postgres.URL != "" {
		db := openDB(cfg.Postgres.URL)
		defer db.Close()
		if err := migrateDB(ctx, db); err != nil {
			return err
		}
		store = postgres.NewStore(db)

		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		sinks = append(sinks, postgres.NewNotifier(pool, cfg.Postgres.NotifyChannel))
		log.Printf("using postgres store")
	} else {
		log.Printf("postgres url not configured, using in-memory store")
	}

	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		ttl := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)
		sinks = append(sinks, infraredis.NewPublisher(redisClient, cfg.Redis.ChannelPrefix, ttl))
	}

	if err := store.SeedTeams(ctx, cfg.Teams); err != nil {
		return err
	}

	authenticator := auth.NewJWTAuthenticator(cfg.Auth.JWTSecret, store)
	service := app.NewScoringService(store, notify.NewFanout(sinks...), authenticator, app.Options{
		ScoreTable:     cfg.Scoring.DefaultScoreTable,
		TotalQuestions: cfg.Scoring.DefaultTotalQuestions,
		Location:       loc,
	})
	router := transport.NewRouter(service, transport.NewWSHandler(service, hub))

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting scoring service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
