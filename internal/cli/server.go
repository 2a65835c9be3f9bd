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
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"imnci-mentorship/internal/app"
	"imnci-mentorship/internal/checklist"
	"imnci-mentorship/internal/config"
	"imnci-mentorship/internal/infra/memory"
	mongostore "imnci-mentorship/internal/infra/mongo"
	pgstore "imnci-mentorship/internal/infra/postgres"
	redisstore "imnci-mentorship/internal/infra/redis"
	transport "imnci-mentorship/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the checklist server",
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

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	engine := checklist.NewEngine(checklist.IMNCI())
	for _, w := range engine.Definition().Warnings() {
		log.Printf("checklist definition: %s", w)
	}

	store, closeStore, err := openSessionStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	var cached app.SessionStore
	var editors app.EditorRepository
	if redisClient != nil {
		cached = redisstore.NewSessionCache(redisClient, store, config.TTLDuration(cfg.Redis.TTL, 10*time.Minute))
		editors = redisstore.NewEditorStore(redisClient, config.TTLDuration(cfg.Redis.LockTTL, 2*time.Minute))
	} else {
		cached = memory.NewSessionCache(store, config.TTLDuration(cfg.Cache.TTL, 5*time.Minute))
		editors = memory.NewEditorStore()
	}

	service := app.NewChecklistService(engine, editors, cached)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      transport.NewRouter(service),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting checklist service on :%s", finalPort)
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

// openSessionStore picks the durable store: Postgres when configured, then Mongo, then memory.
func openSessionStore(ctx context.Context, cfg config.Config) (app.SessionStore, func(), error) {
	switch {
	case cfg.Postgres.URL != "":
		if err := runMigrations(ctx, cfg.Postgres.URL); err != nil {
			return nil, nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("sessions persisted in postgres")
		return pgstore.NewSessionStore(pool), pool.Close, nil

	case cfg.Mongo.URI != "":
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			return nil, nil, err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx, nil); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, err
		}
		log.Printf("sessions persisted in mongo database %s", cfg.Mongo.Database)
		disconnect := func() {
			if err := client.Disconnect(context.Background()); err != nil {
				log.Printf("mongo disconnect: %v", err)
			}
		}
		return mongostore.NewSessionStore(client, cfg.Mongo.Database), disconnect, nil

	default:
		log.Printf("no durable store configured; sessions are kept in memory")
		return memory.NewSessionStore(), func() {}, nil
	}
}
