package main

import (
	"context"
	"errors"
	"fmt"
	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"linkfeed/auth"
	"linkfeed/config"
	"linkfeed/events"
	"linkfeed/feed"
	"linkfeed/handlers"
	"linkfeed/log"
	"linkfeed/posts"
	"linkfeed/storage"
	"linkfeed/storage/inmemory"
	"linkfeed/storage/mongostorage"
	"linkfeed/storage/pgstorage"
	"linkfeed/storage/rediscached"
	"linkfeed/telemetry"
	"linkfeed/users"
	"linkfeed/workers"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func Start() error {
	cfg := config.Load()
	log.Setup(cfg.Env, os.Stdout, os.Stderr)
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cfg.Mode {
	case config.ModeServer:
		return runAsServer(ctx, cfg)
	case config.ModeWorker:
		return runAsWorker(ctx, cfg)
	case config.ModeMigrate:
		return pgstorage.Migrate(ctx, cfg.PostgresURL)
	case config.ModeSeed:
		return runSeed(ctx, cfg, os.Args[1:])
	default:
		panic(fmt.Errorf("unexpected app mode: %s", cfg.Mode))
	}
}

type backends struct {
	posts storage.Storage
	users storage.UsersStorage
	close func()
}

func openBackends(ctx context.Context, cfg config.Config) (*backends, error) {
	switch cfg.StorageBackend {
	case config.BackendMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURL))
		if err != nil {
			return nil, fmt.Errorf("connect to mongo failed: %w", err)
		}
		db := client.Database(cfg.MongoDBName)
		postsStorage, err := mongostorage.NewStorageFromDatabase(ctx, db)
		if err != nil {
			return nil, err
		}
		usersStorage, err := users.NewStorageFromDatabase(ctx, db)
		if err != nil {
			return nil, err
		}
		return &backends{
			posts: postsStorage,
			users: usersStorage,
			close: func() { _ = client.Disconnect(context.Background()) },
		}, nil

	case config.BackendPostgres:
		pool, err := pgstorage.NewPool(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		return &backends{
			posts: pgstorage.NewPostsStorage(pool),
			users: pgstorage.NewUsersStorage(pool),
			close: pool.Close,
		}, nil

	default:
		log.Warn.Println("using in-memory storage, data is lost on exit")
		return &backends{
			posts: inmemory.NewInMemoryStorage(),
			users: inmemory.NewInMemoryUsersStorage(),
			close: func() {},
		}, nil
	}
}

func newCachedStorage(cfg config.Config, persistent storage.Storage) (*rediscached.CachedStorage, *redis.Client) {
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
	return rediscached.NewCachedStorage(persistent, client, cfg.CacheTTL), client
}

func runAsServer(ctx context.Context, cfg config.Config) error {
	shutdownTracer, err := telemetry.InitTracer(ctx, "linkfeed", cfg.Env, cfg.OtelEndpoint)
	if err != nil {
		log.Error.Printf("failed to init tracer: %s", err)
	} else {
		defer func() { _ = shutdownTracer(context.Background()) }()
	}

	b, err := openBackends(ctx, cfg)
	if err != nil {
		panic(err)
	}
	defer b.close()

	postsStorage := b.posts
	if cfg.RedisURL != "" {
		cached, client := newCachedStorage(cfg, b.posts)
		defer client.Close()
		scheduler, err := workers.NewScheduler(cfg.RedisURL)
		if err != nil {
			panic(err)
		}
		cached.SetScheduler(scheduler)
		postsStorage = cached
	}

	publisher, closePublisher, err := events.Connect(cfg.NatsURL)
	if err != nil {
		panic(err)
	}
	defer closePublisher()

	directory := users.NewDirectory(b.users, users.DefaultDisplayCacheSize, users.DefaultDisplayCacheTTL)
	handler := handlers.NewHTTPHandler(
		posts.NewPostsManager(postsStorage, directory, publisher),
		feed.NewFeedManager(postsStorage, directory),
		directory,
	)

	var verifier *auth.Verifier
	if cfg.JWTSecret != "" {
		verifier = auth.NewVerifier(cfg.JWTSecret)
	}
	server := &http.Server{
		Handler: handlers.NewRouter(handler, handlers.RouterOptions{
			Verifier:          verifier,
			TrustedUserHeader: cfg.TrustedUserHeader,
			CORSOrigins:       cfg.CORSOrigins,
		}),
		Addr:         fmt.Sprintf("0.0.0.0:%s", cfg.ServerPort),
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info.Printf("start serving at %s", server.Addr)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err = <-serveErr:
		return err
	case <-ctx.Done():
	}

	log.Info.Println("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err = server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err = <-serveErr; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func runAsWorker(ctx context.Context, cfg config.Config) error {
	b, err := openBackends(ctx, cfg)
	if err != nil {
		panic(err)
	}
	defer b.close()

	cached, client := newCachedStorage(cfg, b.posts)
	defer client.Close()

	scheduler, err := workers.NewScheduler(cfg.RedisURL)
	if err != nil {
		panic(err)
	}
	executor := workers.NewFeedTasksExecutor(cached, 30*time.Second)
	if err = scheduler.Register(executor); err != nil {
		panic(err)
	}

	return scheduler.Listen(cfg.WorkerConcurrency)
}

func main() {
	if err := Start(); err != nil {
		log.Error.Fatalln(err)
	}
}
