package main

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	mongoopts "go.mongodb.org/mongo-driver/mongo/options"

	"edurender/internal/blob"
	"edurender/internal/config"
	"edurender/internal/docstore"
	"edurender/internal/httpapi"
	"edurender/internal/jobs"
	"edurender/internal/pipeline"
	"edurender/internal/pkg/logger"
	"edurender/internal/pkg/shutdown"
	"edurender/internal/render"
)

func main() {
	log := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Format:      getEnv("LOG_FORMAT", "json"),
		ServiceName: "edurender-api",
		AddSource:   getEnv("LOG_SOURCE", "false") == "true",
	})

	log.Info("starting edurender API", "version", "0.1.0")

	cfg, err := config.Load()
	if err != nil {
		log.LogFatal("invalid configuration", err)
	}

	ctx := context.Background()
	shutdownMgr := shutdown.NewManager(log, 30*time.Second)

	// Connect to MongoDB
	log.Info("connecting to MongoDB")
	mongoClient, err := mongo.Connect(ctx, mongoopts.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.LogFatal("failed to connect to MongoDB", err)
	}
	shutdownMgr.Register("mongo", func(ctx context.Context) error {
		return mongoClient.Disconnect(ctx)
	})

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		cancel()
		log.LogFatal("failed to ping MongoDB", err)
	}
	cancel()
	log.Info("MongoDB connected")

	// Redis backs the rate limiter and is optional.
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		log.Info("connecting to Redis")
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		shutdownMgr.Register("redis", func(ctx context.Context) error {
			return rdb.Close()
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.LogFatal("failed to ping Redis", err)
		}
		log.Info("Redis connected")
	} else {
		log.Info("REDIS_ADDR not set, rate limiting disabled")
	}

	// Blob store
	log.Info("initializing blob store", "bucket", cfg.BlobBucket)
	uploader, err := blob.New(blob.Config{
		Endpoint:  cfg.BlobEndpoint,
		Region:    cfg.BlobRegion,
		Bucket:    cfg.BlobBucket,
		AccessKey: cfg.BlobAccessKey,
		SecretKey: cfg.BlobSecretKey,
		UseSSL:    cfg.BlobUseSSL,
	}, log)
	if err != nil {
		log.LogFatal("failed to initialize blob store", err)
	}

	// Render provider
	renderer := render.NewHTTPClient(cfg.RenderAPIURL, cfg.RenderAPIKey, log)

	// Record persistence, with the optional content-service front door.
	var content *docstore.ContentServiceClient
	if cfg.ContentServiceURL != "" {
		content = docstore.NewContentServiceClient(cfg.ContentServiceURL, log)
		log.Info("content service enabled", "url", cfg.ContentServiceURL)
	}
	persister := docstore.NewPersister(mongoClient, content, log)

	// Pipeline
	registry := jobs.NewRegistry()
	executor := pipeline.NewExecutor(4, 32, log)
	shutdownMgr.Register("executor", executor.Stop)

	orch := pipeline.New(pipeline.Deps{
		Registry: registry,
		Executor: executor,
		Renderer: renderer,
		Uploader: uploader,
		Store:    persister,
		Log:      log,
	})

	router := httpapi.NewRouter(httpapi.Deps{
		Config:   cfg,
		Pipeline: orch,
		Registry: registry,
		Mongo:    mongoClient,
		RDB:      rdb,
		Blob:     uploader,
		Log:      log,
	})

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	shutdownMgr.Register("http-server", func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		return server.Shutdown(ctx)
	})

	go func() {
		log.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogFatal("HTTP server failed", err)
		}
	}()

	shutdownMgr.Wait()
}

// getEnv gets an environment variable with a default value.
func getEnv(key, defaultValue string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue
	}
	return v
}
