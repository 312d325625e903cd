package handlers

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"edurender/internal/docstore"
	"edurender/internal/jobs"
	"edurender/internal/pkg/logger"
)

// Pipeline is the slice of the orchestrator the HTTP layer needs.
type Pipeline interface {
	Start(req jobs.Request) (jobs.Job, error)
	DirectPersist(ctx context.Context, req docstore.PersistRequest) (docstore.PersistResult, error)
}

// BlobInfo is what the health check needs to know about the blob store.
type BlobInfo interface {
	Bucket() string
}

type Deps struct {
	Pipeline Pipeline
	Registry *jobs.Registry
	Mongo    *mongo.Client
	RDB      *redis.Client
	Blob     BlobInfo
	Log      *logger.Logger
}

type Handler struct {
	pipeline Pipeline
	registry *jobs.Registry
	mongo    *mongo.Client
	rdb      *redis.Client
	blob     BlobInfo
	log      *logger.Logger
}

func New(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	return &Handler{
		pipeline: d.Pipeline,
		registry: d.Registry,
		mongo:    d.Mongo,
		rdb:      d.RDB,
		blob:     d.Blob,
		log:      log.WithComponent("httpapi"),
	}
}
