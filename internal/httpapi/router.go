package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"edurender/internal/config"
	"edurender/internal/httpapi/handlers"
	"edurender/internal/httpkit"
	"edurender/internal/jobs"
	"edurender/internal/pkg/logger"
	"edurender/internal/pkg/middleware"
)

type Deps struct {
	Config   *config.Config
	Pipeline handlers.Pipeline
	Registry *jobs.Registry
	Mongo    *mongo.Client
	RDB      *redis.Client
	Blob     handlers.BlobInfo
	Log      *logger.Logger
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(d.Log))
	r.Use(middleware.Recovery(d.Log))
	// The bound covers the synchronous persist path, which may mirror a
	// video into the blob store before writing the record.
	r.Use(middleware.Timeout(3 * time.Minute))

	r.Use(httpkit.CORS(httpkit.CORSOptions{
		AllowedOrigins: d.Config.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAgeSeconds:  600,
	}))

	h := handlers.New(handlers.Deps{
		Pipeline: d.Pipeline,
		Registry: d.Registry,
		Mongo:    d.Mongo,
		RDB:      d.RDB,
		Blob:     d.Blob,
		Log:      d.Log,
	})

	r.Get("/health", h.Health)

	r.Route("/api/videos", func(r chi.Router) {
		// Generation is the expensive endpoint; the limiter only guards it.
		if d.RDB != nil {
			r.With(middleware.RateLimit(middleware.RateLimitConfig{
				RDB:       d.RDB,
				Limit:     d.Config.RateLimitPerMinute,
				Window:    time.Minute,
				KeyPrefix: "edurender:ratelimit",
				Log:       d.Log,
			})).Post("/generate", h.GenerateVideo)
		} else {
			r.Post("/generate", h.GenerateVideo)
		}

		r.Get("/jobs/{jobId}", h.GetJob)
		r.Post("/persist", h.PersistVideo)
	})

	return r
}
