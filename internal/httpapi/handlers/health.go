package handlers

import (
	"context"
	"net/http"
	"time"

	"edurender/internal/httpkit"
)

// Health reports service liveness. With ?deep=true it also pings the
// document store and redis.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := h.log.FromContext(ctx)

	health := map[string]any{
		"status":  "ok",
		"service": "edurender-api",
		"version": "0.1.0",
	}

	if r.URL.Query().Get("deep") == "true" {
		checks := map[string]any{
			"mongo": h.checkMongo(ctx),
			"redis": h.checkRedis(ctx),
			"blob":  h.checkBlob(),
		}
		health["checks"] = checks

		for _, check := range checks {
			if m, ok := check.(map[string]any); ok && m["status"] == "error" {
				health["status"] = "degraded"
				log.Warn("health check degraded", "checks", checks)
				break
			}
		}
	}

	httpkit.WriteJSON(w, http.StatusOK, health)
}

func (h *Handler) checkMongo(ctx context.Context) map[string]any {
	if h.mongo == nil {
		return map[string]any{"status": "skipped"}
	}

	start := time.Now()
	result := map[string]any{"status": "ok"}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := h.mongo.Ping(checkCtx, nil); err != nil {
		result["status"] = "error"
		result["error"] = err.Error()
	}
	result["latency_ms"] = time.Since(start).Milliseconds()
	return result
}

func (h *Handler) checkRedis(ctx context.Context) map[string]any {
	if h.rdb == nil {
		return map[string]any{"status": "skipped"}
	}

	start := time.Now()
	result := map[string]any{"status": "ok"}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := h.rdb.Ping(checkCtx).Err(); err != nil {
		result["status"] = "error"
		result["error"] = err.Error()
	}
	result["latency_ms"] = time.Since(start).Milliseconds()
	return result
}

func (h *Handler) checkBlob() map[string]any {
	if h.blob == nil {
		return map[string]any{"status": "skipped"}
	}
	return map[string]any{
		"status": "ok",
		"bucket": h.blob.Bucket(),
	}
}
