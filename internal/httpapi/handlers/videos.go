package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"edurender/internal/docstore"
	"edurender/internal/httpkit"
	"edurender/internal/jobs"
)

// GenerateVideo accepts a generation request and returns the job handle
// immediately. The pipeline runs in the background; clients poll the job
// endpoint for progress.
func (h *Handler) GenerateVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := h.log.FromContext(ctx)

	var req jobs.Request
	if err := httpkit.DecodeJSON(r, &req); err != nil {
		httpkit.WriteErr(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json body", nil)
		return
	}

	job, err := h.pipeline.Start(req)
	if err != nil {
		httpkit.WriteError(w, err)
		return
	}

	log.Info("generation job accepted", "job_id", job.ID, "subtopic", req.SubtopicName)
	httpkit.WriteJSON(w, http.StatusAccepted, map[string]any{
		"jobId":     job.ID,
		"status":    job.Status,
		"createdAt": job.CreatedAt,
	})
}

// GetJob returns the current snapshot of a generation job.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")

	job, ok := h.registry.Get(jobID)
	if !ok {
		httpkit.WriteErr(w, http.StatusNotFound, "JOB_NOT_FOUND", "job not found", map[string]any{"job_id": jobID})
		return
	}

	// Elapsed runs to the terminal timestamp once the job has one.
	end := time.Now().UTC()
	switch {
	case job.CompletedAt != nil:
		end = *job.CompletedAt
	case job.FailedAt != nil:
		end = *job.FailedAt
	}

	httpkit.WriteJSON(w, http.StatusOK, struct {
		jobs.Job
		ElapsedMs int64 `json:"elapsedMs"`
	}{job, end.Sub(job.CreatedAt).Milliseconds()})
}

type persistRequest struct {
	VideoURL    string `json:"videoUrl"`
	SubtitleURL string `json:"subtitleUrl,omitempty"`
	StoredIn    string `json:"storedIn,omitempty"`
	RecordID    string `json:"recordId"`
	Database    string `json:"database,omitempty"`
	Collection  string `json:"collection,omitempty"`
}

// PersistVideo runs the record update synchronously for videos that were
// generated elsewhere or need a retry.
func (h *Handler) PersistVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := h.log.FromContext(ctx)

	var req persistRequest
	if err := httpkit.DecodeJSON(r, &req); err != nil {
		httpkit.WriteErr(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json body", nil)
		return
	}

	result, err := h.pipeline.DirectPersist(ctx, docstore.PersistRequest{
		VideoURL:    req.VideoURL,
		SubtitleURL: req.SubtitleURL,
		StoredIn:    req.StoredIn,
		RecordID:    req.RecordID,
		Database:    req.Database,
		Collection:  req.Collection,
	})
	if err != nil {
		httpkit.WriteError(w, err)
		return
	}

	status := http.StatusOK
	if !result.Success {
		// The record was not found in any known shape. The diagnostics in
		// the body tell the operator what the collection actually holds.
		status = http.StatusNotFound
		log.Warn("persist did not match a record", "record_id", req.RecordID, "collection", result.Collection)
	}
	httpkit.WriteJSON(w, status, result)
}
