// Package pipeline orchestrates video generation jobs from script assembly
// through render, upload, subtitle synthesis, and record persistence.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"edurender/internal/docstore"
	"edurender/internal/jobs"
	"edurender/internal/pkg/errors"
	"edurender/internal/pkg/logger"
	"edurender/internal/render"
	"edurender/internal/subtitle"
)

// questionPauseSeconds is the thinking pause inserted after each question
// before its answer is read out.
const questionPauseSeconds = 5

// RenderClient produces a finished video for a script.
type RenderClient interface {
	RenderAndWait(ctx context.Context, script, presenterID string) (string, error)
}

// Uploader copies render output and subtitle text into the object store and
// returns public URLs.
type Uploader interface {
	UploadVideo(ctx context.Context, remoteURL, filename string) (string, error)
	UploadText(ctx context.Context, content, filename string) (string, error)
}

// Persister writes final asset URLs onto the lesson record.
type Persister interface {
	Persist(ctx context.Context, req docstore.PersistRequest) docstore.PersistResult
}

type Deps struct {
	Registry *jobs.Registry
	Executor *Executor
	Renderer RenderClient
	Uploader Uploader
	Store    Persister
	Log      *logger.Logger
}

// Orchestrator drives a generation job through its stages and records each
// transition in the job registry.
type Orchestrator struct {
	registry *jobs.Registry
	executor *Executor
	renderer RenderClient
	uploader Uploader
	store    Persister
	log      *logger.Logger
	now      func() time.Time
}

func New(d Deps) *Orchestrator {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	return &Orchestrator{
		registry: d.Registry,
		executor: d.Executor,
		renderer: d.Renderer,
		uploader: d.Uploader,
		store:    d.Store,
		log:      log.WithComponent("pipeline"),
		now:      time.Now,
	}
}

// Start validates the request, registers a job, and schedules the pipeline
// run. It returns the job snapshot immediately; progress is observed through
// the registry.
func (o *Orchestrator) Start(req jobs.Request) (jobs.Job, error) {
	if strings.TrimSpace(req.SubtopicName) == "" {
		return jobs.Job{}, errors.ValidationField("subtopicName", "required")
	}
	if strings.TrimSpace(req.Description) == "" {
		return jobs.Job{}, errors.ValidationField("description", "required")
	}
	if req.PresenterID == "" {
		req.PresenterID = render.DefaultPresenterID
	}

	job := o.registry.Create(req)
	o.log.Info("job accepted",
		"job_id", job.ID,
		"subtopic", req.SubtopicName,
		"record_id", req.RecordID,
	)

	o.executor.Submit(func(ctx context.Context) {
		o.run(ctx, job)
	})
	return job, nil
}

// run executes a single job. Only a render failure fails the job; upload,
// subtitle, and persistence problems degrade the result instead.
func (o *Orchestrator) run(ctx context.Context, job jobs.Job) {
	log := o.log.FromContext(ctx).WithJobID(job.ID)

	script := BuildScript(job.Request)
	o.setProgress(&job, "rendering")

	// 1. Render. The one stage whose failure fails the job.
	providerURL, err := o.renderer.RenderAndWait(ctx, script, job.Request.PresenterID)
	if err != nil {
		o.failJob(&job, log, err)
		return
	}
	log.Debug("render completed", "provider_url", providerURL)

	result := jobs.Result{
		VideoURL: providerURL,
		StoredIn: docstore.StoredProviderNative,
	}

	// 2. Copy the video into our object store. On failure the provider URL
	// stands in, but the record write is reported as not applied.
	o.setProgress(&job, "uploading")
	uploadFailed := false
	storedURL, err := o.uploader.UploadVideo(ctx, providerURL, videoFilename(job))
	if err != nil {
		uploadFailed = true
		log.Warn("video upload failed, falling back to provider url", "error", err.Error())
	} else {
		result.VideoURL = storedURL
		result.StoredIn = docstore.StoredRemote
	}

	// 3. Subtitles. Best effort.
	o.setProgress(&job, "subtitles")
	track := subtitle.Synthesize(script, subtitle.DefaultWPM)
	if len(track) > 0 {
		subURL, err := o.uploader.UploadText(ctx, track.Render(), subtitleFilename(job))
		if err != nil {
			log.Warn("subtitle upload failed, continuing without subtitles", "error", err.Error())
		} else {
			result.SubtitleURL = subURL
			result.HasSubtitles = true
		}
	}

	// 4. Persist onto the lesson record when one was named.
	if job.Request.RecordID != "" {
		o.setProgress(&job, "persisting")
		pr := o.store.Persist(ctx, docstore.PersistRequest{
			VideoURL:    result.VideoURL,
			SubtitleURL: result.SubtitleURL,
			StoredIn:    result.StoredIn,
			RecordID:    job.Request.RecordID,
			Database:    job.Request.Database,
			Collection:  job.Request.Collection,
		})
		result.PersistMethod = pr.Method
		result.DatabaseUpdated = pr.Success && !uploadFailed
		if !pr.Success {
			log.Warn("record not updated", "method", pr.Method, "record_id", job.Request.RecordID)
		}
	}

	done := o.now().UTC()
	job.Status = jobs.StatusCompleted
	job.Progress = ""
	job.CompletedAt = &done
	job.Result = &result
	o.registry.Put(job)

	log.Info("job completed",
		"video_url", result.VideoURL,
		"stored_in", result.StoredIn,
		"db_updated", result.DatabaseUpdated,
		"subtitles", result.HasSubtitles,
	)
}

// DirectPersist runs the record update synchronously, outside any job. When
// the caller has not said where the video lives, it is first mirrored into
// our object store; a failed mirror falls back to the given URL, same as the
// pipeline.
func (o *Orchestrator) DirectPersist(ctx context.Context, req docstore.PersistRequest) (docstore.PersistResult, error) {
	if strings.TrimSpace(req.RecordID) == "" {
		return docstore.PersistResult{}, errors.ValidationField("recordId", "required")
	}
	if strings.TrimSpace(req.VideoURL) == "" {
		return docstore.PersistResult{}, errors.ValidationField("videoUrl", "required")
	}

	if req.StoredIn == "" {
		log := o.log.FromContext(ctx)
		filename := fmt.Sprintf("%s.mp4", slugify(req.RecordID))
		storedURL, err := o.uploader.UploadVideo(ctx, req.VideoURL, filename)
		if err != nil {
			log.Warn("mirror upload failed, persisting source url", "error", err.Error())
			req.StoredIn = docstore.StoredProviderNative
		} else {
			req.VideoURL = storedURL
			req.StoredIn = docstore.StoredRemote
		}
	}

	return o.store.Persist(ctx, req), nil
}

func (o *Orchestrator) setProgress(job *jobs.Job, stage string) {
	job.Progress = stage
	o.registry.Put(*job)
}

func (o *Orchestrator) failJob(job *jobs.Job, log *logger.Logger, cause error) {
	msg := cause.Error()
	if len(msg) > 2000 {
		msg = msg[:2000]
	}

	var appErr *errors.Error
	if errors.As(cause, &appErr) {
		log.Error("job failed",
			"code", string(appErr.Code),
			"op", appErr.Op,
			"message", appErr.Message,
		)
	} else {
		log.Error("job failed", "error", msg)
	}

	failed := o.now().UTC()
	job.Status = jobs.StatusFailed
	job.Progress = ""
	job.FailedAt = &failed
	job.Result = &jobs.Result{Error: msg}
	o.registry.Put(*job)
}

// BuildScript assembles the narration script: the sanitized description
// followed by each question read aloud with a thinking pause before its
// answer.
func BuildScript(req jobs.Request) string {
	var b strings.Builder
	b.WriteString(render.SanitizeScript(req.Description))

	narrated := 0
	for _, q := range req.Questions {
		question := strings.TrimSpace(q.Question)
		answer := strings.TrimSpace(q.Answer)
		if question == "" || answer == "" {
			continue
		}
		fmt.Fprintf(&b, " Question: %s ... [%d second pause] ... The answer is %s.",
			strings.TrimSuffix(question, "?")+"?", questionPauseSeconds, strings.TrimSuffix(answer, "."))
		narrated++
	}
	if narrated > 0 {
		b.WriteString(" Great work thinking through these questions!")
	}
	return strings.TrimSpace(b.String())
}

func videoFilename(job jobs.Job) string {
	return fmt.Sprintf("%s-%s.mp4", slugify(job.Request.SubtopicName), job.ID)
}

func subtitleFilename(job jobs.Job) string {
	return fmt.Sprintf("%s-%s.vtt", slugify(job.Request.SubtopicName), job.ID)
}

// slugify lowercases the name and replaces runs of non-alphanumerics with a
// single dash.
func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
