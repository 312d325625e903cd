// Package jobs tracks asynchronous video generation jobs in process memory.
// Job state does not survive a restart; callers that need durable history
// read the persisted record instead.
package jobs

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle phase of a job.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// retention is how long a terminal job remains readable after it finishes.
const retention = time.Hour

// Question is a single comprehension question attached to a lesson.
type Question struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Request is the caller-supplied description of what to generate.
type Request struct {
	SubtopicName string     `json:"subtopicName"`
	Description  string     `json:"description"`
	Questions    []Question `json:"questions,omitempty"`
	PresenterID  string     `json:"presenterId,omitempty"`
	RecordID     string     `json:"recordId,omitempty"`
	Database     string     `json:"database,omitempty"`
	Collection   string     `json:"collection,omitempty"`
}

// Result holds the outcome of a completed or failed job.
type Result struct {
	VideoURL        string `json:"videoUrl,omitempty"`
	SubtitleURL     string `json:"subtitleUrl,omitempty"`
	StoredIn        string `json:"storedIn,omitempty"`
	DatabaseUpdated bool   `json:"databaseUpdated"`
	PersistMethod   string `json:"persistMethod,omitempty"`
	HasSubtitles    bool   `json:"hasSubtitles"`
	Error           string `json:"error,omitempty"`
}

// Job is a snapshot of one generation job. Values stored in the registry are
// copied on the way in and out, so a Job read by a caller never mutates
// under them.
type Job struct {
	ID          string     `json:"jobId"`
	Status      Status     `json:"status"`
	Progress    string     `json:"progress,omitempty"`
	Request     Request    `json:"request"`
	Result      *Result    `json:"result,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	FailedAt    *time.Time `json:"failedAt,omitempty"`
}

// Terminal reports whether the job has finished, successfully or not.
func (j Job) Terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

func (j Job) finishedAt() (time.Time, bool) {
	switch {
	case j.CompletedAt != nil:
		return *j.CompletedAt, true
	case j.FailedAt != nil:
		return *j.FailedAt, true
	}
	return time.Time{}, false
}

// Registry is a concurrency-safe in-memory job table.
type Registry struct {
	mu   sync.Mutex
	jobs map[string]Job
	now  func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		jobs: make(map[string]Job),
		now:  time.Now,
	}
}

// Create allocates a new job in the processing state and returns its
// snapshot.
func (r *Registry) Create(req Request) Job {
	job := Job{
		ID:        uuid.NewString(),
		Status:    StatusProcessing,
		Request:   req,
		CreatedAt: r.now().UTC(),
	}

	r.mu.Lock()
	r.jobs[job.ID] = job
	r.mu.Unlock()
	return job
}

// Put replaces the stored job with the given snapshot. Updates are
// whole-value so partially-written states are never observable.
func (r *Registry) Put(job Job) {
	r.mu.Lock()
	r.jobs[job.ID] = job
	r.mu.Unlock()
}

// Get returns the job snapshot for id. Terminal jobs past the retention
// window are purged lazily on lookup.
func (r *Registry) Get(id string) (Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.purgeLocked()

	job, ok := r.jobs[id]
	return job, ok
}

// Len reports how many jobs are currently tracked.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

func (r *Registry) purgeLocked() {
	cutoff := r.now().Add(-retention)
	for id, job := range r.jobs {
		if !job.Terminal() {
			continue
		}
		if done, ok := job.finishedAt(); ok && done.Before(cutoff) {
			delete(r.jobs, id)
		}
	}
}
