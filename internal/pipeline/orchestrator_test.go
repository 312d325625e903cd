package pipeline

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"edurender/internal/docstore"
	"edurender/internal/jobs"
	"edurender/internal/pkg/errors"
	"edurender/internal/pkg/logger"
)

type fakeRenderer struct {
	err error
	url string
}

func (f *fakeRenderer) RenderAndWait(ctx context.Context, script, presenterID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

type fakeUploader struct {
	videoErr error
	textErr  error

	videoURL     string
	textURL      string
	textUploaded string
}

func (f *fakeUploader) UploadVideo(ctx context.Context, remoteURL, filename string) (string, error) {
	if f.videoErr != nil {
		return "", f.videoErr
	}
	return f.videoURL, nil
}

func (f *fakeUploader) UploadText(ctx context.Context, content, filename string) (string, error) {
	if f.textErr != nil {
		return "", f.textErr
	}
	f.textUploaded = content
	return f.textURL, nil
}

type fakePersister struct {
	result docstore.PersistResult
	calls  []docstore.PersistRequest
}

func (f *fakePersister) Persist(ctx context.Context, req docstore.PersistRequest) docstore.PersistResult {
	f.calls = append(f.calls, req)
	return f.result
}

type fixture struct {
	orch     *Orchestrator
	registry *jobs.Registry
	renderer *fakeRenderer
	uploader *fakeUploader
	store    *fakePersister
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		registry: jobs.NewRegistry(),
		renderer: &fakeRenderer{url: "https://provider.example/clips/out.mp4"},
		uploader: &fakeUploader{
			videoURL: "https://edu-media.s3.us-east-1.amazonaws.com/ai-videos/out.mp4",
			textURL:  "https://edu-media.s3.us-east-1.amazonaws.com/ai-videos/out.vtt",
		},
		store: &fakePersister{result: docstore.PersistResult{Success: true, Method: "nested_units"}},
	}

	exec := NewExecutor(2, 8, logger.New(logger.Config{Level: "error", Format: "json"}))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = exec.Stop(ctx)
	})

	f.orch = New(Deps{
		Registry: f.registry,
		Executor: exec,
		Renderer: f.renderer,
		Uploader: f.uploader,
		Store:    f.store,
		Log:      logger.New(logger.Config{Level: "error", Format: "json"}),
	})
	return f
}

func (f *fixture) waitTerminal(t *testing.T, id string) jobs.Job {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if job, ok := f.registry.Get(id); ok && job.Terminal() {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job never reached a terminal state")
	return jobs.Job{}
}

func baseRequest() jobs.Request {
	return jobs.Request{
		SubtopicName: "Photosynthesis",
		Description:  "Plants convert sunlight into chemical energy.",
		RecordID:     "rec-1",
		Database:     "education",
		Collection:   "topics",
	}
}

func TestStartValidation(t *testing.T) {
	f := newFixture(t)

	if _, err := f.orch.Start(jobs.Request{Description: "d"}); !errors.IsValidation(err) {
		t.Errorf("expected validation error for missing subtopicName, got %v", err)
	}
	if _, err := f.orch.Start(jobs.Request{SubtopicName: "s"}); !errors.IsValidation(err) {
		t.Errorf("expected validation error for missing description, got %v", err)
	}
}

func TestGenerateHappyPath(t *testing.T) {
	f := newFixture(t)

	job, err := f.orch.Start(baseRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.Status != jobs.StatusProcessing {
		t.Errorf("expected initial status processing, got %s", job.Status)
	}

	done := f.waitTerminal(t, job.ID)
	if done.Status != jobs.StatusCompleted {
		t.Fatalf("expected completed, got %s (%+v)", done.Status, done.Result)
	}
	r := done.Result
	if r.VideoURL != f.uploader.videoURL {
		t.Errorf("expected stored video url, got %s", r.VideoURL)
	}
	if r.StoredIn != docstore.StoredRemote {
		t.Errorf("expected storedIn=%s, got %s", docstore.StoredRemote, r.StoredIn)
	}
	if !r.HasSubtitles || r.SubtitleURL == "" {
		t.Errorf("expected subtitles, got %+v", r)
	}
	if !r.DatabaseUpdated || r.PersistMethod != "nested_units" {
		t.Errorf("expected persisted result, got %+v", r)
	}
	if !strings.HasPrefix(f.uploader.textUploaded, "1\n") {
		t.Errorf("expected rendered cue text to be uploaded, got %q", f.uploader.textUploaded)
	}

	if len(f.store.calls) != 1 {
		t.Fatalf("expected one persist call, got %d", len(f.store.calls))
	}
	persisted := f.store.calls[0]
	if persisted.VideoURL != f.uploader.videoURL || persisted.StoredIn != docstore.StoredRemote {
		t.Errorf("unexpected persist request: %+v", persisted)
	}
}

func TestRenderFailureFailsJob(t *testing.T) {
	f := newFixture(t)
	f.renderer.err = errors.RenderFailed("provider rejected script")

	job, err := f.orch.Start(baseRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	done := f.waitTerminal(t, job.ID)
	if done.Status != jobs.StatusFailed {
		t.Fatalf("expected failed, got %s", done.Status)
	}
	if done.FailedAt == nil {
		t.Error("expected failedAt to be set")
	}
	if done.Result == nil || !strings.Contains(done.Result.Error, "provider rejected script") {
		t.Errorf("expected error detail in result, got %+v", done.Result)
	}
	if len(f.store.calls) != 0 {
		t.Error("expected no persist attempt after render failure")
	}
}

func TestUploadFailureFallsBackToProviderURL(t *testing.T) {
	f := newFixture(t)
	f.uploader.videoErr = fmt.Errorf("bucket unavailable")

	job, _ := f.orch.Start(baseRequest())
	done := f.waitTerminal(t, job.ID)

	if done.Status != jobs.StatusCompleted {
		t.Fatalf("expected completed despite upload failure, got %s", done.Status)
	}
	r := done.Result
	if r.VideoURL != f.renderer.url {
		t.Errorf("expected provider url fallback, got %s", r.VideoURL)
	}
	if r.StoredIn != docstore.StoredProviderNative {
		t.Errorf("expected storedIn=%s, got %s", docstore.StoredProviderNative, r.StoredIn)
	}
	if r.DatabaseUpdated {
		t.Error("expected databaseUpdated=false when the upload failed")
	}

	// The record still gets the provider url so it is playable.
	if len(f.store.calls) != 1 {
		t.Fatalf("expected persist to still run, got %d calls", len(f.store.calls))
	}
	if f.store.calls[0].StoredIn != docstore.StoredProviderNative {
		t.Errorf("expected provider_native persist, got %+v", f.store.calls[0])
	}
}

func TestSubtitleFailureIsNonFatal(t *testing.T) {
	f := newFixture(t)
	f.uploader.textErr = fmt.Errorf("bucket unavailable")

	job, _ := f.orch.Start(baseRequest())
	done := f.waitTerminal(t, job.ID)

	if done.Status != jobs.StatusCompleted {
		t.Fatalf("expected completed, got %s", done.Status)
	}
	if done.Result.HasSubtitles || done.Result.SubtitleURL != "" {
		t.Errorf("expected no subtitles, got %+v", done.Result)
	}
	if !done.Result.DatabaseUpdated {
		t.Error("expected persist to proceed without subtitles")
	}
	if f.store.calls[0].SubtitleURL != "" {
		t.Errorf("expected empty subtitle url in persist request, got %q", f.store.calls[0].SubtitleURL)
	}
}

func TestPersistMissIsNonFatal(t *testing.T) {
	f := newFixture(t)
	f.store.result = docstore.PersistResult{Method: docstore.MethodNotFound}

	job, _ := f.orch.Start(baseRequest())
	done := f.waitTerminal(t, job.ID)

	if done.Status != jobs.StatusCompleted {
		t.Fatalf("expected completed, got %s", done.Status)
	}
	if done.Result.DatabaseUpdated {
		t.Error("expected databaseUpdated=false when the record was not found")
	}
	if done.Result.PersistMethod != docstore.MethodNotFound {
		t.Errorf("expected not_found method, got %s", done.Result.PersistMethod)
	}
}

func TestNoRecordIDSkipsPersist(t *testing.T) {
	f := newFixture(t)
	req := baseRequest()
	req.RecordID = ""

	job, _ := f.orch.Start(req)
	done := f.waitTerminal(t, job.ID)

	if done.Status != jobs.StatusCompleted {
		t.Fatalf("expected completed, got %s", done.Status)
	}
	if len(f.store.calls) != 0 {
		t.Errorf("expected no persist call, got %d", len(f.store.calls))
	}
	if done.Result.DatabaseUpdated {
		t.Error("expected databaseUpdated=false without a record id")
	}
}

func TestDirectPersistValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.DirectPersist(context.Background(), docstore.PersistRequest{VideoURL: "https://x/v.mp4"})
	if !errors.IsValidation(err) {
		t.Errorf("expected validation error for missing recordId, got %v", err)
	}

	_, err = f.orch.DirectPersist(context.Background(), docstore.PersistRequest{RecordID: "rec-1"})
	if !errors.IsValidation(err) {
		t.Errorf("expected validation error for missing videoUrl, got %v", err)
	}

	res, err := f.orch.DirectPersist(context.Background(), docstore.PersistRequest{
		RecordID: "rec-1",
		VideoURL: "https://x/v.mp4",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success {
		t.Errorf("expected persist result passthrough, got %+v", res)
	}
}

func TestDirectPersistMirrorsVideo(t *testing.T) {
	t.Run("mirrors when storage location is unknown", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.orch.DirectPersist(context.Background(), docstore.PersistRequest{
			RecordID: "rec-1",
			VideoURL: "https://provider.example/clips/raw.mp4",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		persisted := f.store.calls[0]
		if persisted.VideoURL != f.uploader.videoURL {
			t.Errorf("expected mirrored url, got %s", persisted.VideoURL)
		}
		if persisted.StoredIn != docstore.StoredRemote {
			t.Errorf("expected storedIn=%s, got %s", docstore.StoredRemote, persisted.StoredIn)
		}
	})

	t.Run("keeps source url when the mirror fails", func(t *testing.T) {
		f := newFixture(t)
		f.uploader.videoErr = fmt.Errorf("bucket unavailable")

		_, err := f.orch.DirectPersist(context.Background(), docstore.PersistRequest{
			RecordID: "rec-1",
			VideoURL: "https://provider.example/clips/raw.mp4",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		persisted := f.store.calls[0]
		if persisted.VideoURL != "https://provider.example/clips/raw.mp4" {
			t.Errorf("expected source url kept, got %s", persisted.VideoURL)
		}
		if persisted.StoredIn != docstore.StoredProviderNative {
			t.Errorf("expected storedIn=%s, got %s", docstore.StoredProviderNative, persisted.StoredIn)
		}
	})

	t.Run("explicit location skips the mirror", func(t *testing.T) {
		f := newFixture(t)
		f.uploader.videoErr = fmt.Errorf("must not be called")

		_, err := f.orch.DirectPersist(context.Background(), docstore.PersistRequest{
			RecordID: "rec-1",
			VideoURL: "https://edu-media.s3.us-east-1.amazonaws.com/ai-videos/v.mp4",
			StoredIn: docstore.StoredRemote,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if f.store.calls[0].StoredIn != docstore.StoredRemote {
			t.Errorf("unexpected persist request: %+v", f.store.calls[0])
		}
	})
}

func TestBuildScript(t *testing.T) {
	t.Run("description only", func(t *testing.T) {
		got := BuildScript(jobs.Request{Description: "Water cycles through evaporation."})
		if got != "Water cycles through evaporation." {
			t.Errorf("unexpected script: %q", got)
		}
	})

	t.Run("questions get pauses and a closing remark", func(t *testing.T) {
		got := BuildScript(jobs.Request{
			Description: "Plants make food from light.",
			Questions: []jobs.Question{
				{Question: "What gas do plants absorb", Answer: "carbon dioxide"},
				{Question: "Where does photosynthesis happen?", Answer: "in the chloroplasts."},
			},
		})

		if !strings.Contains(got, "Question: What gas do plants absorb? ... [5 second pause] ... The answer is carbon dioxide.") {
			t.Errorf("first question malformed: %q", got)
		}
		if !strings.Contains(got, "Question: Where does photosynthesis happen? ... [5 second pause] ... The answer is in the chloroplasts.") {
			t.Errorf("second question malformed: %q", got)
		}
		if !strings.HasSuffix(got, "Great work thinking through these questions!") {
			t.Errorf("expected closing remark, got %q", got)
		}
		if strings.Count(got, "Great work") != 1 {
			t.Errorf("expected a single closing remark, got %q", got)
		}
	})

	t.Run("break tags become pause markers", func(t *testing.T) {
		got := BuildScript(jobs.Request{Description: `First part.<break time="3s"/>Second part.`})
		if !strings.Contains(got, "[3 second pause]") {
			t.Errorf("expected pause marker, got %q", got)
		}
	})

	t.Run("closing remark survives a trailing blank question", func(t *testing.T) {
		got := BuildScript(jobs.Request{
			Description: "Topic.",
			Questions: []jobs.Question{
				{Question: "What is one half of four?", Answer: "two"},
				{Question: "", Answer: ""},
			},
		})
		if !strings.HasSuffix(got, "Great work thinking through these questions!") {
			t.Errorf("expected closing remark after the last narrated question, got %q", got)
		}
	})

	t.Run("blank questions are skipped", func(t *testing.T) {
		got := BuildScript(jobs.Request{
			Description: "Topic.",
			Questions: []jobs.Question{
				{Question: "  ", Answer: "x"},
				{Question: "Real question", Answer: ""},
			},
		})
		if strings.Contains(got, "Question:") {
			t.Errorf("expected no question blocks, got %q", got)
		}
	})
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Photosynthesis", "photosynthesis"},
		{"The Water Cycle!", "the-water-cycle"},
		{"  Mixed   CASE &*( symbols ", "mixed-case-symbols"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := slugify(tt.in); got != tt.want {
			t.Errorf("slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
