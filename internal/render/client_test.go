package render

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"edurender/internal/pkg/errors"
	"edurender/internal/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Format: "json"})
}

func newTestClient(baseURL string) *HTTPClient {
	c := NewHTTPClient(baseURL, "test-key", testLogger())
	c.pollInterval = time.Millisecond
	c.maxPolls = 5
	return c
}

func TestVoiceFor(t *testing.T) {
	t.Run("known presenters", func(t *testing.T) {
		for presenter, voice := range presenterVoices {
			if got := VoiceFor(presenter); got != voice {
				t.Errorf("VoiceFor(%q) = %q, want %q", presenter, got, voice)
			}
		}
	})

	t.Run("unknown presenter falls back to default", func(t *testing.T) {
		if got := VoiceFor("nobody"); got != DefaultVoiceID {
			t.Errorf("VoiceFor(unknown) = %q, want %q", got, DefaultVoiceID)
		}
		if got := VoiceFor(""); got != DefaultVoiceID {
			t.Errorf("VoiceFor(empty) = %q, want %q", got, DefaultVoiceID)
		}
	})
}

func TestSanitizeScript(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain text unchanged",
			input: "Fractions represent parts of a whole.",
			want:  "Fractions represent parts of a whole.",
		},
		{
			name:  "break tag becomes pause marker",
			input: `What is one half? <break time="5s"/> The answer.`,
			want:  "What is one half? ... [5 second pause] ... The answer.",
		},
		{
			name:  "break tag without self-close slash",
			input: `Wait. <break time="3s"> Go.`,
			want:  "Wait. ... [3 second pause] ... Go.",
		},
		{
			name:  "fractional break rounds up",
			input: `Breathe. <break time="0.5s"/> Continue.`,
			want:  "Breathe. ... [1 second pause] ... Continue.",
		},
		{
			name:  "fractional break above a second rounds up",
			input: `Breathe. <break time="2.3s"/> Continue.`,
			want:  "Breathe. ... [3 second pause] ... Continue.",
		},
		{
			name:  "zero-length break dropped",
			input: `Breathe. <break time="0s"/> Continue.`,
			want:  "Breathe. Continue.",
		},
		{
			name:  "other markup stripped",
			input: `<speak>Hello <emphasis level="strong">world</emphasis>.</speak>`,
			want:  "Hello world.",
		},
		{
			name:  "whitespace collapsed",
			input: "One.\n\n  Two.\tThree.",
			want:  "One. Two. Three.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeScript(tt.input); got != tt.want {
				t.Errorf("SanitizeScript(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSubmit(t *testing.T) {
	t.Run("success returns provider job id", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/videos" {
				t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			}
			if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
				t.Errorf("unexpected auth header: %s", auth)
			}

			var req submitRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			if req.VoiceID == "" {
				t.Error("expected voice id in submit payload")
			}

			_ = json.NewEncoder(w).Encode(submitResponse{ID: "prov-123"})
		}))
		defer srv.Close()

		c := newTestClient(srv.URL)
		id, err := c.Submit(context.Background(), "script", "amy", VoiceFor("amy"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if id != "prov-123" {
			t.Errorf("expected prov-123, got %s", id)
		}
	})

	t.Run("provider rejection is a render failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad script", http.StatusUnprocessableEntity)
		}))
		defer srv.Close()

		c := newTestClient(srv.URL)
		_, err := c.Submit(context.Background(), "script", "amy", DefaultVoiceID)
		if !errors.IsRenderFailed(err) {
			t.Errorf("expected RENDER_FAILED, got %v", err)
		}
	})
}

func TestRenderAndWait(t *testing.T) {
	t.Run("completes after polling", func(t *testing.T) {
		var polls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				_ = json.NewEncoder(w).Encode(submitResponse{ID: "prov-1"})
				return
			}

			resp := pollResponse{Status: StateProcessing}
			if polls.Add(1) >= 2 {
				resp.Status = StateDone
				resp.ResultURL = "https://provider.example/result.mp4"
			}
			_ = json.NewEncoder(w).Encode(resp)
		}))
		defer srv.Close()

		c := newTestClient(srv.URL)
		url, err := c.RenderAndWait(context.Background(), "script", "amy")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if url != "https://provider.example/result.mp4" {
			t.Errorf("unexpected result url: %s", url)
		}
	})

	t.Run("provider error fails with detail", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				_ = json.NewEncoder(w).Encode(submitResponse{ID: "prov-2"})
				return
			}
			resp := pollResponse{Status: StateError}
			resp.Error.Description = "face not detected"
			_ = json.NewEncoder(w).Encode(resp)
		}))
		defer srv.Close()

		c := newTestClient(srv.URL)
		_, err := c.RenderAndWait(context.Background(), "script", "amy")
		if !errors.IsRenderFailed(err) {
			t.Fatalf("expected RENDER_FAILED, got %v", err)
		}
		if !strings.Contains(err.Error(), "face not detected") {
			t.Errorf("expected provider detail in error, got %v", err)
		}
	})

	t.Run("transport failures are missed attempts", func(t *testing.T) {
		var polls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				_ = json.NewEncoder(w).Encode(submitResponse{ID: "prov-3"})
				return
			}

			// First two polls return garbage, then the job is done.
			if polls.Add(1) <= 2 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			_ = json.NewEncoder(w).Encode(pollResponse{Status: StateDone, ResultURL: "https://provider.example/v.mp4"})
		}))
		defer srv.Close()

		c := newTestClient(srv.URL)
		url, err := c.RenderAndWait(context.Background(), "script", "amy")
		if err != nil {
			t.Fatalf("expected recovery after transport failures, got %v", err)
		}
		if url == "" {
			t.Error("expected result url")
		}
	})

	t.Run("exhausted poll budget is a timeout failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				_ = json.NewEncoder(w).Encode(submitResponse{ID: "prov-4"})
				return
			}
			_ = json.NewEncoder(w).Encode(pollResponse{Status: StateProcessing})
		}))
		defer srv.Close()

		c := newTestClient(srv.URL)
		_, err := c.RenderAndWait(context.Background(), "script", "amy")
		if !errors.IsRenderFailed(err) {
			t.Fatalf("expected RENDER_FAILED timeout, got %v", err)
		}
		if !strings.Contains(err.Error(), "timed out") {
			t.Errorf("expected timeout message, got %v", err)
		}
	})
}
