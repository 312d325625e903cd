// Package render drives the external text-to-video provider: submit a
// script, then poll the returned job until it reaches a terminal state.
package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"edurender/internal/pkg/errors"
	"edurender/internal/pkg/logger"
)

// Provider job states.
const (
	StateProcessing = "processing"
	StateDone       = "done"
	StateError      = "error"
)

const (
	defaultPollInterval = 3 * time.Second
	defaultMaxPolls     = 60
)

// Status is one poll observation of a provider job.
type Status struct {
	State       string
	ResultURL   string
	ErrorDetail string
}

// Client is the provider contract the pipeline depends on.
type Client interface {
	Submit(ctx context.Context, script, presenterID, voiceID string) (string, error)
	Poll(ctx context.Context, providerJobID string) (Status, error)
	RenderAndWait(ctx context.Context, script, presenterID string) (string, error)
}

// HTTPClient talks to the provider's REST API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     *logger.Logger

	pollInterval time.Duration
	maxPolls     int
}

// NewHTTPClient creates a provider client.
func NewHTTPClient(baseURL, apiKey string, log *logger.Logger) *HTTPClient {
	if log == nil {
		log = logger.NewDefault()
	}
	return &HTTPClient{
		baseURL:      baseURL,
		apiKey:       apiKey,
		client:       &http.Client{Timeout: 30 * time.Second},
		log:          log.WithComponent("render"),
		pollInterval: defaultPollInterval,
		maxPolls:     defaultMaxPolls,
	}
}

type submitRequest struct {
	Script      string `json:"script"`
	PresenterID string `json:"presenter_id"`
	VoiceID     string `json:"voice_id"`
}

type submitResponse struct {
	ID string `json:"id"`
}

type pollResponse struct {
	Status    string `json:"status"`
	ResultURL string `json:"result_url"`
	Error     struct {
		Description string `json:"description"`
	} `json:"error"`
}

// Submit sends the script to the provider and returns its job id.
func (c *HTTPClient) Submit(ctx context.Context, script, presenterID, voiceID string) (string, error) {
	body, err := json.Marshal(submitRequest{
		Script:      script,
		PresenterID: presenterID,
		VoiceID:     voiceID,
	})
	if err != nil {
		return "", errors.Wrap(err, "render.submit", "failed to encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/videos", bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "render.submit", "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	res, err := c.client.Do(req)
	if err != nil {
		return "", errors.WrapWithCode(err, errors.CodeRenderFailed, "render.submit", "provider request failed")
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return "", errors.Newf(errors.CodeRenderFailed, "provider http %d: %s", res.StatusCode, string(detail))
	}

	var out submitResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", errors.WrapWithCode(err, errors.CodeRenderFailed, "render.submit", "failed to decode response")
	}
	if out.ID == "" {
		return "", errors.New(errors.CodeRenderFailed, "provider returned no job id")
	}
	return out.ID, nil
}

// Poll fetches the current state of a provider job.
func (c *HTTPClient) Poll(ctx context.Context, providerJobID string) (Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/videos/"+providerJobID, nil)
	if err != nil {
		return Status{}, errors.Wrap(err, "render.poll", "failed to build request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	res, err := c.client.Do(req)
	if err != nil {
		return Status{}, fmt.Errorf("poll transport: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return Status{}, fmt.Errorf("poll http %d", res.StatusCode)
	}

	var out pollResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return Status{}, fmt.Errorf("poll decode: %w", err)
	}

	return Status{
		State:       out.Status,
		ResultURL:   out.ResultURL,
		ErrorDetail: out.Error.Description,
	}, nil
}

// RenderAndWait submits the script and polls until the provider reports a
// terminal state or the attempt budget runs out. Poll transport failures are
// counted as missed attempts, not provider failures: a flaky network should
// not fail a render that is still in flight.
func (c *HTTPClient) RenderAndWait(ctx context.Context, script, presenterID string) (string, error) {
	voiceID := VoiceFor(presenterID)

	jobID, err := c.Submit(ctx, script, presenterID, voiceID)
	if err != nil {
		return "", err
	}
	c.log.Info("render submitted", "provider_job_id", jobID, "presenter", presenterID, "voice", voiceID)

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for attempt := 1; attempt <= c.maxPolls; attempt++ {
		select {
		case <-ctx.Done():
			return "", errors.WrapWithCode(ctx.Err(), errors.CodeRenderFailed, "render.poll", "canceled while polling")
		case <-ticker.C:
		}

		status, err := c.Poll(ctx, jobID)
		if err != nil {
			c.log.Warn("poll attempt failed", "provider_job_id", jobID, "attempt", attempt, "error", err.Error())
			continue
		}

		switch status.State {
		case StateDone:
			c.log.Info("render completed", "provider_job_id", jobID, "attempts", attempt)
			return status.ResultURL, nil
		case StateError:
			return "", errors.RenderFailed(status.ErrorDetail)
		}
	}

	return "", errors.RenderTimeout(c.maxPolls)
}
