package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"edurender/internal/pkg/logger"
)

// ContentServiceClient offers record updates to the external system of
// record before the persister falls back to direct document writes.
type ContentServiceClient struct {
	baseURL string
	httpc   *http.Client
	log     *logger.Logger
}

// NewContentServiceClient creates a client for the content service.
func NewContentServiceClient(baseURL string, log *logger.Logger) *ContentServiceClient {
	if log == nil {
		log = logger.NewDefault()
	}
	return &ContentServiceClient{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: 10 * time.Second},
		log:     log.WithComponent("content-service"),
	}
}

type contentUpdateRequest struct {
	RecordID    string `json:"recordId"`
	VideoURL    string `json:"videoUrl"`
	SubtitleURL string `json:"subtitleUrl,omitempty"`
	StoredIn    string `json:"storedIn"`
	VideoPath   string `json:"videoPath"`
}

type contentUpdateResponse struct {
	Updated bool `json:"updated"`
}

// Update offers the write to the content service. It returns (true, nil)
// when the service confirms the write, (false, nil) when it declines, and
// (false, err) when it cannot be reached.
func (c *ContentServiceClient) Update(ctx context.Context, req PersistRequest) (bool, error) {
	body, err := json.Marshal(contentUpdateRequest{
		RecordID:    req.RecordID,
		VideoURL:    req.VideoURL,
		SubtitleURL: req.SubtitleURL,
		StoredIn:    req.StoredIn,
		VideoPath:   pathFragment(req.VideoURL),
	})
	if err != nil {
		return false, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/internal/records/video", bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := c.httpc.Do(httpReq)
	if err != nil {
		return false, err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		c.log.Debug("content service declined update", "record_id", req.RecordID, "status", res.StatusCode)
		return false, nil
	}

	var out contentUpdateResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return false, nil
	}
	return out.Updated, nil
}
