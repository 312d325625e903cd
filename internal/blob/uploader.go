// Package blob mirrors rendered media into the durable S3-compatible object
// store and hands back stable public URLs.
package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"edurender/internal/pkg/errors"
	"edurender/internal/pkg/logger"
)

// KeyPrefix is the fixed key prefix for all generated media objects.
const KeyPrefix = "ai-videos/"

// fetchTimeout bounds the transfer of the rendered video from the provider.
const fetchTimeout = 120 * time.Second

// objectPutter is the slice of the minio client the uploader needs.
// *minio.Client satisfies it.
type objectPutter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Config holds blob store connection settings.
type Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// Uploader writes media payloads to the blob store.
type Uploader struct {
	store  objectPutter
	bucket string
	region string
	httpc  *http.Client
	log    *logger.Logger
	now    func() time.Time
}

// New creates an Uploader backed by an S3-compatible store.
func New(cfg Config, log *logger.Logger) (*Uploader, error) {
	if log == nil {
		log = logger.NewDefault()
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create blob store client: %w", err)
	}

	return &Uploader{
		store:  client,
		bucket: cfg.Bucket,
		region: cfg.Region,
		httpc:  &http.Client{Timeout: fetchTimeout},
		log:    log.WithComponent("blob"),
		now:    time.Now,
	}, nil
}

// Bucket reports the configured bucket name.
func (u *Uploader) Bucket() string {
	return u.bucket
}

// UploadVideo fetches the rendered video from the provider URL and writes it
// to the blob store. The whole payload is held in memory; rendered clips are
// short and the transfer is bounded by fetchTimeout.
func (u *Uploader) UploadVideo(ctx context.Context, remoteURL, filename string) (string, error) {
	payload, err := u.fetch(ctx, remoteURL)
	if err != nil {
		return "", err
	}
	if len(payload) == 0 {
		return "", errors.Newf(errors.CodeEmptyPayload, "empty payload from %s", remoteURL)
	}

	key := KeyPrefix + filename
	_, err = u.store.PutObject(ctx, u.bucket, key, bytes.NewReader(payload), int64(len(payload)), minio.PutObjectOptions{
		ContentType: "video/mp4",
		UserMetadata: map[string]string{
			"source":      "edurender",
			"origin-url":  remoteURL,
			"uploaded-at": u.now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return "", errors.UploadFailed(err, "failed to store video")
	}

	url := u.PublicURL(key)
	u.log.Info("video uploaded", "key", key, "bytes", len(payload), "url", url)
	return url, nil
}

// UploadText writes caption content to the blob store.
func (u *Uploader) UploadText(ctx context.Context, content, filename string) (string, error) {
	key := KeyPrefix + filename
	reader := strings.NewReader(content)

	_, err := u.store.PutObject(ctx, u.bucket, key, reader, int64(len(content)), minio.PutObjectOptions{
		ContentType: "text/vtt",
		UserMetadata: map[string]string{
			"source":      "edurender",
			"uploaded-at": u.now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return "", errors.UploadFailed(err, "failed to store captions")
	}

	url := u.PublicURL(key)
	u.log.Info("captions uploaded", "key", key, "bytes", len(content), "url", url)
	return url, nil
}

// PublicURL composes the deterministic public URL for a stored object.
// No redirect or signing round-trip is involved.
func (u *Uploader) PublicURL(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", u.bucket, u.region, key)
}

func (u *Uploader) fetch(ctx context.Context, remoteURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, remoteURL, nil)
	if err != nil {
		return nil, errors.UploadFailed(err, "invalid source url")
	}

	res, err := u.httpc.Do(req)
	if err != nil {
		return nil, errors.UploadFailed(err, "failed to fetch rendered video")
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, errors.Newf(errors.CodeUploadFailed, "fetch http %d from %s", res.StatusCode, remoteURL)
	}

	payload, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, errors.UploadFailed(err, "failed reading video payload")
	}
	return payload, nil
}
