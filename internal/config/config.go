// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the service.
type Config struct {
	// Server
	HTTPPort string
	Env      string

	// Render provider
	RenderAPIURL string
	RenderAPIKey string

	// Document store
	MongoURI      string
	MongoDatabase string

	// Blob store (S3-compatible)
	BlobEndpoint  string
	BlobRegion    string
	BlobBucket    string
	BlobAccessKey string
	BlobSecretKey string
	BlobUseSSL    bool

	// Redis (rate limiting); optional, limiter is disabled when empty.
	RedisAddr          string
	RateLimitPerMinute int

	// Content service (optional best-effort persistence front door).
	ContentServiceURL string

	// CORS
	CORSOrigins []string
}

// Load reads configuration from the environment. A .env file is loaded
// first when present so local development does not need exported vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPPort: getEnv("HTTP_PORT", "8080"),
		Env:      getEnv("APP_ENV", "development"),

		RenderAPIURL: getEnv("RENDER_API_URL", ""),
		RenderAPIKey: getEnv("RENDER_API_KEY", ""),

		MongoURI:      getEnv("MONGO_URI", ""),
		MongoDatabase: getEnv("MONGO_DATABASE", "education"),

		BlobEndpoint:  getEnv("BLOB_ENDPOINT", "s3.amazonaws.com"),
		BlobRegion:    getEnv("BLOB_REGION", "us-east-1"),
		BlobBucket:    getEnv("BLOB_BUCKET", ""),
		BlobAccessKey: getEnv("BLOB_ACCESS_KEY", ""),
		BlobSecretKey: getEnv("BLOB_SECRET_KEY", ""),
		BlobUseSSL:    getEnvAsBool("BLOB_USE_SSL", true),

		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 10),

		ContentServiceURL: getEnv("CONTENT_SERVICE_URL", ""),

		CORSOrigins: getEnvAsCSV("CORS_ORIGINS", "*"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that required settings are present.
func (c *Config) Validate() error {
	var missing []string
	if c.RenderAPIURL == "" {
		missing = append(missing, "RENDER_API_URL")
	}
	if c.RenderAPIKey == "" {
		missing = append(missing, "RENDER_API_KEY")
	}
	if c.MongoURI == "" {
		missing = append(missing, "MONGO_URI")
	}
	if c.BlobBucket == "" {
		missing = append(missing, "BLOB_BUCKET")
	}
	if c.BlobAccessKey == "" {
		missing = append(missing, "BLOB_ACCESS_KEY")
	}
	if c.BlobSecretKey == "" {
		missing = append(missing, "BLOB_SECRET_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvAsCSV(key, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}
