package config

import (
	"strings"
	"testing"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("RENDER_API_URL", "https://render.example")
	t.Setenv("RENDER_API_KEY", "key")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("BLOB_BUCKET", "edu-media")
	t.Setenv("BLOB_ACCESS_KEY", "ak")
	t.Setenv("BLOB_SECRET_KEY", "sk")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPPort != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.HTTPPort)
	}
	if cfg.MongoDatabase != "education" {
		t.Errorf("expected default database, got %s", cfg.MongoDatabase)
	}
	if cfg.RateLimitPerMinute != 10 {
		t.Errorf("expected default rate limit 10, got %d", cfg.RateLimitPerMinute)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "*" {
		t.Errorf("expected wildcard CORS default, got %v", cfg.CORSOrigins)
	}
	if !cfg.BlobUseSSL {
		t.Error("expected SSL on by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("BLOB_USE_SSL", "false")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "25")
	t.Setenv("CORS_ORIGINS", "https://app.example, https://admin.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPPort != "9090" {
		t.Errorf("expected port override, got %s", cfg.HTTPPort)
	}
	if cfg.BlobUseSSL {
		t.Error("expected SSL off")
	}
	if cfg.RateLimitPerMinute != 25 {
		t.Errorf("expected rate limit 25, got %d", cfg.RateLimitPerMinute)
	}
	want := []string{"https://app.example", "https://admin.example"}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[0] != want[0] || cfg.CORSOrigins[1] != want[1] {
		t.Errorf("expected %v, got %v", want, cfg.CORSOrigins)
	}
}

func TestValidateReportsAllMissing(t *testing.T) {
	cfg := &Config{}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, name := range []string{"RENDER_API_URL", "MONGO_URI", "BLOB_BUCKET"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("expected %s in error, got %v", name, err)
		}
	}
}
