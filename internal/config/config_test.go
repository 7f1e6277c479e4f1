package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file must not error: %v", err)
	}
	if cfg.Listen != ":8080" || !cfg.HMAC.Enabled || cfg.HMAC.MaxSkewSec != 300 {
		t.Fatalf("defaults: %+v", cfg)
	}
	if cfg.Webhook.MaxAttempts != 3 || cfg.RateLimit.RPS != 5 {
		t.Fatalf("defaults: %+v", cfg)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
listen: ":9090"
cors_origin: "https://forms.example.com"
hmac:
  enabled: false
  max_skew_sec: 60
webhook:
  timeout_sec: 5
  max_attempts: 2
rate_limit:
  rps: 20
  burst: 40
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Listen != ":9090" || cfg.CORSOrigin != "https://forms.example.com" {
		t.Fatalf("cfg: %+v", cfg)
	}
	if cfg.HMAC.Enabled || cfg.HMAC.MaxSkewSec != 60 {
		t.Fatalf("hmac: %+v", cfg.HMAC)
	}
	if cfg.Webhook.TimeoutSec != 5 || cfg.Webhook.MaxAttempts != 2 {
		t.Fatalf("webhook: %+v", cfg.Webhook)
	}
	if cfg.RateLimit.RPS != 20 || cfg.RateLimit.Burst != 40 {
		t.Fatalf("rate limit: %+v", cfg.RateLimit)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("PORT", "7070")
	t.Setenv("HMAC_ENABLED", "false")
	t.Setenv("WEBHOOK_MAX_ATTEMPTS", "5")
	t.Setenv("CORS_ORIGIN", "https://env.example.com")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Listen != ":7070" {
		t.Fatalf("listen: %q", cfg.Listen)
	}
	if cfg.HMAC.Enabled {
		t.Fatal("env should disable hmac")
	}
	if cfg.Webhook.MaxAttempts != 5 {
		t.Fatalf("attempts: %d", cfg.Webhook.MaxAttempts)
	}
	if cfg.CORSOrigin != "https://env.example.com" {
		t.Fatalf("cors: %q", cfg.CORSOrigin)
	}
}

func TestDurationHelpers(t *testing.T) {
	var c Config
	if c.MaxSkew() != 300*time.Second || c.WebhookTimeout() != 10*time.Second {
		t.Fatalf("zero-value fallbacks: %v %v", c.MaxSkew(), c.WebhookTimeout())
	}
	c.HMAC.MaxSkewSec = 30
	c.Webhook.TimeoutSec = 3
	if c.MaxSkew() != 30*time.Second || c.WebhookTimeout() != 3*time.Second {
		t.Fatalf("helpers: %v %v", c.MaxSkew(), c.WebhookTimeout())
	}
}
