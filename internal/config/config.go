// Package config loads service configuration from an optional YAML file
// with environment overrides on top.
package config

import (
	"os"
	"strconv"
	"time"

	yaml "gopkg.in/yaml.v3"
)

type HMACConfig struct {
	Enabled    bool `yaml:"enabled"`
	MaxSkewSec int  `yaml:"max_skew_sec"`
}

type WebhookConfig struct {
	TimeoutSec  int `yaml:"timeout_sec"`
	MaxAttempts int `yaml:"max_attempts"`
	BatchSize   int `yaml:"batch_size"`
}

type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type Config struct {
	Listen      string          `yaml:"listen"`
	DatabaseURL string          `yaml:"database_url"`
	RedisURL    string          `yaml:"redis_url"`
	CORSOrigin  string          `yaml:"cors_origin"`
	HMAC        HMACConfig      `yaml:"hmac"`
	Webhook     WebhookConfig   `yaml:"webhook"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
}

func defaults() Config {
	return Config{
		Listen:     ":8080",
		CORSOrigin: "*",
		HMAC:       HMACConfig{Enabled: true, MaxSkewSec: 300},
		Webhook:    WebhookConfig{TimeoutSec: 10, MaxAttempts: 3, BatchSize: 10},
		RateLimit:  RateLimitConfig{RPS: 5, Burst: 10},
	}
}

// Load reads path when it exists, then applies env overrides. A missing
// file is not an error: env-only deployments are the common case.
func Load(path string) (Config, error) {
	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, err
			}
		} else if !os.IsNotExist(err) {
			return cfg, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Listen = ":" + v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.RedisURL = v
	}
	if v := os.Getenv("CORS_ORIGIN"); v != "" {
		c.CORSOrigin = v
	}
	if v := os.Getenv("HMAC_ENABLED"); v != "" {
		c.HMAC.Enabled = v == "true" || v == "1"
	}
	if n, ok := envInt("HMAC_MAX_SKEW"); ok {
		c.HMAC.MaxSkewSec = n
	}
	if n, ok := envInt("WEBHOOK_TIMEOUT"); ok {
		c.Webhook.TimeoutSec = n
	}
	if n, ok := envInt("WEBHOOK_MAX_ATTEMPTS"); ok {
		c.Webhook.MaxAttempts = n
	}
}

func (c Config) MaxSkew() time.Duration {
	if c.HMAC.MaxSkewSec <= 0 {
		return 300 * time.Second
	}
	return time.Duration(c.HMAC.MaxSkewSec) * time.Second
}

func (c Config) WebhookTimeout() time.Duration {
	if c.Webhook.TimeoutSec <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Webhook.TimeoutSec) * time.Second
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
