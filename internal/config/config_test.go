package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Addr != ":8686" {
		t.Errorf("expected default addr :8686, got %q", cfg.Addr)
	}
	if cfg.PresenceTTL != 5*time.Minute {
		t.Errorf("expected default presence TTL 5m, got %v", cfg.PresenceTTL)
	}
	if cfg.RedisURL != "" {
		t.Errorf("expected presence disabled by default, got %q", cfg.RedisURL)
	}
	if cfg.CORSOrigin != "*" {
		t.Errorf("expected default CORS origin *, got %q", cfg.CORSOrigin)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("API_ADDR", ":9000")
	t.Setenv("WAYPOINT_PRESENCE_TTL_SECONDS", "60")
	t.Setenv("REDIS_URL", "redis://localhost:6379")

	cfg := Load()

	if cfg.Addr != ":9000" {
		t.Errorf("expected addr :9000, got %q", cfg.Addr)
	}
	if cfg.PresenceTTL != time.Minute {
		t.Errorf("expected presence TTL 1m, got %v", cfg.PresenceTTL)
	}
	if cfg.RedisURL != "redis://localhost:6379" {
		t.Errorf("unexpected redis url %q", cfg.RedisURL)
	}
}

func TestGetenvIntIgnoresGarbage(t *testing.T) {
	t.Setenv("WAYPOINT_PRESENCE_TTL_SECONDS", "not-a-number")

	cfg := Load()
	if cfg.PresenceTTL != 5*time.Minute {
		t.Errorf("expected fallback TTL for unparseable value, got %v", cfg.PresenceTTL)
	}
}
