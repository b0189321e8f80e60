package config

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("unexpected listen addr %q", cfg.ListenAddr)
	}
	if cfg.DatabaseDriver != "sqlite" || cfg.DatabaseDSN != "freon.db" {
		t.Fatalf("unexpected database defaults: %s %s", cfg.DatabaseDriver, cfg.DatabaseDSN)
	}
	if cfg.ControlSessionTTL != 12*time.Hour {
		t.Fatalf("unexpected session ttl %v", cfg.ControlSessionTTL)
	}
	if cfg.ControlJWTSecret == "" {
		t.Fatal("dev profile must fall back to a control JWT secret")
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("FREON_DATABASE_DRIVER", "oracle")
	if _, err := Load(context.Background()); err == nil {
		t.Fatal("expected error for unsupported database driver")
	} else if !strings.Contains(err.Error(), "validate config:") {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLoadRequiresSecretOutsideDev(t *testing.T) {
	t.Setenv("OTEL_ENVIRONMENT", "prod")
	if _, err := Load(context.Background()); err == nil {
		t.Fatal("expected error when control JWT secret is missing outside dev")
	}

	t.Setenv("FREON_CONTROL_JWT_SECRET", "s3cret")
	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("load with secret: %v", err)
	}
	if cfg.ControlJWTSecret != "s3cret" {
		t.Fatalf("unexpected secret %q", cfg.ControlJWTSecret)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("FREON_CONTROL_SESSION_TTL", "45m")
	t.Setenv("FREON_API_RATE_LIMIT_RPM", "120")
	t.Setenv("OTEL_METRICS_ENABLED", "true")
	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("load overrides: %v", err)
	}
	if cfg.ControlSessionTTL != 45*time.Minute {
		t.Fatalf("unexpected ttl %v", cfg.ControlSessionTTL)
	}
	if cfg.APIRateLimitRPM != 120 {
		t.Fatalf("unexpected rpm %d", cfg.APIRateLimitRPM)
	}
	if !cfg.OTELMetricsEnabled {
		t.Fatal("expected metrics enabled")
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("FREON_WALLABAG_TIMEOUT", "soon")
	if _, err := Load(context.Background()); err == nil {
		t.Fatal("expected parse error for bad duration")
	}
}
