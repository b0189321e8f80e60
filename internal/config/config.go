package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ListenAddr string

	DatabaseDriver string
	DatabaseDSN    string

	ControlJWTSecret  string
	ControlSessionTTL time.Duration

	AdminDefaultUsername string
	AdminDefaultPassword string

	APIRateLimitRPM  int
	AuthRateLimitRPM int
	RedisAddr        string

	WallabagTimeout time.Duration

	OTELServiceName           string
	OTELEnvironment           string
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsEnabled        bool
	OTELTracesEnabled         bool
	OTELLogsEnabled           bool
	OTELMetricsExportInterval time.Duration
}

// Load reads the configuration from the environment and validates it. Every
// key has a development-friendly default except the control JWT secret, which
// must be set explicitly outside of the "dev" environment.
func Load(ctx context.Context) (*Config, error) {
	cfg := &Config{
		ListenAddr:               envString("FREON_LISTEN_ADDR", ":8080"),
		DatabaseDriver:           envString("FREON_DATABASE_DRIVER", "sqlite"),
		DatabaseDSN:              envString("FREON_DATABASE_DSN", "freon.db"),
		ControlJWTSecret:         envString("FREON_CONTROL_JWT_SECRET", ""),
		AdminDefaultUsername:     envString("FREON_ADMIN_DEFAULT_USERNAME", "freon-admin"),
		AdminDefaultPassword:     envString("FREON_ADMIN_DEFAULT_PASSWORD", "admin"),
		RedisAddr:                envString("FREON_REDIS_ADDR", ""),
		OTELServiceName:          envString("OTEL_SERVICE_NAME", "freon"),
		OTELEnvironment:          envString("OTEL_ENVIRONMENT", "dev"),
		OTELExporterOTLPEndpoint: envString("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
	}

	var err error
	if cfg.ControlSessionTTL, err = envDuration("FREON_CONTROL_SESSION_TTL", 12*time.Hour); err != nil {
		return nil, loadError(ctx, cfg, fmt.Errorf("parse FREON_CONTROL_SESSION_TTL: %w", err))
	}
	if cfg.WallabagTimeout, err = envDuration("FREON_WALLABAG_TIMEOUT", 30*time.Second); err != nil {
		return nil, loadError(ctx, cfg, fmt.Errorf("parse FREON_WALLABAG_TIMEOUT: %w", err))
	}
	if cfg.APIRateLimitRPM, err = envInt("FREON_API_RATE_LIMIT_RPM", 600); err != nil {
		return nil, loadError(ctx, cfg, fmt.Errorf("parse FREON_API_RATE_LIMIT_RPM: %w", err))
	}
	if cfg.AuthRateLimitRPM, err = envInt("FREON_AUTH_RATE_LIMIT_RPM", 30); err != nil {
		return nil, loadError(ctx, cfg, fmt.Errorf("parse FREON_AUTH_RATE_LIMIT_RPM: %w", err))
	}
	if cfg.OTELMetricsEnabled, err = envBool("OTEL_METRICS_ENABLED", false); err != nil {
		return nil, loadError(ctx, cfg, fmt.Errorf("parse OTEL_METRICS_ENABLED: %w", err))
	}
	if cfg.OTELTracesEnabled, err = envBool("OTEL_TRACES_ENABLED", false); err != nil {
		return nil, loadError(ctx, cfg, fmt.Errorf("parse OTEL_TRACES_ENABLED: %w", err))
	}
	if cfg.OTELLogsEnabled, err = envBool("OTEL_LOGS_ENABLED", false); err != nil {
		return nil, loadError(ctx, cfg, fmt.Errorf("parse OTEL_LOGS_ENABLED: %w", err))
	}
	if cfg.OTELExporterOTLPInsecure, err = envBool("OTEL_EXPORTER_OTLP_INSECURE", true); err != nil {
		return nil, loadError(ctx, cfg, fmt.Errorf("parse OTEL_EXPORTER_OTLP_INSECURE: %w", err))
	}
	if cfg.OTELMetricsExportInterval, err = envDuration("OTEL_METRICS_EXPORT_INTERVAL", 15*time.Second); err != nil {
		return nil, loadError(ctx, cfg, fmt.Errorf("parse OTEL_METRICS_EXPORT_INTERVAL: %w", err))
	}

	if err := cfg.validate(); err != nil {
		return nil, loadError(ctx, cfg, err)
	}
	recordConfigValidationEvent(ctx, cfg.OTELEnvironment, "success", "none")
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("validate config: unsupported database driver %q", c.DatabaseDriver)
	}
	if c.DatabaseDSN == "" {
		return fmt.Errorf("validate config: FREON_DATABASE_DSN must not be empty")
	}
	if c.ControlJWTSecret == "" {
		if c.OTELEnvironment != "dev" {
			return fmt.Errorf("validate config: FREON_CONTROL_JWT_SECRET is required outside of dev")
		}
		c.ControlJWTSecret = "freon-dev-secret"
	}
	if c.ControlSessionTTL <= 0 {
		return fmt.Errorf("validate config: FREON_CONTROL_SESSION_TTL must be positive")
	}
	if c.RedisAddr != "" {
		if _, err := url.Parse("redis://" + c.RedisAddr); err != nil {
			return fmt.Errorf("validate config: invalid FREON_REDIS_ADDR: %w", err)
		}
	}
	return nil
}

func loadError(ctx context.Context, cfg *Config, err error) error {
	recordConfigValidationEvent(ctx, cfg.OTELEnvironment, "error", classifyConfigLoadError(err))
	return err
}

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback, nil
	}
	return strconv.Atoi(strings.TrimSpace(v))
}

func envBool(key string, fallback bool) (bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback, nil
	}
	return strconv.ParseBool(strings.TrimSpace(v))
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback, nil
	}
	return time.ParseDuration(strings.TrimSpace(v))
}
