package app

import (
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/casimir/freon/internal/config"
)

func TestNewAssignsDependencies(t *testing.T) {
	cfg := &config.Config{ListenAddr: ":8080"}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	server := &http.Server{Addr: ":8080", ReadHeaderTimeout: time.Second}

	a := New(cfg, logger, server, nil)
	if a.Config != cfg || a.Logger != logger || a.Server != server {
		t.Fatal("expected app dependencies to be assigned")
	}
}

func TestProvideRedisClientWithoutAddr(t *testing.T) {
	client, cleanup := ProvideRedisClient(&config.Config{})
	defer cleanup()
	if client != nil {
		t.Fatal("expected nil client without redis address")
	}
}

func TestProvideJWTManagerUsesConfiguredTTL(t *testing.T) {
	mgr := ProvideJWTManager(&config.Config{
		ControlJWTSecret:  "secret",
		ControlSessionTTL: 3 * time.Hour,
	})
	if mgr.TTL() != 3*time.Hour {
		t.Fatalf("expected 3h ttl, got %s", mgr.TTL())
	}
}
