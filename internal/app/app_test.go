package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func testRunConfig() Config {
	cfg := DefaultConfig()
	cfg.HTTPAddr = "127.0.0.1:0"
	cfg.MetricsAddr = "127.0.0.1:0"
	cfg.JWTSecret = "test-secret"
	return cfg
}

func TestRun_MemoryGracefulShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(150 * time.Millisecond)
		cancel()
	}()

	err := Run(ctx, testRunConfig())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRun_InvalidStorageDriver(t *testing.T) {
	cfg := testRunConfig()
	cfg.StorageDriver = "invalid-driver"

	err := Run(context.Background(), cfg)
	if err == nil || !strings.Contains(err.Error(), "unsupported storage driver") {
		t.Fatalf("expected unsupported storage driver error, got %v", err)
	}
}

func TestRun_RequiresJWTSecret(t *testing.T) {
	cfg := testRunConfig()
	cfg.JWTSecret = ""

	err := Run(context.Background(), cfg)
	if !errors.Is(err, errJWTSecretRequired) {
		t.Fatalf("expected errJWTSecretRequired, got %v", err)
	}
}

func TestRun_InvalidHTTPAddr(t *testing.T) {
	cfg := testRunConfig()
	cfg.HTTPAddr = "127.0.0.1:-1"

	if err := Run(context.Background(), cfg); err == nil {
		t.Fatal("expected listen error for invalid address")
	}
}
