package integration

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/embedkit/resilience/pkg/recovery"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

func TestRedisWindow_ActivateAndRead(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	ctx := context.Background()
	window := recovery.NewRedisWindow(redisClient)

	if _, ok, err := window.ResumeAt(ctx); err != nil || ok {
		t.Fatalf("Expected no window initially: ok=%v err=%v", ok, err)
	}

	resumeAt := time.Now().Add(30 * time.Second)
	if err := window.Activate(ctx, resumeAt); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}

	got, ok, err := window.ResumeAt(ctx)
	if err != nil || !ok {
		t.Fatalf("ResumeAt: ok=%v err=%v", ok, err)
	}
	if got.UnixMilli() != resumeAt.UnixMilli() {
		t.Errorf("ResumeAt = %v, want %v", got, resumeAt)
	}
}

func TestRedisWindow_ExpiresWithTTL(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	ctx := context.Background()
	window := recovery.NewRedisWindow(redisClient)

	if err := window.Activate(ctx, time.Now().Add(time.Second)); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		_, ok, err := window.ResumeAt(ctx)
		if err != nil {
			t.Fatalf("ResumeAt failed: %v", err)
		}
		if !ok {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("Window never expired")
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func TestRedisWindow_SharedAcrossOrchestrators(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	ctx := context.Background()

	newOrch := func() *recovery.Orchestrator {
		cfg := recovery.DefaultConfig()
		cfg.Window = recovery.NewRedisWindow(redisClient)
		return recovery.New(cfg)
	}
	first := newOrch()
	second := newOrch()

	// One worker registers the rate limit; the other sees the window.
	if err := first.RegisterRateLimit(ctx, 60); err != nil {
		t.Fatalf("RegisterRateLimit failed: %v", err)
	}

	f := recovery.Classify(&recovery.EmbedError{StatusCode: 429, Message: "too many requests"})
	if second.ShouldRetry(f, "report-1") {
		t.Error("The rate limit window must be shared across workers")
	}
}
