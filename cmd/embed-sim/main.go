// embed-sim drives simulated embed instances through the resilience layer:
// configs are cached, injected failures are classified and retried, and the
// lifecycle tracker aggregates the resulting timings. Health and Prometheus
// endpoints expose the outcome.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/embedkit/resilience/pkg/cache"
	"github.com/embedkit/resilience/pkg/lifecycle"
	"github.com/embedkit/resilience/pkg/logging"
	"github.com/embedkit/resilience/pkg/recovery"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load config:", err)
		os.Exit(1)
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Log.Level),
		Pretty: cfg.Log.Pretty,
		Output: logging.DefaultConfig().Output,
	})

	cacheLogger := logging.NewLogger("embed-cache")
	store := cache.New(cache.Config{
		Capacity:      cfg.Cache.Capacity,
		MaxEntryAge:   cfg.Cache.MaxEntryAge,
		SweepInterval: cfg.Cache.SweepInterval,
		Logger:        &cacheLogger,
	})
	defer store.Close()

	orchCfg := recovery.DefaultConfig()
	orchCfg.RefreshToken = func(ctx context.Context) error { return nil }
	if cfg.RedisURL != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Fatal().Err(err).Str("redis_url", cfg.RedisURL).Msg("Failed to connect to Redis")
		}
		defer redisClient.Close()
		orchCfg.Window = recovery.NewRedisWindow(redisClient)
		logger.Info().Str("redis_url", cfg.RedisURL).Msg("Sharing rate limit window via Redis")
	}
	orch := recovery.New(orchCfg)

	tracker := lifecycle.NewTracker(lifecycle.DefaultConfig())

	backend := newSimBackend(cfg.Simulation.FailuresPerResource, cfg.Simulation.RenderDelay)

	go runSimulation(cfg, backend, store, orch, tracker, logger)

	http.HandleFunc("/health", healthHandler)
	http.HandleFunc("/stats", statsHandler(tracker, store))
	http.Handle("/metrics", promhttp.Handler())

	addr := ":" + cfg.Port
	logger.Info().Str("addr", addr).Msg("Starting embed-sim server")

	if err := http.ListenAndServe(addr, nil); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

// runSimulation embeds every configured instance once, letting the
// orchestrator recover from the backend's injected failures.
func runSimulation(cfg SimConfig, backend *simBackend, store *cache.Store, orch *recovery.Orchestrator, tracker *lifecycle.Tracker, logger zerolog.Logger) {
	ctx := context.Background()

	for _, resourceID := range cfg.Simulation.Resources {
		for i := 0; i < cfg.Simulation.InstancesPerResource; i++ {
			instanceID := lifecycle.NewInstanceID()
			if err := embedOnce(ctx, resourceID, instanceID, backend, store, orch, tracker); err != nil {
				logger.Error().
					Err(err).
					Str("resource_id", resourceID).
					Str("instance_id", instanceID).
					Msg("Embed failed")
				continue
			}
			logger.Info().
				Str("resource_id", resourceID).
				Str("instance_id", instanceID).
				Msg("Embed complete")
		}
	}

	stats := tracker.Aggregate()
	logger.Info().
		Int("total_reports", stats.TotalReports).
		Int("error_count", stats.ErrorCount).
		Float64("success_rate", stats.SuccessRate).
		Dur("average_ttfmp", stats.AverageTTFMP).
		Msg("Simulation complete")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// statsHandler serves the tracker aggregate and cache stats as JSON.
func statsHandler(tracker *lifecycle.Tracker, store *cache.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]any{
			"lifecycle": tracker.Aggregate(),
			"cache":     store.Metrics(),
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// embedOnce loads one instance through cache, recovery and lifecycle.
func embedOnce(ctx context.Context, resourceID, instanceID string, backend *simBackend, store *cache.Store, orch *recovery.Orchestrator, tracker *lifecycle.Tracker) error {
	tracker.Start(resourceID, instanceID)
	tracker.RecordEvent(resourceID, instanceID, lifecycle.EventLoadStarted, nil)

	if _, ok := store.Get(resourceID); !ok {
		cfg, err := loadWithRecovery(ctx, resourceID, backend, orch)
		if err != nil {
			tracker.RecordEvent(resourceID, instanceID, lifecycle.EventError, map[string]any{
				"message": err.Error(),
			})
			return err
		}
		store.Put(resourceID, cfg.embedURL, cfg.accessToken, cache.WithMetadata(cfg.metadata))
	}

	tracker.RecordEvent(resourceID, instanceID, lifecycle.EventLoaded, nil)
	tracker.RecordEvent(resourceID, instanceID, lifecycle.EventRendered, nil)
	return nil
}

// loadWithRecovery fetches a config, classifying failures and retrying
// until the orchestrator gives up.
func loadWithRecovery(ctx context.Context, resourceID string, backend *simBackend, orch *recovery.Orchestrator) (simConfigResult, error) {
	cfg, err := backend.fetch(ctx, resourceID)
	if err == nil {
		return cfg, nil
	}

	for {
		f := recovery.Classify(err)
		if !orch.ShouldRetry(f, resourceID) {
			return simConfigResult{}, fmt.Errorf("%s: %s", resourceID, recovery.UserMessage(f))
		}

		result, execErr := orch.Execute(ctx, f, resourceID, func(ctx context.Context) (any, error) {
			return backend.fetch(ctx, resourceID)
		})
		if execErr == nil {
			orch.ClearHistory(resourceID)
			return result.(simConfigResult), nil
		}
		if errors.Is(execErr, recovery.ErrRetryExhausted) ||
			errors.Is(execErr, recovery.ErrRetrySuppressed) ||
			errors.Is(execErr, recovery.ErrContextCancelled) {
			return simConfigResult{}, execErr
		}
		err = execErr
	}
}

// simConfigResult is a fetched embed configuration.
type simConfigResult struct {
	embedURL    string
	accessToken string
	metadata    map[string]any
}

// simBackend returns scripted failures for the first N calls per resource,
// then succeeds after the configured render delay.
type simBackend struct {
	failuresPerResource int
	renderDelay         time.Duration

	mu    sync.Mutex
	calls map[string]int
}

func newSimBackend(failuresPerResource int, renderDelay time.Duration) *simBackend {
	return &simBackend{
		failuresPerResource: failuresPerResource,
		renderDelay:         renderDelay,
		calls:               make(map[string]int),
	}
}

func (b *simBackend) fetch(ctx context.Context, resourceID string) (simConfigResult, error) {
	b.mu.Lock()
	n := b.calls[resourceID]
	b.calls[resourceID]++
	b.mu.Unlock()

	if n < b.failuresPerResource {
		return simConfigResult{}, &recovery.EmbedError{
			StatusCode: 503,
			Message:    "simulated backend failure",
		}
	}

	if b.renderDelay > 0 {
		select {
		case <-time.After(b.renderDelay):
		case <-ctx.Done():
			return simConfigResult{}, ctx.Err()
		}
	}

	return simConfigResult{
		embedURL:    "https://embed.example.com/reports/" + resourceID,
		accessToken: fmt.Sprintf("token-%s-%d", resourceID, n),
		metadata:    map[string]any{"name": "Report " + resourceID},
	}, nil
}
