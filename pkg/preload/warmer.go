// Package preload warms the resource cache by fetching embed configurations
// for a set of resources in parallel.
package preload

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/embedkit/resilience/pkg/cache"
)

// Config holds warmer configuration
type Config struct {
	// MaxConcurrency is the maximum number of parallel config fetches
	MaxConcurrency int
	// Timeout per config fetch
	Timeout time.Duration
}

// DefaultConfig returns safe default configuration
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		Timeout:        10 * time.Second,
	}
}

// EmbedConfig is one fetched embed configuration ready for caching.
type EmbedConfig struct {
	EmbedURL    string
	AccessToken string
	Payload     []byte
	Metadata    map[string]any
}

// ConfigFetcher is the interface the embed backend must implement for
// single-resource config fetching.
type ConfigFetcher interface {
	FetchConfig(ctx context.Context, resourceID string) (EmbedConfig, error)
}

// Result represents the outcome of warming a single resource
type Result struct {
	ResourceID string
	Error      error
}

// Warmer fetches embed configurations in parallel and stores them in the
// resource cache ahead of first use.
type Warmer struct {
	fetcher ConfigFetcher
	store   *cache.Store
	config  Config
}

// NewWarmer creates a new cache warmer
func NewWarmer(fetcher ConfigFetcher, store *cache.Store, config Config) *Warmer {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 4
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	return &Warmer{
		fetcher: fetcher,
		store:   store,
		config:  config,
	}
}

// Warm fetches the embed configuration for every resource id in parallel
// using a worker pool and stores the successful ones. It returns the number
// of resources cached; a non-nil error reports the first worker failure,
// with the successfully fetched configs already stored.
func (w *Warmer) Warm(ctx context.Context, resourceIDs []string) (int, error) {
	start := time.Now()

	if len(resourceIDs) == 0 {
		return 0, nil
	}

	log.Info().
		Int("resources", len(resourceIDs)).
		Msg("Starting cache warm")

	queue := make(chan string, len(resourceIDs))
	results := make(chan Result, len(resourceIDs))

	go func() {
		for _, id := range resourceIDs {
			queue <- id
		}
		close(queue)
	}()

	var wg sync.WaitGroup
	for i := 0; i < w.config.MaxConcurrency; i++ {
		wg.Add(1)
		go w.worker(ctx, queue, results, &wg, i)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	warmed := 0
	var firstErr error
	for result := range results {
		if result.Error != nil {
			log.Warn().
				Err(result.Error).
				Str("resource_id", result.ResourceID).
				Msg("Config fetch failed")
			if firstErr == nil {
				firstErr = result.Error
			}
			continue
		}
		warmed++
	}

	log.Info().
		Int("warmed", warmed).
		Int("total", len(resourceIDs)).
		Dur("duration", time.Since(start)).
		Msg("Cache warm complete")

	if err := ctx.Err(); err != nil {
		return warmed, fmt.Errorf("cache warm aborted (%d/%d resources): %w", warmed, len(resourceIDs), err)
	}
	if firstErr != nil {
		return warmed, fmt.Errorf("cache warm incomplete (%d/%d resources): %w", warmed, len(resourceIDs), firstErr)
	}
	return warmed, nil
}

// worker processes resource ids from the queue
func (w *Warmer) worker(ctx context.Context, queue <-chan string, results chan<- Result, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	processed := 0

	for resourceID := range queue {
		select {
		case <-ctx.Done():
			log.Debug().
				Int("worker_id", workerID).
				Int("processed", processed).
				Msg("Worker stopping (context cancelled)")
			return
		default:
		}

		fetchCtx, cancel := context.WithTimeout(ctx, w.config.Timeout)
		cfg, err := w.fetcher.FetchConfig(fetchCtx, resourceID)
		cancel()

		if err != nil {
			results <- Result{ResourceID: resourceID, Error: err}
			continue
		}

		w.store.Put(resourceID, cfg.EmbedURL, cfg.AccessToken,
			cache.WithPayload(cfg.Payload),
			cache.WithMetadata(cfg.Metadata),
		)

		select {
		case results <- Result{ResourceID: resourceID}:
		case <-ctx.Done():
			log.Debug().
				Int("worker_id", workerID).
				Int("processed", processed).
				Msg("Worker stopping (context cancelled after fetch)")
			return
		}

		processed++
	}

	if processed > 0 {
		log.Debug().
			Int("worker_id", workerID).
			Int("processed", processed).
			Msg("Worker completed")
	}
}
