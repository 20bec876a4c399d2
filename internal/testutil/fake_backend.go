// Package testutil provides testing utilities for the embed resilience layer.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/embedkit/resilience/pkg/preload"
)

// FakeBackend is a scriptable stand-in for the embed configuration backend.
// Each resource can be given a failure sequence; calls beyond the sequence
// succeed. All methods are safe for concurrent use.
type FakeBackend struct {
	mu      sync.Mutex
	scripts map[string][]error
	calls   map[string]int

	// RenderDelay is slept on every successful call to simulate backend
	// latency.
	RenderDelay time.Duration
}

// NewFakeBackend creates an empty fake backend where every call succeeds.
func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		scripts: make(map[string][]error),
		calls:   make(map[string]int),
	}
}

// Script sets the failure sequence for a resource. The nth call returns the
// nth error; calls past the end of the sequence succeed. A nil error in the
// sequence means that call succeeds.
func (b *FakeBackend) Script(resourceID string, errs ...error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scripts[resourceID] = errs
}

// Calls returns how many times a resource has been requested.
func (b *FakeBackend) Calls(resourceID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[resourceID]
}

// TotalCalls returns the number of requests across all resources.
func (b *FakeBackend) TotalCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	total := 0
	for _, n := range b.calls {
		total += n
	}
	return total
}

// Reset clears call counters and scripts.
func (b *FakeBackend) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scripts = make(map[string][]error)
	b.calls = make(map[string]int)
}

// FetchConfig implements preload.ConfigFetcher.
func (b *FakeBackend) FetchConfig(ctx context.Context, resourceID string) (preload.EmbedConfig, error) {
	b.mu.Lock()
	n := b.calls[resourceID]
	b.calls[resourceID]++
	var err error
	if script := b.scripts[resourceID]; n < len(script) {
		err = script[n]
	}
	delay := b.RenderDelay
	b.mu.Unlock()

	if err != nil {
		return preload.EmbedConfig{}, err
	}

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return preload.EmbedConfig{}, ctx.Err()
		}
	}

	return preload.EmbedConfig{
		EmbedURL:    fmt.Sprintf("https://embed.example.com/reports/%s", resourceID),
		AccessToken: fmt.Sprintf("token-%s-%d", resourceID, n),
		Metadata: map[string]any{
			"name":      "Report " + resourceID,
			"embedType": "report",
		},
	}, nil
}

// Action returns a retry action that fetches the resource's config, for
// driving a recovery orchestrator against the fake backend.
func (b *FakeBackend) Action(resourceID string) func(ctx context.Context) (any, error) {
	return func(ctx context.Context) (any, error) {
		cfg, err := b.FetchConfig(ctx, resourceID)
		if err != nil {
			return nil, err
		}
		return cfg, nil
	}
}
