package recovery

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Action is the caller-supplied retry action: typically the embedding call
// path re-issuing the render request.
type Action func(ctx context.Context) (any, error)

// Config holds the orchestrator configuration.
type Config struct {
	// MaxRetries is the per-(resource, kind) attempt ceiling.
	MaxRetries int

	// BaseDelay is the backoff base; attempt n waits BaseDelay * Multiplier^n.
	BaseDelay time.Duration

	// MaxDelay caps the computed exponential delay.
	MaxDelay time.Duration

	// Multiplier is the exponential backoff multiplier.
	Multiplier float64

	// JitterMax bounds the uniform jitter added to every delay.
	JitterMax time.Duration

	// QueryErrorFloor is the minimum wait before retrying a query error.
	QueryErrorFloor time.Duration

	// RateLimitFloor is the minimum wait before retrying after a rate limit.
	RateLimitFloor time.Duration

	// RateLimitCooldown is the window applied by RegisterRateLimit when the
	// backend supplies no reset delay.
	RateLimitCooldown time.Duration

	// RefreshToken is awaited before any token-expired retry. Its failure
	// aborts the retry and is propagated to the caller.
	RefreshToken func(ctx context.Context) error

	// Window holds the rate-limit cooldown window. Defaults to an
	// in-process MemoryWindow; use NewRedisWindow to share it across
	// workers.
	Window WindowStore

	// EnableBreaker guards the retry action with a per-resource circuit
	// breaker. Off by default.
	EnableBreaker bool

	// Logger is the component logger. Nil uses the global logger with a
	// component field.
	Logger *zerolog.Logger
}

// DefaultConfig returns the default orchestrator configuration.
func DefaultConfig() Config {
	return Config{
		MaxRetries:        3,
		BaseDelay:         1 * time.Second,
		MaxDelay:          30 * time.Second,
		Multiplier:        2.0,
		JitterMax:         1 * time.Second,
		QueryErrorFloor:   3 * time.Second,
		RateLimitFloor:    10 * time.Second,
		RateLimitCooldown: 60 * time.Second,
	}
}

// Orchestrator drives classified failures through bounded, backoff-paced
// retries. It owns the per-(resource, kind) attempt counters and the global
// rate-limit cooldown window; nothing else in the layer touches either.
type Orchestrator struct {
	mu       sync.Mutex
	attempts map[string]int

	cfg    Config
	window WindowStore
	logger zerolog.Logger
	now    func() time.Time

	breakers *breakerSet
}

// New creates a retry orchestrator.
func New(cfg Config) *Orchestrator {
	def := DefaultConfig()
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = def.Multiplier
	}
	if cfg.JitterMax < 0 {
		cfg.JitterMax = def.JitterMax
	}
	if cfg.QueryErrorFloor <= 0 {
		cfg.QueryErrorFloor = def.QueryErrorFloor
	}
	if cfg.RateLimitFloor <= 0 {
		cfg.RateLimitFloor = def.RateLimitFloor
	}
	if cfg.RateLimitCooldown <= 0 {
		cfg.RateLimitCooldown = def.RateLimitCooldown
	}

	window := cfg.Window
	if window == nil {
		window = NewMemoryWindow()
	}

	logger := log.With().Str("component", "embed-recovery").Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	o := &Orchestrator{
		attempts: make(map[string]int),
		cfg:      cfg,
		window:   window,
		logger:   logger,
		now:      time.Now,
	}
	if cfg.EnableBreaker {
		o.breakers = newBreakerSet()
	}
	return o
}

// retryKey builds the attempt-counter key for a (resource, kind) pair.
func retryKey(resourceID string, kind Kind) string {
	return resourceID + ":" + string(kind)
}

// Attempts returns the current attempt count for a (resource, kind) pair.
func (o *Orchestrator) Attempts(resourceID string, kind Kind) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.attempts[retryKey(resourceID, kind)]
}

// ShouldRetry reports whether a further attempt for this failure is
// permitted. It is false for non-retryable kinds, once the attempt ceiling
// is reached, and for rate-limited failures while the cooldown window has
// not elapsed.
func (o *Orchestrator) ShouldRetry(f Failure, resourceID string) bool {
	if !f.Retryable {
		return false
	}

	o.mu.Lock()
	attempts := o.attempts[retryKey(resourceID, f.Kind)]
	o.mu.Unlock()

	if attempts >= o.cfg.MaxRetries {
		return false
	}

	if f.Kind == KindRateLimited && o.windowActive() {
		rateLimitSuppressedTotal.Inc()
		o.logger.Debug().
			Str("resource_id", resourceID).
			Msg("Retry suppressed by rate-limit cooldown window")
		return false
	}

	return true
}

// windowActive reports whether the rate-limit cooldown window is still open.
// A window store failure is logged and treated as no window, so a flaky
// shared store can never wedge every rate-limited resource.
func (o *Orchestrator) windowActive() bool {
	resumeAt, ok, err := o.window.ResumeAt(context.Background())
	if err != nil {
		o.logger.Warn().Err(err).Msg("Rate-limit window lookup failed")
		return false
	}
	return ok && o.now().Before(resumeAt)
}

// NextDelay computes the wait before the next attempt for this failure:
// BaseDelay * Multiplier^attempts plus uniform jitter, capped at MaxDelay.
// Query errors wait at least QueryErrorFloor and rate limits at least
// RateLimitFloor, whatever the exponential value.
func (o *Orchestrator) NextDelay(f Failure, resourceID string) time.Duration {
	o.mu.Lock()
	attempts := o.attempts[retryKey(resourceID, f.Kind)]
	o.mu.Unlock()
	return o.delayForAttempt(f.Kind, attempts)
}

func (o *Orchestrator) delayForAttempt(kind Kind, attempts int) time.Duration {
	delay := time.Duration(float64(o.cfg.BaseDelay) * math.Pow(o.cfg.Multiplier, float64(attempts)))
	if delay > o.cfg.MaxDelay || delay <= 0 {
		delay = o.cfg.MaxDelay
	}

	if o.cfg.JitterMax > 0 {
		delay += time.Duration(rand.Int63n(int64(o.cfg.JitterMax)))
	}

	switch kind {
	case KindQueryError:
		if delay < o.cfg.QueryErrorFloor {
			delay = o.cfg.QueryErrorFloor
		}
	case KindRateLimited:
		if delay < o.cfg.RateLimitFloor {
			delay = o.cfg.RateLimitFloor
		}
	}

	return delay
}

// Execute performs one paced retry of action for the given failure.
//
// It returns ErrRetrySuppressed without side effects when ShouldRetry is
// false. Otherwise it counts the attempt, awaits the configured token
// refresh for token-expired failures (propagating its failure), waits out
// the backoff delay, and invokes the action. A successful action clears the
// attempt counter and its result is returned; a failed action is re-raised
// to the caller, with the counter cleared only when this was the final
// permitted attempt.
func (o *Orchestrator) Execute(ctx context.Context, f Failure, resourceID string, action Action) (any, error) {
	if !o.ShouldRetry(f, resourceID) {
		return nil, fmt.Errorf("%w: %s/%s", ErrRetrySuppressed, resourceID, f.Kind)
	}

	key := retryKey(resourceID, f.Kind)

	o.mu.Lock()
	attempt := o.attempts[key]
	delay := o.delayForAttempt(f.Kind, attempt)
	o.attempts[key] = attempt + 1
	final := attempt+1 >= o.cfg.MaxRetries
	o.mu.Unlock()

	retriesTotal.WithLabelValues(string(f.Kind)).Inc()
	retryBackoffSeconds.WithLabelValues(string(f.Kind)).Observe(delay.Seconds())

	if f.Kind == KindTokenExpired {
		if o.cfg.RefreshToken == nil {
			return nil, ErrNoTokenRefresher
		}
		if err := o.cfg.RefreshToken(ctx); err != nil {
			o.logger.Error().Err(err).
				Str("resource_id", resourceID).
				Msg("Token refresh failed, aborting retry")
			return nil, fmt.Errorf("token refresh: %w", err)
		}
	}

	o.logger.Debug().
		Str("resource_id", resourceID).
		Str("kind", string(f.Kind)).
		Int("attempt", attempt+1).
		Dur("backoff", delay).
		Msg("Retrying after backoff")

	select {
	case <-ctx.Done():
		o.logger.Warn().
			Str("resource_id", resourceID).
			Str("kind", string(f.Kind)).
			Msg("Context cancelled during retry backoff")
		return nil, fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
	case <-time.After(delay):
	}

	result, err := o.runAction(ctx, resourceID, action)
	if err == nil {
		o.mu.Lock()
		delete(o.attempts, key)
		o.mu.Unlock()

		o.logger.Info().
			Str("resource_id", resourceID).
			Str("kind", string(f.Kind)).
			Int("attempt", attempt+1).
			Msg("Retry succeeded")
		return result, nil
	}

	if final {
		o.mu.Lock()
		delete(o.attempts, key)
		o.mu.Unlock()

		retryExhaustedTotal.WithLabelValues(string(f.Kind)).Inc()
		o.logger.Warn().
			Str("resource_id", resourceID).
			Str("kind", string(f.Kind)).
			Int("max_retries", o.cfg.MaxRetries).
			Msg("Retry attempts exhausted")
		return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, o.cfg.MaxRetries, err)
	}

	return nil, err
}

// RegisterRateLimit opens the global cooldown window for resetSeconds
// seconds, or for the configured default cooldown when resetSeconds <= 0.
func (o *Orchestrator) RegisterRateLimit(ctx context.Context, resetSeconds int) error {
	cooldown := o.cfg.RateLimitCooldown
	if resetSeconds > 0 {
		cooldown = time.Duration(resetSeconds) * time.Second
	}

	resumeAt := o.now().Add(cooldown)
	if err := o.window.Activate(ctx, resumeAt); err != nil {
		return fmt.Errorf("activate rate limit window: %w", err)
	}

	o.logger.Warn().
		Time("resume_at", resumeAt).
		Dur("cooldown", cooldown).
		Msg("Rate limit registered, suppressing rate-limited retries")
	return nil
}

// ClearHistory drops every attempt counter belonging to resourceID. Hosts
// call it on teardown or manual reload so stale counters cannot suppress
// future legitimate retries.
func (o *Orchestrator) ClearHistory(resourceID string) {
	prefix := resourceID + ":"

	o.mu.Lock()
	for key := range o.attempts {
		if strings.HasPrefix(key, prefix) {
			delete(o.attempts, key)
		}
	}
	o.mu.Unlock()

	if o.breakers != nil {
		o.breakers.forget(resourceID)
	}
}

// runAction invokes the action, through the per-resource circuit breaker
// when one is configured.
func (o *Orchestrator) runAction(ctx context.Context, resourceID string, action Action) (any, error) {
	if o.breakers == nil {
		return action(ctx)
	}
	return o.breakers.run(resourceID, func() (any, error) {
		return action(ctx)
	})
}
