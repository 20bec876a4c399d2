package recovery

import (
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// breakerSet lazily creates one circuit breaker per resource id. A resource
// whose embed keeps failing trips its own breaker without affecting any
// other resource.
type breakerSet struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

func newBreakerSet() *breakerSet {
	return &breakerSet{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (b *breakerSet) forResource(resourceID string) *gobreaker.CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()

	cb, ok := b.breakers[resourceID]
	if !ok {
		cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    resourceID,
			Timeout: 30 * time.Second,
		})
		b.breakers[resourceID] = cb
	}
	return cb
}

func (b *breakerSet) run(resourceID string, fn func() (any, error)) (any, error) {
	return b.forResource(resourceID).Execute(fn)
}

func (b *breakerSet) forget(resourceID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.breakers, resourceID)
}
