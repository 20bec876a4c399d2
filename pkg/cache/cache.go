package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds the cache configuration.
type Config struct {
	// Capacity is the maximum number of entries. A capacity of 0 is a
	// degenerate configuration in which the cache retains nothing.
	Capacity int

	// MaxEntryAge is the age (since last access) past which the
	// background sweep removes an entry.
	MaxEntryAge time.Duration

	// SweepInterval is how often the background sweep runs.
	// 0 disables the sweeper; ExpireOlderThan can still be called directly.
	SweepInterval time.Duration

	// Logger is the component logger. Nil uses the global logger with a
	// component field.
	Logger *zerolog.Logger
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		Capacity:      50,
		MaxEntryAge:   6 * time.Hour,
		SweepInterval: 10 * time.Minute,
	}
}

// Store is a bounded resource cache with LRU eviction and a periodic
// time-based expiry sweep. All operations are safe for concurrent use;
// none of them block on anything but the store's own mutex.
type Store struct {
	mu       sync.Mutex
	capacity int
	maxAge   time.Duration
	entries  map[string]*list.Element
	order    *list.List // front = most recently accessed

	logger zerolog.Logger
	now    func() time.Time

	sweepStop chan struct{}
	closeOnce sync.Once
}

// New creates a cache store and, when SweepInterval > 0, starts the
// self-scheduling expiry sweep. Call Close to stop the sweeper.
func New(cfg Config) *Store {
	if cfg.Capacity < 0 {
		cfg.Capacity = 0
	}
	if cfg.MaxEntryAge <= 0 {
		cfg.MaxEntryAge = DefaultConfig().MaxEntryAge
	}

	logger := log.With().Str("component", "embed-cache").Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	s := &Store{
		capacity:  cfg.Capacity,
		maxAge:    cfg.MaxEntryAge,
		entries:   make(map[string]*list.Element),
		order:     list.New(),
		logger:    logger,
		now:       time.Now,
		sweepStop: make(chan struct{}),
	}

	if cfg.SweepInterval > 0 {
		go s.sweepLoop(cfg.SweepInterval)
	}

	return s
}

// Close stops the background sweep. The store remains usable afterwards.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		close(s.sweepStop)
	})
}

// PutOption attaches optional attributes to a cache write.
type PutOption func(*Entry)

// WithPayload attaches a preloaded payload to the entry.
func WithPayload(payload []byte) PutOption {
	return func(e *Entry) {
		e.Payload = payload
	}
}

// WithMetadata attaches a metadata blob to the entry.
func WithMetadata(metadata map[string]any) PutOption {
	return func(e *Entry) {
		e.Metadata = metadata
	}
}

// Put creates or refreshes the entry for resourceID and bumps its
// last-accessed time. When the store is full and resourceID is not already
// present, the entry with the oldest last-accessed time is evicted first.
func (s *Store) Put(resourceID, embedURL, accessToken string, opts ...PutOption) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	if elem, ok := s.entries[resourceID]; ok {
		// Update in place. An update never evicts.
		entry := elem.Value.(*Entry)
		entry.EmbedURL = embedURL
		entry.AccessToken = accessToken
		entry.LastAccessed = now
		for _, opt := range opts {
			opt(entry)
		}
		s.order.MoveToFront(elem)
		return
	}

	if s.capacity == 0 {
		// Degenerate configuration: the insert self-evicts immediately.
		cacheEvictions.WithLabelValues("capacity").Inc()
		s.logger.Debug().
			Str("resource_id", resourceID).
			Msg("Cache capacity is zero, entry not retained")
		return
	}

	if s.order.Len() >= s.capacity {
		s.evictOldestLocked()
	}

	entry := &Entry{
		ResourceID:   resourceID,
		EmbedURL:     embedURL,
		AccessToken:  accessToken,
		LastAccessed: now,
	}
	for _, opt := range opts {
		opt(entry)
	}
	s.entries[resourceID] = s.order.PushFront(entry)
	cacheEntries.Set(float64(s.order.Len()))
}

// Get returns a copy of the entry for resourceID. A hit refreshes the
// entry's last-accessed time; a read counts as use for eviction ordering.
func (s *Store) Get(resourceID string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.entries[resourceID]
	if !ok {
		cacheMisses.Inc()
		return Entry{}, false
	}

	entry := elem.Value.(*Entry)
	entry.LastAccessed = s.now()
	s.order.MoveToFront(elem)
	cacheHits.Inc()

	return entry.clone(), true
}

// Delete removes the entry for resourceID if present.
func (s *Store) Delete(resourceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.entries[resourceID]; ok {
		s.removeLocked(elem)
	}
}

// Clear removes every entry.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*list.Element)
	s.order.Init()
	cacheEntries.Set(0)
}

// ExpireOlderThan removes every entry whose age (since last access) exceeds
// maxAge and returns the number of removed entries. It runs unconditionally,
// independent of capacity pressure.
func (s *Store) ExpireOlderThan(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	count := 0

	// The list is ordered by last access, so the first fresh entry seen
	// from the back ends the scan.
	for {
		back := s.order.Back()
		if back == nil {
			break
		}
		entry := back.Value.(*Entry)
		if entry.Age(now) <= maxAge {
			break
		}
		s.removeLocked(back)
		cacheEvictions.WithLabelValues("expired").Inc()
		count++
	}

	return count
}

// Stats is a read-only snapshot of the cache state.
type Stats struct {
	Size     int
	Capacity int
	// Keys are resource ids in most-recently-accessed-first order.
	Keys []string
}

// Metrics returns a snapshot of the cache state. It has no side effects.
func (s *Store) Metrics() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, s.order.Len())
	for elem := s.order.Front(); elem != nil; elem = elem.Next() {
		keys = append(keys, elem.Value.(*Entry).ResourceID)
	}

	return Stats{
		Size:     s.order.Len(),
		Capacity: s.capacity,
		Keys:     keys,
	}
}

// evictOldestLocked removes the entry with the oldest last-accessed time.
func (s *Store) evictOldestLocked() {
	back := s.order.Back()
	if back == nil {
		return
	}
	entry := back.Value.(*Entry)
	s.removeLocked(back)
	cacheEvictions.WithLabelValues("capacity").Inc()
	s.logger.Debug().
		Str("resource_id", entry.ResourceID).
		Time("last_accessed", entry.LastAccessed).
		Msg("Evicted least recently used entry")
}

func (s *Store) removeLocked(elem *list.Element) {
	entry := elem.Value.(*Entry)
	s.order.Remove(elem)
	delete(s.entries, entry.ResourceID)
	cacheEntries.Set(float64(s.order.Len()))
}

// sweepLoop runs the periodic expiry sweep until Close is called.
func (s *Store) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := s.ExpireOlderThan(s.maxAge); removed > 0 {
				s.logger.Info().
					Int("removed", removed).
					Dur("max_age", s.maxAge).
					Msg("Expiry sweep removed stale entries")
			}
		case <-s.sweepStop:
			return
		}
	}
}
