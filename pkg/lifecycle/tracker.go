package lifecycle

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Listener receives a snapshot of a record after every recorded event.
type Listener func(Record)

// Config holds tracker settings.
type Config struct {
	// SyntheticInteractionDelay is how long after a render completion the
	// tracker waits before marking an untouched instance interactive.
	SyntheticInteractionDelay time.Duration

	// Logger for tracker events. Defaults to the global logger with a
	// component field.
	Logger *zerolog.Logger
}

// DefaultConfig returns the default tracker configuration.
func DefaultConfig() Config {
	return Config{
		SyntheticInteractionDelay: 100 * time.Millisecond,
	}
}

// Tracker observes embedded report instances and aggregates their load and
// interaction timings. All methods are safe for concurrent use.
type Tracker struct {
	mu        sync.Mutex
	records   map[string]*Record
	timers    map[string]*time.Timer
	listeners []Listener

	// instanceListeners holds listeners bound to one (resource, instance)
	// pair, in registration order. Stop detaches them.
	instanceListeners map[string][]Listener

	syntheticDelay time.Duration
	logger         zerolog.Logger
	now            func() time.Time
}

// NewTracker creates a tracker with the given configuration.
func NewTracker(cfg Config) *Tracker {
	if cfg.SyntheticInteractionDelay <= 0 {
		cfg.SyntheticInteractionDelay = DefaultConfig().SyntheticInteractionDelay
	}

	logger := log.With().Str("component", "lifecycle").Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return &Tracker{
		records:           make(map[string]*Record),
		timers:            make(map[string]*time.Timer),
		instanceListeners: make(map[string][]Listener),
		syntheticDelay:    cfg.SyntheticInteractionDelay,
		logger:            logger,
		now:               time.Now,
	}
}

// GlobalStats aggregates timings across all tracked instances.
type GlobalStats struct {
	TotalReports    int           `json:"total_reports"`
	AverageTTFMP    time.Duration `json:"average_ttfmp"`
	AverageTTI      time.Duration `json:"average_tti"`
	AverageLoadTime time.Duration `json:"average_load_time"`
	SuccessRate     float64       `json:"success_rate"`
	ErrorCount      int           `json:"error_count"`
}

func recordKey(resourceID, instanceID string) string {
	return fmt.Sprintf("%s:%s", resourceID, instanceID)
}

// AddListener registers a listener notified after every recorded event for
// every instance. Listeners run outside the tracker lock; a panicking
// listener is logged and does not disturb tracking.
func (t *Tracker) AddListener(fn Listener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}

// AddInstanceListener registers a listener notified, in registration order,
// after every recorded event for one (resource, instance) pair only. Stop
// detaches the pair's listeners.
func (t *Tracker) AddInstanceListener(resourceID, instanceID string, fn Listener) {
	key := recordKey(resourceID, instanceID)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.instanceListeners[key] = append(t.instanceListeners[key], fn)
}

// listenersForLocked snapshots the listeners to notify for one instance:
// tracker-wide listeners first, then the instance's own in registration
// order. Caller holds t.mu.
func (t *Tracker) listenersForLocked(key string) []Listener {
	out := append([]Listener(nil), t.listeners...)
	return append(out, t.instanceListeners[key]...)
}

// Start begins tracking a (resource, instance) pair. Starting an already
// tracked pair resets its record.
func (t *Tracker) Start(resourceID, instanceID string) {
	key := recordKey(resourceID, instanceID)

	t.mu.Lock()
	if timer, ok := t.timers[key]; ok {
		timer.Stop()
		delete(t.timers, key)
	}
	t.records[key] = &Record{
		ResourceID: resourceID,
		InstanceID: instanceID,
		StartedAt:  t.now(),
		Status:     StatusLoading,
	}
	active := len(t.records)
	t.mu.Unlock()

	reportsActive.Set(float64(active))
	t.logger.Debug().
		Str("resource_id", resourceID).
		Str("instance_id", instanceID).
		Msg("Tracking embed instance")
}

// RecordEvent feeds a lifecycle event for a tracked instance. Events for
// unknown instances are dropped with a warning.
func (t *Tracker) RecordEvent(resourceID, instanceID string, kind EventKind, details map[string]any) {
	key := recordKey(resourceID, instanceID)

	t.mu.Lock()
	rec, ok := t.records[key]
	if !ok {
		t.mu.Unlock()
		t.logger.Warn().
			Str("resource_id", resourceID).
			Str("instance_id", instanceID).
			Str("event", string(kind)).
			Msg("Event for untracked instance dropped")
		return
	}

	elapsed := t.now().Sub(rec.StartedAt)
	ev := Event{Kind: kind, At: elapsed, Details: details}
	t.applyLocked(key, rec, ev)
	snapshot := rec.clone()
	listeners := t.listenersForLocked(key)
	t.mu.Unlock()

	eventsTotal.WithLabelValues(string(kind)).Inc()
	t.notify(listeners, snapshot)
}

// applyLocked folds one event into a record. Caller holds t.mu.
func (t *Tracker) applyLocked(key string, rec *Record, ev Event) {
	switch ev.Kind {
	case EventLoadStarted:
		rec.LoadStartedAt = ev.At
		rec.advanceStatus(StatusLoading)

	case EventLoaded:
		rec.LoadCompletedAt = ev.At
		rec.advanceStatus(StatusLoaded)

	case EventRenderStarted:
		rec.RenderStartedAt = ev.At
		rec.advanceStatus(StatusRendered)

	case EventRendered:
		rec.RenderCompletedAt = ev.At
		rec.advanceStatus(StatusRendered)
		if rec.TTFMP == 0 {
			rec.TTFMP = ev.At
			ttfmpSeconds.Observe(ev.At.Seconds())
		}
		t.armSyntheticInteractionLocked(key)

	case EventFirstInteraction, EventInteraction:
		if ev.Kind == EventInteraction {
			rec.Interactions = append(rec.Interactions, ev)
		}
		if rec.TTI == 0 {
			rec.FirstInteractionAt = ev.At
			rec.TTI = ev.At
			ttiSeconds.Observe(ev.At.Seconds())
		}
		rec.advanceStatus(StatusInteractive)

	case EventPageChanged:
		rec.PageChanges = append(rec.PageChanges, ev)

	case EventError:
		rec.Errors = append(rec.Errors, ev)
		rec.advanceStatus(StatusError)

	default:
		t.logger.Warn().Str("event", string(ev.Kind)).Msg("Unknown lifecycle event kind")
	}
}

// armSyntheticInteractionLocked schedules a synthetic first interaction for
// an instance that rendered but was never touched. Caller holds t.mu.
func (t *Tracker) armSyntheticInteractionLocked(key string) {
	if _, armed := t.timers[key]; armed {
		return
	}
	t.timers[key] = time.AfterFunc(t.syntheticDelay, func() {
		t.mu.Lock()
		delete(t.timers, key)
		rec, ok := t.records[key]
		if !ok || rec.TTI != 0 || rec.Status == StatusError {
			t.mu.Unlock()
			return
		}
		elapsed := t.now().Sub(rec.StartedAt)
		ev := Event{Kind: EventFirstInteraction, At: elapsed}
		t.applyLocked(key, rec, ev)
		snapshot := rec.clone()
		listeners := t.listenersForLocked(key)
		t.mu.Unlock()

		eventsTotal.WithLabelValues(string(EventFirstInteraction)).Inc()
		t.notify(listeners, snapshot)
	})
}

func (t *Tracker) notify(listeners []Listener, snapshot Record) {
	for _, fn := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.logger.Error().
						Interface("panic", r).
						Str("resource_id", snapshot.ResourceID).
						Msg("Lifecycle listener panicked")
				}
			}()
			fn(snapshot)
		}()
	}
}

// Get returns a snapshot of the record for one instance.
func (t *Tracker) Get(resourceID, instanceID string) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[recordKey(resourceID, instanceID)]
	if !ok {
		return Record{}, false
	}
	return rec.clone(), true
}

// GetAll returns snapshots of every tracked record.
func (t *Tracker) GetAll() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Record, 0, len(t.records))
	for _, rec := range t.records {
		out = append(out, rec.clone())
	}
	return out
}

// Aggregate computes global statistics over all tracked instances.
// Averages cover only instances that reached the respective milestone.
// SuccessRate is 100 when nothing is tracked.
func (t *Tracker) Aggregate() GlobalStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := GlobalStats{TotalReports: len(t.records)}
	if stats.TotalReports == 0 {
		stats.SuccessRate = 100
		return stats
	}

	var (
		ttfmpSum, ttiSum, loadSum time.Duration
		ttfmpN, ttiN, loadN       int
	)
	for _, rec := range t.records {
		if rec.Status == StatusError {
			stats.ErrorCount++
			continue
		}
		if rec.TTFMP > 0 {
			ttfmpSum += rec.TTFMP
			ttfmpN++
		}
		if rec.TTI > 0 {
			ttiSum += rec.TTI
			ttiN++
		}
		if rec.LoadCompletedAt > 0 {
			loadSum += rec.LoadCompletedAt
			loadN++
		}
	}

	if ttfmpN > 0 {
		stats.AverageTTFMP = ttfmpSum / time.Duration(ttfmpN)
	}
	if ttiN > 0 {
		stats.AverageTTI = ttiSum / time.Duration(ttiN)
	}
	if loadN > 0 {
		stats.AverageLoadTime = loadSum / time.Duration(loadN)
	}
	stats.SuccessRate = float64(stats.TotalReports-stats.ErrorCount) / float64(stats.TotalReports) * 100

	return stats
}

// Stop ends tracking for one instance, cancels any pending synthetic
// interaction timer, detaches the instance's listeners and returns the
// final record.
func (t *Tracker) Stop(resourceID, instanceID string) (Record, bool) {
	key := recordKey(resourceID, instanceID)

	t.mu.Lock()
	if timer, ok := t.timers[key]; ok {
		timer.Stop()
		delete(t.timers, key)
	}
	delete(t.instanceListeners, key)
	rec, ok := t.records[key]
	var final Record
	if ok {
		final = rec.clone()
		delete(t.records, key)
	}
	active := len(t.records)
	t.mu.Unlock()

	reportsActive.Set(float64(active))
	return final, ok
}

// StopAll ends tracking for every instance and detaches every instance
// listener.
func (t *Tracker) StopAll() {
	t.mu.Lock()
	for key, timer := range t.timers {
		timer.Stop()
		delete(t.timers, key)
	}
	t.records = make(map[string]*Record)
	t.instanceListeners = make(map[string][]Listener)
	t.mu.Unlock()

	reportsActive.Set(0)
}
