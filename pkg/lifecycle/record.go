package lifecycle

import (
	"time"

	"github.com/google/uuid"
)

// Status is an instance's position in the embed lifecycle. Transitions are
// monotonic along loading -> loaded -> rendered -> interactive; error is
// reachable from any state and terminal.
type Status string

const (
	StatusLoading     Status = "loading"
	StatusLoaded      Status = "loaded"
	StatusRendered    Status = "rendered"
	StatusInteractive Status = "interactive"
	StatusError       Status = "error"
)

// statusRank orders the non-error statuses for monotonic advancement.
var statusRank = map[Status]int{
	StatusLoading:     0,
	StatusLoaded:      1,
	StatusRendered:    2,
	StatusInteractive: 3,
}

// EventKind identifies a lifecycle event fed into the tracker.
type EventKind string

const (
	EventLoadStarted      EventKind = "loadStarted"
	EventLoaded           EventKind = "loaded"
	EventRenderStarted    EventKind = "renderStarted"
	EventRendered         EventKind = "rendered"
	EventFirstInteraction EventKind = "firstInteraction"
	EventInteraction      EventKind = "interaction"
	EventPageChanged      EventKind = "pageChanged"
	EventError            EventKind = "error"
)

// hostEventNames maps the event names emitted by the underlying
// report/dashboard object to tracker event kinds. The three
// interaction-flavored events collapse into a generic interaction; the
// original name travels in the "type" detail.
var hostEventNames = map[string]EventKind{
	"loaded":         EventLoaded,
	"rendered":       EventRendered,
	"error":          EventError,
	"pageChanged":    EventPageChanged,
	"dataSelected":   EventInteraction,
	"visualClicked":  EventInteraction,
	"filtersApplied": EventInteraction,
}

// MapHostEvent translates an SDK event name to a tracker event kind.
// ok is false for names the tracker does not consume.
func MapHostEvent(name string) (EventKind, bool) {
	kind, ok := hostEventNames[name]
	return kind, ok
}

// InteractionDetail returns the detail map for a host interaction event,
// carrying the original event name under "type".
func InteractionDetail(name string) map[string]any {
	return map[string]any{"type": name}
}

// NewInstanceID generates a container instance id for hosts that embed the
// same resource more than once.
func NewInstanceID() string {
	return uuid.NewString()
}

// Event is a timestamped lifecycle event, with At relative to the
// instance's start.
type Event struct {
	Kind    EventKind      `json:"kind"`
	At      time.Duration  `json:"at"`
	Details map[string]any `json:"details,omitempty"`
}

// Record tracks one live (resource, instance) pair from embed start
// onwards. All duration fields are relative to StartedAt; zero means the
// milestone has not been reached.
type Record struct {
	ResourceID string    `json:"resource_id"`
	InstanceID string    `json:"instance_id"`
	StartedAt  time.Time `json:"started_at"`
	Status     Status    `json:"status"`

	LoadStartedAt      time.Duration `json:"load_started_at,omitempty"`
	LoadCompletedAt    time.Duration `json:"load_completed_at,omitempty"`
	RenderStartedAt    time.Duration `json:"render_started_at,omitempty"`
	RenderCompletedAt  time.Duration `json:"render_completed_at,omitempty"`
	FirstInteractionAt time.Duration `json:"first_interaction_at,omitempty"`

	// TTFMP is the time to first meaningful paint (= first render
	// completion). Once set it is never overwritten.
	TTFMP time.Duration `json:"ttfmp,omitempty"`

	// TTI is the time to interactive (= first interaction, real or
	// synthetic). Once set it is never overwritten.
	TTI time.Duration `json:"tti,omitempty"`

	PageChanges  []Event `json:"page_changes,omitempty"`
	Interactions []Event `json:"interactions,omitempty"`
	Errors       []Event `json:"errors,omitempty"`
}

// advanceStatus moves the record's status forward, never backward. Once in
// error the status is frozen.
func (r *Record) advanceStatus(next Status) {
	if r.Status == StatusError {
		return
	}
	if next == StatusError {
		r.Status = StatusError
		return
	}
	if statusRank[next] > statusRank[r.Status] {
		r.Status = next
	}
}

// clone returns a snapshot copy safe to hand to callers.
func (r *Record) clone() Record {
	out := *r
	out.PageChanges = append([]Event(nil), r.PageChanges...)
	out.Interactions = append([]Event(nil), r.Interactions...)
	out.Errors = append([]Event(nil), r.Errors...)
	return out
}
