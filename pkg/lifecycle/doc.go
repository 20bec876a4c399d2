// Package lifecycle tracks the load and interaction timeline of embedded
// report instances.
//
// A Tracker holds one Record per (resource, instance) pair, keyed so the
// same report embedded twice on a page stays distinct. Host SDK events are
// translated through MapHostEvent and fed into RecordEvent; the tracker
// derives TTFMP (first render completion) and TTI (first interaction) and
// advances a monotonic status machine.
//
// Instances that render but are never touched receive a synthetic first
// interaction shortly after the render completes, so TTI is populated for
// passive dashboards too.
//
// # Basic Usage
//
//	tracker := lifecycle.NewTracker(lifecycle.DefaultConfig())
//	id := lifecycle.NewInstanceID()
//
//	tracker.Start(resourceID, id)
//	tracker.RecordEvent(resourceID, id, lifecycle.EventLoaded, nil)
//	tracker.RecordEvent(resourceID, id, lifecycle.EventRendered, nil)
//
//	stats := tracker.Aggregate()
//
// # Metrics
//
//   - embed_report_ttfmp_seconds - Time to first meaningful paint
//   - embed_report_tti_seconds - Time to interactive
//   - embed_report_events_total{kind} - Lifecycle events by kind
//   - embed_reports_active - Instances currently tracked
package lifecycle
