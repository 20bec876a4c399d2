package lifecycle

import (
	"sync"
	"testing"
	"time"
)

// newTestTracker returns a tracker with an adjustable clock and the
// synthetic interaction timer effectively disabled.
func newTestTracker() (*Tracker, *time.Time) {
	tr := NewTracker(Config{SyntheticInteractionDelay: time.Hour})
	now := time.Now()
	tr.now = func() time.Time { return now }
	return tr, &now
}

func TestTracker_StartAndGet(t *testing.T) {
	tr, _ := newTestTracker()
	tr.Start("report-1", "inst-1")

	rec, ok := tr.Get("report-1", "inst-1")
	if !ok {
		t.Fatal("Expected record after Start")
	}
	if rec.Status != StatusLoading {
		t.Errorf("Status = %s, want %s", rec.Status, StatusLoading)
	}
	if rec.ResourceID != "report-1" || rec.InstanceID != "inst-1" {
		t.Errorf("Record identity = %s/%s", rec.ResourceID, rec.InstanceID)
	}
}

func TestTracker_Get_Unknown(t *testing.T) {
	tr, _ := newTestTracker()
	if _, ok := tr.Get("report-1", "missing"); ok {
		t.Error("Expected no record for untracked instance")
	}
}

func TestTracker_InstancesAreIndependent(t *testing.T) {
	tr, clock := newTestTracker()
	tr.Start("report-1", "inst-a")
	tr.Start("report-1", "inst-b")

	*clock = clock.Add(200 * time.Millisecond)
	tr.RecordEvent("report-1", "inst-a", EventRendered, nil)

	a, _ := tr.Get("report-1", "inst-a")
	b, _ := tr.Get("report-1", "inst-b")

	if a.TTFMP != 200*time.Millisecond {
		t.Errorf("inst-a TTFMP = %v, want 200ms", a.TTFMP)
	}
	if b.TTFMP != 0 {
		t.Errorf("inst-b TTFMP = %v, want unset", b.TTFMP)
	}
}

func TestTracker_MilestoneTimings(t *testing.T) {
	tr, clock := newTestTracker()
	tr.Start("report-1", "inst-1")

	*clock = clock.Add(50 * time.Millisecond)
	tr.RecordEvent("report-1", "inst-1", EventLoaded, nil)

	*clock = clock.Add(70 * time.Millisecond)
	tr.RecordEvent("report-1", "inst-1", EventRendered, nil)

	*clock = clock.Add(180 * time.Millisecond)
	tr.RecordEvent("report-1", "inst-1", EventInteraction, InteractionDetail("dataSelected"))

	rec, _ := tr.Get("report-1", "inst-1")
	if rec.LoadCompletedAt != 50*time.Millisecond {
		t.Errorf("LoadCompletedAt = %v, want 50ms", rec.LoadCompletedAt)
	}
	if rec.TTFMP != 120*time.Millisecond {
		t.Errorf("TTFMP = %v, want 120ms", rec.TTFMP)
	}
	if rec.TTI != 300*time.Millisecond {
		t.Errorf("TTI = %v, want 300ms", rec.TTI)
	}
	if rec.Status != StatusInteractive {
		t.Errorf("Status = %s, want %s", rec.Status, StatusInteractive)
	}
	if len(rec.Interactions) != 1 {
		t.Fatalf("Interactions = %d, want 1", len(rec.Interactions))
	}
	if rec.Interactions[0].Details["type"] != "dataSelected" {
		t.Errorf("Interaction type = %v", rec.Interactions[0].Details["type"])
	}
}

func TestTracker_TTFMPAndTTISetOnce(t *testing.T) {
	tr, clock := newTestTracker()
	tr.Start("report-1", "inst-1")

	*clock = clock.Add(100 * time.Millisecond)
	tr.RecordEvent("report-1", "inst-1", EventRendered, nil)
	tr.RecordEvent("report-1", "inst-1", EventInteraction, nil)

	*clock = clock.Add(5 * time.Second)
	tr.RecordEvent("report-1", "inst-1", EventRendered, nil)
	tr.RecordEvent("report-1", "inst-1", EventInteraction, nil)

	rec, _ := tr.Get("report-1", "inst-1")
	if rec.TTFMP != 100*time.Millisecond {
		t.Errorf("TTFMP = %v, later renders must not overwrite it", rec.TTFMP)
	}
	if rec.TTI != 100*time.Millisecond {
		t.Errorf("TTI = %v, later interactions must not overwrite it", rec.TTI)
	}
	if len(rec.Interactions) != 2 {
		t.Errorf("Interactions = %d, want every interaction appended", len(rec.Interactions))
	}
}

func TestTracker_EventForUntrackedInstanceDropped(t *testing.T) {
	tr, _ := newTestTracker()
	tr.RecordEvent("report-1", "ghost", EventLoaded, nil)

	if _, ok := tr.Get("report-1", "ghost"); ok {
		t.Error("Events must not create records implicitly")
	}
}

func TestTracker_ErrorTerminal(t *testing.T) {
	tr, _ := newTestTracker()
	tr.Start("report-1", "inst-1")

	tr.RecordEvent("report-1", "inst-1", EventError, map[string]any{"message": "query failed"})
	tr.RecordEvent("report-1", "inst-1", EventRendered, nil)

	rec, _ := tr.Get("report-1", "inst-1")
	if rec.Status != StatusError {
		t.Errorf("Status = %s, want %s after error", rec.Status, StatusError)
	}
	if len(rec.Errors) != 1 {
		t.Errorf("Errors = %d, want 1", len(rec.Errors))
	}
}

func TestTracker_PageChangesAppended(t *testing.T) {
	tr, _ := newTestTracker()
	tr.Start("report-1", "inst-1")

	tr.RecordEvent("report-1", "inst-1", EventPageChanged, map[string]any{"page": "p1"})
	tr.RecordEvent("report-1", "inst-1", EventPageChanged, map[string]any{"page": "p2"})

	rec, _ := tr.Get("report-1", "inst-1")
	if len(rec.PageChanges) != 2 {
		t.Fatalf("PageChanges = %d, want 2", len(rec.PageChanges))
	}
	if rec.PageChanges[1].Details["page"] != "p2" {
		t.Errorf("Page order not preserved: %v", rec.PageChanges)
	}
}

func TestTracker_SyntheticFirstInteraction(t *testing.T) {
	tr := NewTracker(Config{SyntheticInteractionDelay: 20 * time.Millisecond})
	tr.Start("report-1", "inst-1")
	tr.RecordEvent("report-1", "inst-1", EventRendered, nil)

	deadline := time.Now().Add(2 * time.Second)
	for {
		rec, _ := tr.Get("report-1", "inst-1")
		if rec.TTI > 0 {
			if rec.Status != StatusInteractive {
				t.Errorf("Status = %s, want %s", rec.Status, StatusInteractive)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("Synthetic first interaction never fired")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestTracker_SyntheticSkippedAfterRealInteraction(t *testing.T) {
	tr := NewTracker(Config{SyntheticInteractionDelay: 20 * time.Millisecond})
	tr.Start("report-1", "inst-1")

	now := time.Now()
	tr.now = func() time.Time { return now }

	tr.RecordEvent("report-1", "inst-1", EventRendered, nil)

	now = now.Add(5 * time.Millisecond)
	tr.RecordEvent("report-1", "inst-1", EventInteraction, nil)

	time.Sleep(60 * time.Millisecond)

	rec, _ := tr.Get("report-1", "inst-1")
	if rec.TTI != 5*time.Millisecond {
		t.Errorf("TTI = %v, synthetic timer must not overwrite the real interaction", rec.TTI)
	}
}

func TestTracker_StopCancelsSyntheticTimer(t *testing.T) {
	tr := NewTracker(Config{SyntheticInteractionDelay: 20 * time.Millisecond})
	tr.Start("report-1", "inst-1")
	tr.RecordEvent("report-1", "inst-1", EventRendered, nil)
	tr.Stop("report-1", "inst-1")

	time.Sleep(60 * time.Millisecond)

	if _, ok := tr.Get("report-1", "inst-1"); ok {
		t.Error("Record should be gone after Stop")
	}
}

func TestTracker_Listeners(t *testing.T) {
	tr, _ := newTestTracker()

	var mu sync.Mutex
	var seen []Status
	tr.AddListener(func(rec Record) {
		mu.Lock()
		seen = append(seen, rec.Status)
		mu.Unlock()
	})

	tr.Start("report-1", "inst-1")
	tr.RecordEvent("report-1", "inst-1", EventLoaded, nil)
	tr.RecordEvent("report-1", "inst-1", EventRendered, nil)

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 {
		t.Errorf("Listener invocations = %d, want 2", len(seen))
	}
}

func TestTracker_InstanceListeners_ScopedToInstance(t *testing.T) {
	tr, _ := newTestTracker()
	tr.Start("report-1", "inst-a")
	tr.Start("report-1", "inst-b")

	var mu sync.Mutex
	var seen []string
	tr.AddInstanceListener("report-1", "inst-a", func(rec Record) {
		mu.Lock()
		seen = append(seen, rec.InstanceID)
		mu.Unlock()
	})

	tr.RecordEvent("report-1", "inst-a", EventLoaded, nil)
	tr.RecordEvent("report-1", "inst-b", EventLoaded, nil)
	tr.RecordEvent("report-1", "inst-a", EventRendered, nil)

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 {
		t.Fatalf("Listener invocations = %d, want 2", len(seen))
	}
	for _, id := range seen {
		if id != "inst-a" {
			t.Errorf("Listener saw events for %s, must only see its own instance", id)
		}
	}
}

func TestTracker_InstanceListeners_RegistrationOrder(t *testing.T) {
	tr, _ := newTestTracker()
	tr.Start("report-1", "inst-1")

	var mu sync.Mutex
	var order []string
	for _, name := range []string{"first", "second", "third"} {
		tr.AddInstanceListener("report-1", "inst-1", func(Record) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		})
	}

	tr.RecordEvent("report-1", "inst-1", EventLoaded, nil)

	mu.Lock()
	defer mu.Unlock()
	want := []string{"first", "second", "third"}
	if len(order) != len(want) {
		t.Fatalf("Listener invocations = %d, want %d", len(order), len(want))
	}
	for i, name := range want {
		if order[i] != name {
			t.Errorf("Notification order = %v, want %v", order, want)
			break
		}
	}
}

func TestTracker_StopDetachesInstanceListeners(t *testing.T) {
	tr, _ := newTestTracker()
	tr.Start("report-1", "inst-1")

	var mu sync.Mutex
	calls := 0
	tr.AddInstanceListener("report-1", "inst-1", func(Record) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	tr.RecordEvent("report-1", "inst-1", EventLoaded, nil)
	tr.Stop("report-1", "inst-1")

	// The same pair tracked again must not reach the detached listener.
	tr.Start("report-1", "inst-1")
	tr.RecordEvent("report-1", "inst-1", EventLoaded, nil)

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("Listener invocations = %d, Stop must detach the instance's listeners", calls)
	}
}

func TestTracker_StopAllDetachesInstanceListeners(t *testing.T) {
	tr, _ := newTestTracker()
	tr.Start("report-1", "inst-1")

	calls := 0
	tr.AddInstanceListener("report-1", "inst-1", func(Record) { calls++ })

	tr.StopAll()
	tr.Start("report-1", "inst-1")
	tr.RecordEvent("report-1", "inst-1", EventLoaded, nil)

	if calls != 0 {
		t.Errorf("Listener invocations = %d, StopAll must detach every instance listener", calls)
	}
}

func TestTracker_PanickingListenerDoesNotDisturbTracking(t *testing.T) {
	tr, _ := newTestTracker()
	tr.AddListener(func(Record) { panic("listener bug") })

	tr.Start("report-1", "inst-1")
	tr.RecordEvent("report-1", "inst-1", EventLoaded, nil)

	rec, ok := tr.Get("report-1", "inst-1")
	if !ok || rec.Status != StatusLoaded {
		t.Errorf("Tracking disturbed by panicking listener: ok=%v status=%s", ok, rec.Status)
	}
}

func TestTracker_Aggregate(t *testing.T) {
	tr, clock := newTestTracker()

	// Three instances: two healthy with TTFMP 100ms and 140ms, one failed.
	tr.Start("report-1", "a")
	*clock = clock.Add(100 * time.Millisecond)
	tr.RecordEvent("report-1", "a", EventRendered, nil)

	base := *clock
	tr.Start("report-2", "b")
	*clock = base.Add(140 * time.Millisecond)
	tr.RecordEvent("report-2", "b", EventRendered, nil)

	tr.Start("report-3", "c")
	tr.RecordEvent("report-3", "c", EventError, nil)

	stats := tr.Aggregate()
	if stats.TotalReports != 3 {
		t.Errorf("TotalReports = %d, want 3", stats.TotalReports)
	}
	if stats.AverageTTFMP != 120*time.Millisecond {
		t.Errorf("AverageTTFMP = %v, want 120ms", stats.AverageTTFMP)
	}
	if stats.ErrorCount != 1 {
		t.Errorf("ErrorCount = %d, want 1", stats.ErrorCount)
	}
	want := 100.0 * 2 / 3
	if diff := stats.SuccessRate - want; diff > 0.01 || diff < -0.01 {
		t.Errorf("SuccessRate = %.2f, want %.2f", stats.SuccessRate, want)
	}
}

func TestTracker_Aggregate_Empty(t *testing.T) {
	tr, _ := newTestTracker()

	stats := tr.Aggregate()
	if stats.SuccessRate != 100 {
		t.Errorf("SuccessRate = %.2f, want 100 with no instances", stats.SuccessRate)
	}
	if stats.TotalReports != 0 || stats.ErrorCount != 0 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

func TestTracker_StopReturnsFinalRecord(t *testing.T) {
	tr, clock := newTestTracker()
	tr.Start("report-1", "inst-1")
	*clock = clock.Add(80 * time.Millisecond)
	tr.RecordEvent("report-1", "inst-1", EventRendered, nil)

	rec, ok := tr.Stop("report-1", "inst-1")
	if !ok {
		t.Fatal("Stop should return the record")
	}
	if rec.TTFMP != 80*time.Millisecond {
		t.Errorf("TTFMP = %v, want 80ms", rec.TTFMP)
	}

	if _, ok := tr.Stop("report-1", "inst-1"); ok {
		t.Error("Second Stop should report absence")
	}
}

func TestTracker_GetAllAndStopAll(t *testing.T) {
	tr, _ := newTestTracker()
	tr.Start("report-1", "a")
	tr.Start("report-2", "b")

	if got := len(tr.GetAll()); got != 2 {
		t.Errorf("GetAll = %d records, want 2", got)
	}

	tr.StopAll()
	if got := len(tr.GetAll()); got != 0 {
		t.Errorf("GetAll after StopAll = %d records, want 0", got)
	}
}

func TestTracker_RestartResetsRecord(t *testing.T) {
	tr, clock := newTestTracker()
	tr.Start("report-1", "inst-1")
	*clock = clock.Add(time.Second)
	tr.RecordEvent("report-1", "inst-1", EventRendered, nil)

	tr.Start("report-1", "inst-1")
	rec, _ := tr.Get("report-1", "inst-1")
	if rec.TTFMP != 0 || rec.Status != StatusLoading {
		t.Errorf("Restart must reset the record: %+v", rec)
	}
}
