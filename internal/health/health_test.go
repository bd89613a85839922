package health

import "testing"

func TestNewTrackerStartsUnknown(t *testing.T) {
	tr := NewTracker([]string{"neural", "cloud"})
	if tr.Get("neural").Available != Unknown {
		t.Errorf("want Unknown, got %s", tr.Get("neural").Available)
	}
}

func TestRecordSuccessTransitionsToUpAndResetsFailures(t *testing.T) {
	tr := NewTracker([]string{"neural"})
	tr.RecordFailure("neural")
	tr.RecordFailure("neural")
	tr.RecordSuccess("neural")

	s := tr.Get("neural")
	if s.Available != Up {
		t.Errorf("want Up, got %s", s.Available)
	}
	if s.ConsecutiveFailures != 0 {
		t.Errorf("want failure count reset to 0, got %d", s.ConsecutiveFailures)
	}
}

func TestRecordFailureDemotesAfterThreshold(t *testing.T) {
	tr := NewTracker([]string{"neural"})
	for i := 0; i < consecutiveFailuresDownThreshold-1; i++ {
		tr.RecordFailure("neural")
		if tr.Get("neural").Available == Down {
			t.Fatalf("demoted to Down too early, after %d failures", i+1)
		}
	}
	tr.RecordFailure("neural")
	if tr.Get("neural").Available != Down {
		t.Errorf("want Down after %d consecutive failures, got %s", consecutiveFailuresDownThreshold, tr.Get("neural").Available)
	}
}

func TestRecordProbeRestoresUpAndClearsFailures(t *testing.T) {
	tr := NewTracker([]string{"neural"})
	for i := 0; i < consecutiveFailuresDownThreshold; i++ {
		tr.RecordFailure("neural")
	}
	tr.RecordProbe("neural", true)

	s := tr.Get("neural")
	if s.Available != Up {
		t.Errorf("want Up after a successful probe, got %s", s.Available)
	}
	if s.ConsecutiveFailures != 0 {
		t.Errorf("want failure count cleared by a successful probe, got %d", s.ConsecutiveFailures)
	}
}

func TestRecordProbeCanMarkDownWithoutWaitingForThreshold(t *testing.T) {
	tr := NewTracker([]string{"neural"})
	tr.RecordProbe("neural", false)
	if tr.Get("neural").Available != Down {
		t.Errorf("want Down after a single failed probe, got %s", tr.Get("neural").Available)
	}
}

func TestSnapshotReturnsAllTrackedKinds(t *testing.T) {
	tr := NewTracker([]string{"neural", "cloud", "local"})
	snap := tr.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("want 3 entries, got %d", len(snap))
	}
}

func TestSnapshotIsACopyNotALiveView(t *testing.T) {
	tr := NewTracker([]string{"neural"})
	snap := tr.Snapshot()
	tr.RecordFailure("neural")
	if snap["neural"].ConsecutiveFailures != 0 {
		t.Errorf("snapshot should not observe later mutations")
	}
}
