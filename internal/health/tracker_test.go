package health

import (
	"testing"
	"time"
)

func newTestTracker() (*Tracker, *fakeClock) {
	fc := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	tr := New()
	tr.now = fc.Now
	return tr, fc
}

type fakeClock struct {
	t time.Time
}

func (f *fakeClock) Now() time.Time { return f.t }

func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func TestTracker_StartsAtMaxScoreAndHealthy(t *testing.T) {
	t.Parallel()
	tr, _ := newTestTracker()

	if got := tr.Score(); got != maxScore {
		t.Errorf("Score() = %d, want %d", got, maxScore)
	}
	if !tr.Healthy() {
		t.Error("Healthy() = false, want true")
	}
	if tr.Down() {
		t.Error("Down() = true, want false")
	}
}

func TestTracker_RecordFailure_PenaltyEscalatesWithStreak(t *testing.T) {
	t.Parallel()
	tr, _ := newTestTracker()

	want := []int{95, 85, 65, 30, 0} // penalties 5, 10, 20, 35, 50 (floored at 0)
	for i, expect := range want {
		tr.RecordFailure()
		if got := tr.Score(); got != expect {
			t.Fatalf("after failure #%d: Score() = %d, want %d", i+1, got, expect)
		}
	}
	if got := tr.ConsecutiveFailures(); got != len(want) {
		t.Errorf("ConsecutiveFailures() = %d, want %d", got, len(want))
	}
}

func TestTracker_RecordFailure_FloorsAtZero(t *testing.T) {
	t.Parallel()
	tr, _ := newTestTracker()

	for i := 0; i < 20; i++ {
		tr.RecordFailure()
	}
	if got := tr.Score(); got != 0 {
		t.Errorf("Score() = %d, want 0", got)
	}
	if !tr.Down() {
		t.Error("Down() = false, want true")
	}
}

func TestTracker_RecordSuccess_NoPriorFailureScalesWithStreak(t *testing.T) {
	t.Parallel()
	tr, _ := newTestTracker()

	// Drive the score down first so recovery has room to apply.
	for i := 0; i < 4; i++ {
		tr.RecordFailure()
	}
	start := tr.Score() // 100-5-10-20-35 = 30

	tr.RecordSuccess() // streak=1, credit=min(3,15)=3
	if got := tr.Score(); got != start+3 {
		t.Fatalf("Score() after 1st success = %d, want %d", got, start+3)
	}
	tr.RecordSuccess() // streak=2, credit=min(6,15)=6
	if got := tr.Score(); got != start+3+6 {
		t.Fatalf("Score() after 2nd success = %d, want %d", got, start+3+6)
	}
}

func TestTracker_RecordSuccess_AfterLongOutageHealsFaster(t *testing.T) {
	t.Parallel()
	tr, _ := newTestTracker()

	for i := 0; i < 11; i++ {
		tr.RecordFailure()
	}
	if got := tr.Score(); got != 0 {
		t.Fatalf("Score() after 11 failures = %d, want 0", got)
	}

	tr.RecordSuccess() // priorFailures=11 -> credit 35
	if got := tr.Score(); got != 35 {
		t.Errorf("Score() after recovery success = %d, want 35", got)
	}
}

func TestTracker_RecordSuccess_CapsAtMaxScore(t *testing.T) {
	t.Parallel()
	tr, _ := newTestTracker()

	for i := 0; i < 50; i++ {
		tr.RecordSuccess()
	}
	if got := tr.Score(); got != maxScore {
		t.Errorf("Score() = %d, want %d", got, maxScore)
	}
}

func TestTracker_IdleDriftNudgesScoreUpAfterSilence(t *testing.T) {
	t.Parallel()
	tr, fc := newTestTracker()

	for i := 0; i < 4; i++ {
		tr.RecordFailure()
	}
	before := tr.Score()

	fc.Advance(idleDriftAfter + time.Second)
	after := tr.Score()
	if after != before+idleDriftAmount {
		t.Errorf("Score() after idle drift = %d, want %d", after, before+idleDriftAmount)
	}

	// A second read within the drift window should not nudge again.
	same := tr.Score()
	if same != after {
		t.Errorf("Score() on immediate re-read = %d, want %d (no further drift)", same, after)
	}
}

func TestTracker_IdleDriftNeverExceedsMaxScore(t *testing.T) {
	t.Parallel()
	tr, fc := newTestTracker()

	tr.RecordFailure() // 95
	fc.Advance(idleDriftAfter + time.Second)
	if got := tr.Score(); got != 100 {
		t.Errorf("Score() = %d, want 100 (95+5 capped)", got)
	}
}

func TestTracker_EmergencyRecovery_BumpsZeroScoreToTen(t *testing.T) {
	t.Parallel()
	tr, _ := newTestTracker()

	for i := 0; i < 20; i++ {
		tr.RecordFailure()
	}
	if !tr.Down() {
		t.Fatal("expected tracker to be down before EmergencyRecovery")
	}

	tr.EmergencyRecovery()
	if got := tr.Score(); got != emergencyRecoveryScore {
		t.Errorf("Score() = %d, want %d", got, emergencyRecoveryScore)
	}
	if got := tr.ConsecutiveFailures(); got != 0 {
		t.Errorf("ConsecutiveFailures() = %d, want 0", got)
	}
}

func TestTracker_EmergencyRecovery_NoOpWhenNotFullyDown(t *testing.T) {
	t.Parallel()
	tr, _ := newTestTracker()

	tr.RecordFailure() // score 95
	tr.EmergencyRecovery()
	if got := tr.Score(); got != 95 {
		t.Errorf("Score() = %d, want 95 (EmergencyRecovery should not touch a nonzero score)", got)
	}
}

func TestTracker_HealthyThreshold(t *testing.T) {
	t.Parallel()
	tr, _ := newTestTracker()

	// Drive score to exactly the threshold boundary: 100 -> 95 -> 85 -> 65 -> 30 -> 0(floor).
	// Instead, target precisely healthyThreshold using targeted failures.
	for tr.Score() > healthyThreshold {
		tr.RecordFailure()
	}
	if tr.Healthy() {
		t.Errorf("Healthy() = true at score %d, want false (threshold is exclusive)", tr.Score())
	}
}
