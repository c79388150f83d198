package daemon

import (
	"testing"
	"time"
)

// fakeTimers records timer creation and lets tests fire or stop them by hand.
type fakeTimers struct {
	created []time.Duration
	fires   []func()
	stopped int
}

func (f *fakeTimers) factory(d time.Duration, fire func()) func() bool {
	f.created = append(f.created, d)
	f.fires = append(f.fires, fire)
	return func() bool {
		f.stopped++
		return true
	}
}

func newTestScheduler(timers *fakeTimers) *RetryScheduler {
	s := NewRetryScheduler(2, 30*time.Second)
	s.newTimer = timers.factory
	return s
}

func TestScheduleFirstFailure(t *testing.T) {
	timers := &fakeTimers{}
	s := newTestScheduler(timers)

	attempt, ok := s.Schedule("task-1", func() {})
	if !ok || attempt != 1 {
		t.Fatalf("Schedule = (%d, %v), want (1, true)", attempt, ok)
	}
	if len(timers.created) != 1 || timers.created[0] != 30*time.Second {
		t.Errorf("timers created = %v", timers.created)
	}
	if !s.Pending("task-1") {
		t.Error("no pending timer recorded")
	}
	if s.Count("task-1") != 1 {
		t.Errorf("count = %d", s.Count("task-1"))
	}
}

func TestScheduleWhilePendingCountsWithoutSecondTimer(t *testing.T) {
	timers := &fakeTimers{}
	s := newTestScheduler(timers)

	s.Schedule("task-1", func() {})
	attempt, ok := s.Schedule("task-1", func() {})
	if !ok || attempt != 2 {
		t.Fatalf("second Schedule = (%d, %v), want (2, true)", attempt, ok)
	}
	if len(timers.created) != 1 {
		t.Errorf("timers created = %d, want 1", len(timers.created))
	}
}

func TestScheduleExhaustedBudget(t *testing.T) {
	timers := &fakeTimers{}
	s := newTestScheduler(timers)

	s.Schedule("task-1", func() {})
	s.Schedule("task-1", func() {})

	// The ceiling check runs before the increment: a refused attempt leaves
	// the count where it was.
	attempt, ok := s.Schedule("task-1", func() {})
	if ok {
		t.Fatal("Schedule allowed a third retry with max 2")
	}
	if attempt != 2 {
		t.Errorf("returned count = %d, want 2", attempt)
	}
	if s.Count("task-1") != 2 {
		t.Errorf("count after refusal = %d, want 2", s.Count("task-1"))
	}
	if len(timers.created) != 1 {
		t.Errorf("timers created = %d, want 1", len(timers.created))
	}
}

func TestTimerFireRequeuesAndClearsPending(t *testing.T) {
	timers := &fakeTimers{}
	s := newTestScheduler(timers)

	requeued := 0
	s.Schedule("task-1", func() { requeued++ })

	timers.fires[0]()
	if requeued != 1 {
		t.Fatalf("requeued = %d, want 1", requeued)
	}
	if s.Pending("task-1") {
		t.Error("pending marker survived the fire")
	}
	// The count survives: the next failure is attempt 2.
	if attempt, ok := s.Schedule("task-1", func() { requeued++ }); !ok || attempt != 2 {
		t.Errorf("Schedule after fire = (%d, %v), want (2, true)", attempt, ok)
	}
	if len(timers.created) != 2 {
		t.Errorf("timers created = %d, want 2 (pending cleared by fire)", len(timers.created))
	}
}

func TestCancelStopsTimerKeepsCount(t *testing.T) {
	timers := &fakeTimers{}
	s := newTestScheduler(timers)

	s.Schedule("task-1", func() {})
	s.Cancel("task-1")
	if timers.stopped != 1 {
		t.Errorf("timers stopped = %d, want 1", timers.stopped)
	}
	if s.Pending("task-1") {
		t.Error("pending after cancel")
	}
	if s.Count("task-1") != 1 {
		t.Errorf("count after cancel = %d, want 1", s.Count("task-1"))
	}

	// Cancel with nothing pending is a no-op.
	s.Cancel("task-1")
	if timers.stopped != 1 {
		t.Errorf("no-op cancel stopped a timer")
	}
}

func TestResetClearsHistory(t *testing.T) {
	timers := &fakeTimers{}
	s := newTestScheduler(timers)

	s.Schedule("task-1", func() {})
	s.Schedule("task-1", func() {})
	s.Reset("task-1")

	if s.Count("task-1") != 0 {
		t.Errorf("count after reset = %d", s.Count("task-1"))
	}
	if attempt, ok := s.Schedule("task-1", func() {}); !ok || attempt != 1 {
		t.Errorf("Schedule after reset = (%d, %v), want (1, true)", attempt, ok)
	}
}

func TestSchedulerDefaults(t *testing.T) {
	s := NewRetryScheduler(0, 0)
	if s.MaxRetries() != DefaultMaxTaskRetries {
		t.Errorf("max retries = %d", s.MaxRetries())
	}
	if s.Delay() != DefaultRetryDelay {
		t.Errorf("delay = %s", s.Delay())
	}
}
