package daemon

import (
	"sync"
	"time"
)

const (
	// DefaultMaxTaskRetries caps transient retries per task across its
	// whole lifetime in this daemon process.
	DefaultMaxTaskRetries = 2
	// DefaultRetryDelay is how long a task waits before re-queueing.
	DefaultRetryDelay = 30 * time.Second
)

// timerFactory lets tests replace real timers with synchronous fakes.
// The returned stop function mirrors time.Timer.Stop.
type timerFactory func(d time.Duration, fire func()) (stop func() bool)

func realTimer(d time.Duration, fire func()) func() bool {
	t := time.AfterFunc(d, fire)
	return t.Stop
}

// RetryScheduler decides whether a transiently failed task gets another
// attempt and owns the delay timer for each pending retry. Counts and
// pending markers are shared across all tasks, so every mutation holds the
// lock.
type RetryScheduler struct {
	mu          sync.Mutex
	retryCounts map[string]int
	pending     map[string]func() bool // stop functions for live timers

	maxRetries int
	delay      time.Duration
	newTimer   timerFactory
}

// NewRetryScheduler builds a scheduler with the given ceilings. Zero values
// fall back to the defaults.
func NewRetryScheduler(maxRetries int, delay time.Duration) *RetryScheduler {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxTaskRetries
	}
	if delay <= 0 {
		delay = DefaultRetryDelay
	}
	return &RetryScheduler{
		retryCounts: make(map[string]int),
		pending:     make(map[string]func() bool),
		maxRetries:  maxRetries,
		delay:       delay,
		newTimer:    realTimer,
	}
}

// Schedule records one transient failure for the task and, when the budget
// allows, arranges a delayed re-enqueue via requeue. It returns false when
// the task has exhausted its retries, leaving the count untouched so the
// caller can fail the task normally.
//
// A second failure while a timer is already pending still counts, but never
// creates a second timer.
func (s *RetryScheduler) Schedule(taskID string, requeue func()) (attempt int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.retryCounts[taskID] >= s.maxRetries {
		return s.retryCounts[taskID], false
	}

	s.retryCounts[taskID]++
	attempt = s.retryCounts[taskID]

	if _, exists := s.pending[taskID]; exists {
		return attempt, true
	}

	s.pending[taskID] = s.newTimer(s.delay, func() {
		s.mu.Lock()
		delete(s.pending, taskID)
		s.mu.Unlock()
		requeue()
	})
	return attempt, true
}

// Cancel stops a pending retry timer, if any. The retry count survives; a
// cancelled task that comes back still carries its history.
func (s *RetryScheduler) Cancel(taskID string) {
	s.mu.Lock()
	stop, exists := s.pending[taskID]
	delete(s.pending, taskID)
	s.mu.Unlock()
	if exists {
		stop()
	}
}

// Reset clears the retry history for a task, typically after it completes.
func (s *RetryScheduler) Reset(taskID string) {
	s.mu.Lock()
	delete(s.retryCounts, taskID)
	s.mu.Unlock()
}

// Count returns the recorded retry count for a task.
func (s *RetryScheduler) Count(taskID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retryCounts[taskID]
}

// Pending reports whether a retry timer is live for the task.
func (s *RetryScheduler) Pending(taskID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.pending[taskID]
	return exists
}

// MaxRetries returns the configured ceiling.
func (s *RetryScheduler) MaxRetries() int { return s.maxRetries }

// Delay returns the configured retry delay.
func (s *RetryScheduler) Delay() time.Duration { return s.delay }
