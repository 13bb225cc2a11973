package cartsync

import (
	"sync"
	"time"
)

// DefaultQuietPeriod is the delay after the last mutation before a sync runs
const DefaultQuietPeriod = 1000 * time.Millisecond

// Timer is the handle returned by Clock.AfterFunc
type Timer = interface{ Stop() bool }

// Clock abstracts time so the debounce can be driven by tests
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// SystemClock returns a Clock backed by the time package
func SystemClock() Clock {
	return realClock{}
}

// Scheduler owns a single cancelable timer. Scheduling always replaces
// the previous timer; a callback whose timer was replaced or cancelled
// never runs, even if it already fired concurrently.
type Scheduler struct {
	clock Clock
	delay time.Duration

	mu    sync.Mutex
	timer Timer
	seq   uint64
}

// NewScheduler creates a scheduler with the given quiet period
func NewScheduler(clock Clock, delay time.Duration) *Scheduler {
	if clock == nil {
		clock = SystemClock()
	}
	if delay <= 0 {
		delay = DefaultQuietPeriod
	}
	return &Scheduler{clock: clock, delay: delay}
}

// Schedule cancels any pending timer and runs fn after the quiet period
func (s *Scheduler) Schedule(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}
	s.seq++
	seq := s.seq
	s.timer = s.clock.AfterFunc(s.delay, func() {
		s.mu.Lock()
		if seq != s.seq || s.timer == nil {
			s.mu.Unlock()
			return
		}
		s.timer = nil
		s.mu.Unlock()
		fn()
	})
}

// Cancel stops the pending timer and reports whether one was pending
func (s *Scheduler) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer == nil {
		return false
	}
	s.timer.Stop()
	s.timer = nil
	s.seq++
	return true
}

// Pending reports whether a timer is waiting to fire
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

// Delay returns the configured quiet period
func (s *Scheduler) Delay() time.Duration {
	return s.delay
}
