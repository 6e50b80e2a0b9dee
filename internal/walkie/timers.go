package walkie

import (
	"sync"
	"time"
)

// TimerKind identifies one of the two turn budgets
type TimerKind string

const (
	TimerRecording  TimerKind = "recording"
	TimerProcessing TimerKind = "processing"
)

type armedTimer struct {
	timer *time.Timer
	gen   uint64
}

// TimeoutSupervisor owns the turn-budget timers. At most one timer of each
// kind is armed at any instant: arming a kind cancels any previous timer of
// that kind, so a late transition can never double-fire. A cancelled
// timer's callback is guaranteed not to run even if it already expired and
// is waiting on the supervisor lock.
type TimeoutSupervisor struct {
	mu     sync.Mutex
	gen    uint64
	timers map[TimerKind]*armedTimer
}

// NewTimeoutSupervisor creates an empty supervisor
func NewTimeoutSupervisor() *TimeoutSupervisor {
	return &TimeoutSupervisor{
		timers: make(map[TimerKind]*armedTimer),
	}
}

// Arm schedules onExpire to run after d, replacing any armed timer of the
// same kind. onExpire runs on a timer goroutine without the supervisor
// lock held.
func (s *TimeoutSupervisor) Arm(kind TimerKind, d time.Duration, onExpire func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.timers[kind]; ok {
		prev.timer.Stop()
		delete(s.timers, kind)
	}

	s.gen++
	gen := s.gen

	s.timers[kind] = &armedTimer{
		gen: gen,
		timer: time.AfterFunc(d, func() {
			s.mu.Lock()
			cur, ok := s.timers[kind]
			if !ok || cur.gen != gen {
				// Cancelled or re-armed while we were waiting to fire
				s.mu.Unlock()
				return
			}
			delete(s.timers, kind)
			s.mu.Unlock()

			onExpire()
		}),
	}
}

// Cancel disarms the timer of the given kind, if armed
func (s *TimeoutSupervisor) Cancel(kind TimerKind) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[kind]; ok {
		t.timer.Stop()
		delete(s.timers, kind)
	}
}

// CancelAll disarms every timer
func (s *TimeoutSupervisor) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for kind, t := range s.timers {
		t.timer.Stop()
		delete(s.timers, kind)
	}
}

// Armed reports whether a timer of the given kind is currently armed
func (s *TimeoutSupervisor) Armed(kind TimerKind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.timers[kind]
	return ok
}
