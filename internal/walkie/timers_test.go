package walkie

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestSupervisorFires(t *testing.T) {
	sup := NewTimeoutSupervisor()
	fired := make(chan struct{})

	sup.Arm(TimerRecording, 10*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("Expected timer to fire")
	}

	if sup.Armed(TimerRecording) {
		t.Error("Expected timer disarmed after firing")
	}
}

func TestSupervisorCancelPreventsFire(t *testing.T) {
	sup := NewTimeoutSupervisor()
	var fired int32

	sup.Arm(TimerRecording, 20*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	sup.Cancel(TimerRecording)

	time.Sleep(60 * time.Millisecond)
	if n := atomic.LoadInt32(&fired); n != 0 {
		t.Errorf("Expected cancelled timer not to fire, fired %d times", n)
	}
	if sup.Armed(TimerRecording) {
		t.Error("Expected timer disarmed after cancel")
	}
}

func TestSupervisorRearmReplacesPrevious(t *testing.T) {
	sup := NewTimeoutSupervisor()
	var first, second int32

	sup.Arm(TimerProcessing, 20*time.Millisecond, func() { atomic.AddInt32(&first, 1) })
	sup.Arm(TimerProcessing, 40*time.Millisecond, func() { atomic.AddInt32(&second, 1) })

	time.Sleep(120 * time.Millisecond)

	if n := atomic.LoadInt32(&first); n != 0 {
		t.Errorf("Expected replaced timer not to fire, fired %d times", n)
	}
	if n := atomic.LoadInt32(&second); n != 1 {
		t.Errorf("Expected replacement timer to fire once, fired %d times", n)
	}
}

func TestSupervisorKindsIndependent(t *testing.T) {
	sup := NewTimeoutSupervisor()
	var recording int32
	fired := make(chan struct{})

	sup.Arm(TimerRecording, 500*time.Millisecond, func() { atomic.AddInt32(&recording, 1) })
	sup.Arm(TimerProcessing, 10*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("Expected processing timer to fire")
	}

	if !sup.Armed(TimerRecording) {
		t.Error("Expected recording timer to stay armed")
	}
	sup.CancelAll()
	if sup.Armed(TimerRecording) {
		t.Error("Expected CancelAll to disarm remaining timers")
	}
	if n := atomic.LoadInt32(&recording); n != 0 {
		t.Errorf("Expected recording timer not to fire, fired %d times", n)
	}
}
