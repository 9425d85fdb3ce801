package stream

import (
	"testing"
	"time"
)

// immediateExpire runs the grace callback synchronously, standing in for
// the controller's locked timer re-entry.
func immediateExpire(f func()) { f() }

func TestArbiterTerminalWithoutStream(t *testing.T) {
	finalized := 0
	a := newFinalizationArbiter(time.Minute, func() { finalized++ })

	a.TerminalSignal(immediateExpire)

	if finalized != 1 {
		t.Fatalf("finalized %d times, want 1", finalized)
	}
	if a.State() != ArbiterFinalized {
		t.Fatalf("state = %v, want finalized", a.State())
	}
}

func TestArbiterSettledBeforeTerminal(t *testing.T) {
	finalized := 0
	a := newFinalizationArbiter(time.Minute, func() { finalized++ })

	a.StreamStarted()
	a.StreamSettled()
	a.TerminalSignal(immediateExpire)

	if finalized != 1 {
		t.Fatalf("finalized %d times, want 1 with no grace wait", finalized)
	}
}

func TestArbiterGraceWaitThenSettle(t *testing.T) {
	finalized := 0
	a := newFinalizationArbiter(time.Minute, func() { finalized++ })
	scheduled := false
	cancelled := false
	a.schedule = func(d time.Duration, f func()) func() bool {
		scheduled = true
		return func() bool { cancelled = true; return true }
	}

	a.StreamStarted()
	a.TerminalSignal(immediateExpire)
	if a.State() != ArbiterGraceWait {
		t.Fatalf("state = %v, want grace-wait while stream unsettled", a.State())
	}
	if !scheduled {
		t.Fatal("grace timer was never scheduled")
	}
	if finalized != 0 {
		t.Fatal("finalized during grace wait")
	}

	a.StreamSettled()
	if finalized != 1 {
		t.Fatalf("finalized %d times after settle, want 1", finalized)
	}
	if !cancelled {
		t.Fatal("grace timer left running after early settle")
	}
}

func TestArbiterGraceExpiry(t *testing.T) {
	finalized := 0
	a := newFinalizationArbiter(time.Minute, func() { finalized++ })
	var fire func()
	a.schedule = func(d time.Duration, f func()) func() bool {
		fire = f
		return func() bool { return true }
	}

	a.StreamStarted()
	a.TerminalSignal(immediateExpire)
	fire()

	if finalized != 1 {
		t.Fatalf("finalized %d times after expiry, want 1", finalized)
	}

	// A settle landing after expiry must not finalize again.
	a.StreamSettled()
	if finalized != 1 {
		t.Fatalf("finalized %d times after late settle, want still 1", finalized)
	}
}

func TestArbiterAbortSkipsFinalize(t *testing.T) {
	finalized := 0
	a := newFinalizationArbiter(time.Minute, func() { finalized++ })
	cancelled := false
	a.schedule = func(d time.Duration, f func()) func() bool {
		return func() bool { cancelled = true; return true }
	}

	a.StreamStarted()
	a.TerminalSignal(immediateExpire)
	a.Abort()

	if finalized != 0 {
		t.Fatal("Abort ran the finalize callback")
	}
	if !cancelled {
		t.Fatal("Abort left the grace timer running")
	}
	if a.State() != ArbiterFinalized {
		t.Fatalf("state = %v, want finalized after abort", a.State())
	}
}

func TestArbiterRealTimerExpires(t *testing.T) {
	done := make(chan struct{})
	a := newFinalizationArbiter(10*time.Millisecond, func() { close(done) })

	a.StreamStarted()
	a.TerminalSignal(immediateExpire)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("grace timer never expired")
	}
}
