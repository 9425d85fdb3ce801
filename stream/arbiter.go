package stream

import "time"

// ArbiterState is the finalization arbiter's state.
type ArbiterState int

const (
	// ArbiterIdle means no completion text has streamed yet.
	ArbiterIdle ArbiterState = iota
	// ArbiterStreaming means completion fragments are in flight.
	ArbiterStreaming
	// ArbiterGraceWait means the terminal signal arrived mid-stream; the
	// arbiter waits a bounded grace period for the stream to settle.
	ArbiterGraceWait
	// ArbiterFinalized is terminal: the caller has been notified.
	ArbiterFinalized
)

func (s ArbiterState) String() string {
	switch s {
	case ArbiterIdle:
		return "idle"
	case ArbiterStreaming:
		return "streaming"
	case ArbiterGraceWait:
		return "grace-wait"
	case ArbiterFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// finalizationArbiter resolves the race between the transport's terminal
// signal and an in-flight completion stream, guaranteeing exactly one
// finalize. It is not self-synchronized: the owning controller serializes
// all calls (including the timer callback) under its own lock.
type finalizationArbiter struct {
	state      ArbiterState
	settled    bool
	grace      time.Duration
	cancelWait func() bool
	schedule   func(d time.Duration, f func()) func() bool
	onFinalize func()
}

func newFinalizationArbiter(grace time.Duration, onFinalize func()) *finalizationArbiter {
	a := &finalizationArbiter{
		state:      ArbiterIdle,
		grace:      grace,
		onFinalize: onFinalize,
	}
	a.schedule = func(d time.Duration, f func()) func() bool {
		return time.AfterFunc(d, f).Stop
	}
	return a
}

// State returns the current arbiter state.
func (a *finalizationArbiter) State() ArbiterState {
	return a.state
}

// StreamStarted records the first (or any) completion fragment.
func (a *finalizationArbiter) StreamStarted() {
	if a.state == ArbiterIdle {
		a.state = ArbiterStreaming
	}
}

// StreamSettled records that the completion stream's embedded terminal
// marker arrived. During the grace wait this finalizes immediately; while
// still streaming it lets a later terminal signal skip the grace wait.
func (a *finalizationArbiter) StreamSettled() {
	a.settled = true
	if a.state == ArbiterGraceWait {
		a.finalize()
	}
}

// TerminalSignal records the stream-level "complete" event. With no
// in-flight completion stream (or one that already settled) it finalizes
// immediately; otherwise it enters the grace wait, bounded by the
// configured timeout.
func (a *finalizationArbiter) TerminalSignal(expire func(func())) {
	switch a.state {
	case ArbiterIdle:
		a.finalize()
	case ArbiterStreaming:
		if a.settled {
			a.finalize()
			return
		}
		a.state = ArbiterGraceWait
		a.cancelWait = a.schedule(a.grace, func() {
			// Re-entry into controller-held state; expire supplies the
			// controller's lock around the transition.
			expire(a.expireGrace)
		})
	}
}

// Abort discards any pending grace timer without finalizing. Used by the
// cancellation and transport-error paths, which bypass finalization.
func (a *finalizationArbiter) Abort() {
	if a.cancelWait != nil {
		a.cancelWait()
		a.cancelWait = nil
	}
	a.state = ArbiterFinalized
}

func (a *finalizationArbiter) expireGrace() {
	if a.state == ArbiterGraceWait {
		a.finalize()
	}
}

func (a *finalizationArbiter) finalize() {
	if a.state == ArbiterFinalized {
		return
	}
	if a.cancelWait != nil {
		a.cancelWait()
		a.cancelWait = nil
	}
	a.state = ArbiterFinalized
	a.onFinalize()
}
