package stream

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrFinalized is returned by accumulator appends after Finalize.
	ErrFinalized = errors.New("field already finalized")
	// ErrUnknownAction is returned by ledger lookups that miss: progress
	// or completion events addressing an action that never started.
	ErrUnknownAction = errors.New("no matching action")
)

// DecodeError indicates a malformed event payload. Decode errors are
// reported inline in the transcript and never propagate to the transport.
type DecodeError struct {
	Cause   error
	Tag     EventTag
	Payload string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s event: %v", e.Tag, e.Cause)
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// TransportError wraps a connection-level failure. Transport errors are
// terminal for the session and surfaced to the caller exactly once.
type TransportError struct {
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Cause)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// RenderError indicates the final render path failed; the controller
// substitutes a plain-text fallback so the transcript is never empty.
type RenderError struct {
	Cause error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("final render failed: %v", e.Cause)
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}
