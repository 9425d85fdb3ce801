package stream

import (
	"log/slog"
	"time"
)

// Default sentinels and timing. The grace period is max(12 × the
// per-character delay, the floor), measured from the terminal signal.
const (
	DefaultThinkingSentinel   = "[THINKING_DONE]"
	DefaultCompletionSentinel = "[DONE]"
	DefaultCharDelay          = 25 * time.Millisecond
	DefaultGraceFloor         = 300 * time.Millisecond
)

// FinalRenderer is the expensive final-only render path applied once to
// the accumulated completion text (formula and diagram expansion). It
// runs exactly once per session; a failure substitutes the plain text.
type FinalRenderer func(markdown string) (string, error)

// Config holds controller configuration.
type Config struct {
	// Logger receives structured diagnostics. Defaults to slog.Default().
	Logger *slog.Logger

	// FileSink receives file_write emissions. Nil disables the side effect.
	FileSink FileSink

	// FinalRenderer is applied to the completion text on finalize.
	// Nil leaves the text as-is.
	FinalRenderer FinalRenderer

	// ThinkingSentinel is the done marker embedded in thinking deltas.
	ThinkingSentinel string

	// CompletionSentinel is the terminal marker embedded in completion
	// fragments.
	CompletionSentinel string

	// CharDelay is the per-character render pacing used to size the
	// grace period.
	CharDelay time.Duration

	// GraceFloor is the minimum grace period after the terminal signal.
	GraceFloor time.Duration
}

// GracePeriod returns the bounded wait applied when the terminal signal
// races an in-flight completion stream.
func (c Config) GracePeriod() time.Duration {
	grace := 12 * c.CharDelay
	if grace < c.GraceFloor {
		grace = c.GraceFloor
	}
	return grace
}

// Option is a functional option for configuring a Controller.
type Option func(*Config)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithFileSink enables the file_write emission side effect.
func WithFileSink(sink FileSink) Option {
	return func(c *Config) {
		c.FileSink = sink
	}
}

// WithFinalRenderer sets the expensive final-only render path.
func WithFinalRenderer(r FinalRenderer) Option {
	return func(c *Config) {
		c.FinalRenderer = r
	}
}

// WithThinkingSentinel overrides the thinking done marker.
func WithThinkingSentinel(sentinel string) Option {
	return func(c *Config) {
		c.ThinkingSentinel = sentinel
	}
}

// WithCompletionSentinel overrides the completion terminal marker.
func WithCompletionSentinel(sentinel string) Option {
	return func(c *Config) {
		c.CompletionSentinel = sentinel
	}
}

// WithGraceCharDelay sets the per-character delay the grace period is
// derived from.
func WithGraceCharDelay(d time.Duration) Option {
	return func(c *Config) {
		c.CharDelay = d
	}
}

// WithGraceFloor sets the minimum grace period.
func WithGraceFloor(d time.Duration) Option {
	return func(c *Config) {
		c.GraceFloor = d
	}
}

func defaultConfig() Config {
	return Config{
		Logger:             slog.Default(),
		ThinkingSentinel:   DefaultThinkingSentinel,
		CompletionSentinel: DefaultCompletionSentinel,
		CharDelay:          DefaultCharDelay,
		GraceFloor:         DefaultGraceFloor,
	}
}
