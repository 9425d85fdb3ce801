// Package transport adapts push-connection primitives to the controller
// boundary: it frames raw bytes into envelopes and feeds them to
// Dispatch, in arrival order. Opening and closing connections is all it
// does beyond framing; stream interpretation lives in the stream package.
package transport

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"

	"github.com/alishangtian/proteus-stream/stream"
)

// SSE reads server-sent events ("event:"/"data:" frames) from a reader
// and dispatches one envelope per frame. It implements stream.Transport.
type SSE struct {
	rc        io.ReadCloser
	closeOnce sync.Once
	closeErr  error
	closed    chan struct{}
}

// NewSSE wraps an open event-stream body.
func NewSSE(rc io.ReadCloser) *SSE {
	return &SSE{rc: rc, closed: make(chan struct{})}
}

// Close terminates the underlying stream. Idempotent.
func (s *SSE) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.closeErr = s.rc.Close()
	})
	return s.closeErr
}

// Run reads frames until EOF, context cancellation, or Close, handing
// each envelope to the controller. Read failures are reported through
// the controller's transport-error path, never returned mid-stream
// without notice.
func (s *SSE) Run(ctx context.Context, c *stream.Controller) error {
	scanner := bufio.NewScanner(s.rc)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var tag string
	var data []string
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.closed:
			return nil
		default:
		}

		line := scanner.Text()
		switch {
		case line == "":
			if tag != "" || len(data) > 0 {
				c.Dispatch(stream.Envelope{
					Tag:     stream.EventTag(tag),
					Payload: []byte(strings.Join(data, "\n")),
				})
			}
			tag, data = "", nil
		case strings.HasPrefix(line, "event:"):
			tag = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		case strings.HasPrefix(line, ":"):
			// Comment/keepalive frame.
		}
	}

	if err := scanner.Err(); err != nil {
		select {
		case <-s.closed:
			// Close mid-read surfaces as a read error; not a failure.
			return nil
		default:
		}
		c.TransportError(err)
		return err
	}
	return nil
}
