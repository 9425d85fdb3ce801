package transport

import (
	"bufio"
	"context"
	"os"
	"sync"
	"time"

	"github.com/buger/jsonparser"
	"github.com/fsnotify/fsnotify"

	"github.com/alishangtian/proteus-stream/stream"
)

// Replay feeds a recorded event log (one JSON envelope per line, tag in
// the "type" field) into a controller, optionally paced and optionally
// following the file as it grows. It implements stream.Transport.
type Replay struct {
	path      string
	pace      time.Duration
	follow    bool
	closed    chan struct{}
	closeOnce sync.Once
}

// ReplayOption configures a Replay.
type ReplayOption func(*Replay)

// WithPace delays each dispatched event by d, approximating live arrival.
func WithPace(d time.Duration) ReplayOption {
	return func(r *Replay) {
		r.pace = d
	}
}

// WithFollow keeps reading as the log grows, like tail -f. Run returns
// only on Close, context cancellation, or a watch failure.
func WithFollow() ReplayOption {
	return func(r *Replay) {
		r.follow = true
	}
}

// NewReplay creates a replay transport for the given log file.
func NewReplay(path string, opts ...ReplayOption) *Replay {
	r := &Replay{path: path, closed: make(chan struct{})}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Close stops the replay. Idempotent.
func (r *Replay) Close() error {
	r.closeOnce.Do(func() {
		close(r.closed)
	})
	return nil
}

// Run replays the log into the controller. Lines that do not carry a
// recognizable tag are skipped; payload decode problems are the
// controller's concern.
func (r *Replay) Run(ctx context.Context, c *stream.Controller) error {
	f, err := os.Open(r.path)
	if err != nil {
		c.TransportError(err)
		return err
	}
	defer f.Close()

	var watcher *fsnotify.Watcher
	if r.follow {
		watcher, err = fsnotify.NewWatcher()
		if err != nil {
			c.TransportError(err)
			return err
		}
		defer watcher.Close()
		if err := watcher.Add(r.path); err != nil {
			c.TransportError(err)
			return err
		}
	}

	reader := bufio.NewReaderSize(f, 64*1024)
	var partial []byte
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 && err == nil {
			if len(partial) > 0 {
				line = append(partial, line...)
				partial = nil
			}
			if env, ok := ParseLine(line); ok {
				c.Dispatch(env)
				if r.pace > 0 {
					if stopped := r.sleep(ctx, r.pace); stopped {
						return nil
					}
				}
			}
			continue
		}

		if err == nil {
			continue
		}

		// EOF (or partial trailing line). Without follow we are done.
		if !r.follow {
			if len(line) > 0 {
				if env, ok := ParseLine(line); ok {
					c.Dispatch(env)
				}
			}
			return nil
		}
		partial = append(partial, line...)

		if stopped, werr := r.waitForWrite(ctx, watcher); stopped {
			return nil
		} else if werr != nil {
			c.TransportError(werr)
			return werr
		}
	}
}

func (r *Replay) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return false
	case <-ctx.Done():
		return true
	case <-r.closed:
		return true
	}
}

func (r *Replay) waitForWrite(ctx context.Context, watcher *fsnotify.Watcher) (stopped bool, err error) {
	for {
		select {
		case <-ctx.Done():
			return true, nil
		case <-r.closed:
			return true, nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return true, nil
			}
			if ev.Has(fsnotify.Write) {
				return false, nil
			}
		case werr, ok := <-watcher.Errors:
			if !ok {
				return true, nil
			}
			return false, werr
		}
	}
}

// ParseLine extracts an envelope from one recorded log line. The tag
// lives in the "type" field; the whole object is kept as the payload
// (payload decoding ignores the tag field). Returns false for blank or
// untagged lines.
func ParseLine(line []byte) (stream.Envelope, bool) {
	tag, err := jsonparser.GetString(line, "type")
	if err != nil || tag == "" {
		return stream.Envelope{}, false
	}
	payload := make([]byte, len(line))
	copy(payload, line)
	return stream.Envelope{Tag: stream.EventTag(tag), Payload: payload}, true
}
