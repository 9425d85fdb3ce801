package render

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alishangtian/proteus-stream/stream"
)

func snapshotWith(entries []stream.Entry, completion string) *stream.Snapshot {
	return &stream.Snapshot{Entries: entries, Completion: completion}
}

func TestTerminalPrintsNewEntriesOnce(t *testing.T) {
	var buf strings.Builder
	term := NewTerminal(&buf, false, true)

	entries := []stream.Entry{{Kind: stream.EntryStatus, Text: "working"}}
	term.Update(snapshotWith(entries, ""))
	term.Update(snapshotWith(entries, ""))

	if got := strings.Count(buf.String(), "working"); got != 1 {
		t.Fatalf("entry printed %d times, want 1:\n%s", got, buf.String())
	}
}

func TestTerminalStreamsDeltas(t *testing.T) {
	var buf strings.Builder
	term := NewTerminal(&buf, false, true)

	term.Update(snapshotWith(nil, "The answer "))
	term.Update(snapshotWith(nil, "The answer is 42."))

	if got := buf.String(); got != "The answer is 42." {
		t.Fatalf("streamed output = %q, want exactly one copy of the text", got)
	}
}

func TestTerminalVerboseActionTransitions(t *testing.T) {
	var buf strings.Builder
	term := NewTerminal(&buf, true, true)

	running := &stream.ActionExecution{ID: "a1", Name: "search", Status: stream.ActionRunning}
	term.Update(&stream.Snapshot{Actions: []*stream.ActionExecution{running}})
	term.Update(&stream.Snapshot{Actions: []*stream.ActionExecution{running}})

	done := &stream.ActionExecution{ID: "a1", Name: "search", Status: stream.ActionCompleted, Duration: time.Second}
	term.Update(&stream.Snapshot{Actions: []*stream.ActionExecution{done}})

	out := buf.String()
	if got := strings.Count(out, "running"); got != 1 {
		t.Fatalf("running line printed %d times, want 1:\n%s", got, out)
	}
	if !strings.Contains(out, "✓") {
		t.Fatalf("completion transition never printed:\n%s", out)
	}
}

func TestTerminalNoColorForPlainWriter(t *testing.T) {
	var buf strings.Builder
	term := NewTerminal(&buf, false, false)

	term.Update(snapshotWith([]stream.Entry{{Kind: stream.EntryStatus, Text: "x"}}, ""))

	if strings.Contains(buf.String(), "\x1b[") {
		t.Fatalf("ANSI escapes emitted to a non-terminal writer:\n%q", buf.String())
	}
}

func TestTerminalErrorLine(t *testing.T) {
	var buf strings.Builder
	term := NewTerminal(&buf, false, true)

	term.Error(&stream.TransportError{Cause: errors.New("connection reset")})

	out := buf.String()
	if !strings.Contains(out, "[Error]") || !strings.Contains(out, "connection reset") {
		t.Fatalf("error line = %q", out)
	}
}
