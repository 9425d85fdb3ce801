package render

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/alishangtian/proteus-stream/stream"
)

// ANSI color codes - chosen to work on both light and dark backgrounds
const (
	colorReset  = "\x1b[0m"
	colorDim    = "\x1b[2m"
	colorItalic = "\x1b[3m"
	colorRed    = "\x1b[31m"
	colorGreen  = "\x1b[32m"
	colorYellow = "\x1b[33m"
	colorCyan   = "\x1b[36m"
	colorGray   = "\x1b[90m"
)

// Terminal is an ANSI transcript sink for the CLI. It consumes snapshots
// from the controller's update callback and prints only what changed, so
// streamed fields appear as they arrive.
type Terminal struct {
	out     io.Writer
	mu      sync.Mutex
	verbose bool
	noColor bool

	printedEntries    int
	printedThinking   int
	printedCompletion int
	printedAnswer     int
	actionStatus      map[string]stream.ActionStatus
	inThinking        bool
}

// NewTerminal creates a terminal sink writing to out. If verbose is true,
// action lifecycle lines are shown as they execute. Colors are suppressed
// when noColor is set or out is not a terminal.
func NewTerminal(out io.Writer, verbose, noColor bool) *Terminal {
	if !noColor {
		noColor = !isTerminal(out)
	}
	return &Terminal{
		out:          out,
		verbose:      verbose,
		noColor:      noColor,
		actionStatus: make(map[string]stream.ActionStatus),
	}
}

func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		stat, err := f.Stat()
		if err != nil {
			return false
		}
		return (stat.Mode() & os.ModeCharDevice) != 0
	}
	return false
}

func (t *Terminal) color(c string) string {
	if t.noColor {
		return ""
	}
	return c
}

// Update consumes one snapshot, printing newly arrived content.
func (t *Terminal) Update(snap *stream.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for ; t.printedEntries < len(snap.Entries); t.printedEntries++ {
		t.printEntry(snap.Entries[t.printedEntries])
	}
	t.printActions(snap.Actions)
	t.printedThinking = t.printDelta(snap.Thinking, t.printedThinking, t.color(colorDim)+t.color(colorItalic), true)
	t.printedAnswer = t.printDelta(snap.Answer, t.printedAnswer, "", false)
	t.printedCompletion = t.printDelta(snap.Completion, t.printedCompletion, "", false)
}

// Complete prints the turn summary.
func (t *Terminal) Complete(res stream.FinalResult) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintf(t.out, "\n%s───────────────────────────────────────────────────────%s\n",
		t.color(colorDim), t.color(colorReset))
	fmt.Fprintf(t.out, "%s✓ Session complete (%.1fs)%s\n",
		t.color(colorGreen), res.Duration.Seconds(), t.color(colorReset))
}

// Error prints a transport-level failure.
func (t *Terminal) Error(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintf(t.out, "\n%s[Error]%s %v\n", t.color(colorRed), t.color(colorReset), err)
}

func (t *Terminal) printEntry(e stream.Entry) {
	switch e.Kind {
	case stream.EntryStatus:
		fmt.Fprintf(t.out, "%s[Status]%s %s\n", t.color(colorGray), t.color(colorReset), e.Text)
	case stream.EntrySelection:
		fmt.Fprintf(t.out, "%s[Agent %s]%s %s\n", t.color(colorCyan), e.AgentName, t.color(colorReset), e.Step)
	case stream.EntryExecution:
		if t.verbose {
			fmt.Fprintf(t.out, "%s[%s %s]%s\n", t.color(colorGray), e.AgentName, e.Step, t.color(colorReset))
		}
	case stream.EntryThought:
		fmt.Fprintf(t.out, "%s%s%s%s\n", t.color(colorDim), t.color(colorItalic), e.Text, t.color(colorReset))
	case stream.EntryRetry:
		fmt.Fprintf(t.out, "%s[Retry %d/%d %s]%s %s\n",
			t.color(colorYellow), e.Attempt, e.MaxRetries, e.Step, t.color(colorReset), e.Text)
	case stream.EntryError:
		fmt.Fprintf(t.out, "%s[Error]%s %s\n", t.color(colorRed), t.color(colorReset), e.Text)
	case stream.EntryEvaluation:
		verdict := "satisfied"
		if e.Evaluation != nil && !e.Evaluation.IsSatisfied {
			verdict = "not satisfied"
		}
		fmt.Fprintf(t.out, "%s[Evaluation %s: %s]%s\n",
			t.color(colorGray), e.AgentName, verdict, t.color(colorReset))
	case stream.EntryInputRequest:
		fmt.Fprintf(t.out, "%s[Input required]%s %s\n", t.color(colorYellow), t.color(colorReset), e.Text)
	case stream.EntryWorkflow:
		fmt.Fprintf(t.out, "%s[Workflow]%s %s\n", t.color(colorGray), t.color(colorReset), e.Text)
	}
}

func (t *Terminal) printActions(actions []*stream.ActionExecution) {
	for _, a := range actions {
		prev, seen := t.actionStatus[a.ID]
		if seen && prev == a.Status {
			continue
		}
		t.actionStatus[a.ID] = a.Status
		if !t.verbose {
			continue
		}
		switch a.Status {
		case stream.ActionRunning:
			fmt.Fprintf(t.out, "%s[%s]%s running\n", t.color(colorCyan), truncate(a.Name, 60), t.color(colorReset))
		case stream.ActionCompleted:
			durationStr := ""
			if a.Duration > 0 {
				durationStr = fmt.Sprintf(" %.2fs", a.Duration.Seconds())
			}
			fmt.Fprintf(t.out, "%s[%s]%s %s✓%s%s\n",
				t.color(colorCyan), truncate(a.Name, 60), t.color(colorReset),
				t.color(colorGreen), durationStr, t.color(colorReset))
		case stream.ActionFailed:
			fmt.Fprintf(t.out, "%s[%s]%s %s✗%s\n",
				t.color(colorCyan), truncate(a.Name, 60), t.color(colorReset),
				t.color(colorRed), t.color(colorReset))
		}
	}
}

// printDelta writes the unprinted suffix of a streamed field, returning
// the new printed length.
func (t *Terminal) printDelta(value string, printed int, style string, thinking bool) int {
	if len(value) <= printed {
		return printed
	}
	delta := value[printed:]
	if thinking {
		t.inThinking = true
	} else if t.inThinking {
		fmt.Fprintln(t.out)
		t.inThinking = false
	}
	if style != "" {
		fmt.Fprintf(t.out, "%s%s%s", style, delta, t.color(colorReset))
	} else {
		fmt.Fprint(t.out, delta)
	}
	return len(value)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
