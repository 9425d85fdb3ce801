package stream

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EntryKind classifies a transcript entry.
type EntryKind int

const (
	EntryStatus EntryKind = iota
	EntrySelection
	EntryExecution
	EntryThought
	EntryRetry
	EntryError
	EntryEvaluation
	EntryInputRequest
	EntryWorkflow
)

// Entry is one presentational transcript item. Entries carry only the
// fields their kind uses; the projection layer decides how to show them.
type Entry struct {
	Kind       EntryKind
	Timestamp  time.Time
	Text       string
	AgentName  string
	Step       string
	Attempt    int
	MaxRetries int
	Evaluation *EvaluationResult
	Input      *UserInputRequiredPayload
}

// Session holds one conversational turn's worth of streaming state. All
// state is owned exclusively by one controller; handlers mutate it under
// the controller's lock and the projection reads copies.
type Session struct {
	ID              string
	StartedAt       time.Time
	Query           string
	IterationCount  int
	CurrentActionID string

	Explanation TextAccumulator
	Answer      TextAccumulator
	Thinking    TextAccumulator
	Completion  TextAccumulator

	// ThinkingDone is set when the thinking stream's embedded sentinel
	// arrives; later thinking deltas are still appended but the
	// indicator stops spinning.
	ThinkingDone bool

	Ledger   *ActionLedger
	Registry *ResultRegistry

	Workflow []WorkflowNode
	Playbook []PlaybookTask
	Usage    json.RawMessage

	Entries []Entry
}

// NewSession creates a fresh session aggregate for one turn.
func NewSession() *Session {
	return &Session{
		ID:             uuid.NewString(),
		StartedAt:      time.Now(),
		IterationCount: 1,
		Ledger:         newActionLedger(),
		Registry:       newResultRegistry(),
	}
}

func (s *Session) appendEntry(e Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	s.Entries = append(s.Entries, e)
}

// Snapshot is the projection input: a copy of the session state cheap
// enough to rebuild on every event. The presentation layer derives its
// view model from a snapshot and nothing else. Entry, workflow, and
// playbook slices are copied; Actions and Nodes alias the live records,
// so a snapshot retained past its callback observes later mutations.
type Snapshot struct {
	SessionID       string
	StartedAt       time.Time
	Query           string
	Iteration       int
	Explanation     string
	Answer          string
	AnswerFinal     bool
	Thinking        string
	ThinkingDone    bool
	Completion      string
	CompletionFinal bool
	Actions         []*ActionExecution
	Nodes           []*NodeResult
	Workflow        []WorkflowNode
	Playbook        []PlaybookTask
	Usage           json.RawMessage
	Entries         []Entry
}

// Snapshot projects the current session state.
func (s *Session) Snapshot() *Snapshot {
	entries := make([]Entry, len(s.Entries))
	copy(entries, s.Entries)
	playbook := make([]PlaybookTask, len(s.Playbook))
	copy(playbook, s.Playbook)
	workflow := make([]WorkflowNode, len(s.Workflow))
	copy(workflow, s.Workflow)

	return &Snapshot{
		SessionID:       s.ID,
		StartedAt:       s.StartedAt,
		Query:           s.Query,
		Iteration:       s.IterationCount,
		Explanation:     s.Explanation.Value(),
		Answer:          s.Answer.Value(),
		AnswerFinal:     s.Answer.IsFinal(),
		Thinking:        s.Thinking.Value(),
		ThinkingDone:    s.ThinkingDone,
		Completion:      s.Completion.Value(),
		CompletionFinal: s.Completion.IsFinal(),
		Actions:         s.Ledger.All(),
		Nodes:           s.Registry.All(),
		Workflow:        workflow,
		Playbook:        playbook,
		Usage:           s.Usage,
		Entries:         entries,
	}
}
