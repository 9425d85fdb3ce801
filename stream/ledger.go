package stream

import (
	"encoding/json"
	"fmt"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ActionStatus is the lifecycle state of a tool/action invocation.
type ActionStatus int

const (
	ActionRunning ActionStatus = iota
	ActionCompleted
	ActionFailed
)

func (s ActionStatus) String() string {
	switch s {
	case ActionRunning:
		return "running"
	case ActionCompleted:
		return "completed"
	case ActionFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ActionExecution represents one tool/action invocation. Records are
// created on a start event, mutated on progress events, sealed on a
// complete event, and kept for the rest of the session for inspection.
type ActionExecution struct {
	ID        string
	Name      string
	Input     json.RawMessage
	Result    json.RawMessage
	Status    ActionStatus
	Progress  float64
	StartedAt time.Time
	EndedAt   time.Time
	Duration  time.Duration
}

// ActionLedger is the keyed registry of a session's action invocations,
// in start order. It is owned exclusively by one Session; callers must
// not share it across sessions.
type ActionLedger struct {
	actions *orderedmap.OrderedMap[string, *ActionExecution]
}

func newActionLedger() *ActionLedger {
	return &ActionLedger{
		actions: orderedmap.New[string, *ActionExecution](),
	}
}

// Start registers a new action. When the server omits the action id, one
// is synthesized from the arrival time so the record stays addressable.
// The returned id becomes the session's current-action fallback.
func (l *ActionLedger) Start(id, name string, input json.RawMessage, startedAt time.Time) *ActionExecution {
	if id == "" {
		id = synthesizeActionID(startedAt, l.actions.Len())
	}
	action := &ActionExecution{
		ID:        id,
		Name:      name,
		Input:     input,
		Status:    ActionRunning,
		StartedAt: startedAt,
	}
	l.actions.Set(id, action)
	return action
}

// Progress updates the progress of a running action. A progress event
// for an unknown action is plausible under reordering and returns
// ErrUnknownAction without mutating anything.
func (l *ActionLedger) Progress(id string, percent float64) (*ActionExecution, error) {
	action, ok := l.actions.Get(id)
	if !ok {
		return nil, ErrUnknownAction
	}
	if percent < 0 {
		percent = 0
	} else if percent > 100 {
		percent = 100
	}
	action.Progress = percent
	return action, nil
}

// Complete seals an action with its result. A completion for an unknown
// action returns ErrUnknownAction: a start must always precede a
// completion, so the ledger never fabricates a record from a completion
// alone.
func (l *ActionLedger) Complete(id string, result json.RawMessage, endedAt time.Time) (*ActionExecution, error) {
	action, ok := l.actions.Get(id)
	if !ok {
		return nil, ErrUnknownAction
	}
	action.Status = ActionCompleted
	action.Result = result
	action.EndedAt = endedAt
	action.Duration = endedAt.Sub(action.StartedAt)
	action.Progress = 100
	return action, nil
}

// Get returns the action with the given id.
func (l *ActionLedger) Get(id string) (*ActionExecution, bool) {
	return l.actions.Get(id)
}

// Len returns the number of actions recorded this session.
func (l *ActionLedger) Len() int {
	return l.actions.Len()
}

// All returns the recorded actions in start order.
func (l *ActionLedger) All() []*ActionExecution {
	out := make([]*ActionExecution, 0, l.actions.Len())
	for pair := l.actions.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// SettleRunning marks every still-running action as completed. Applied
// when the session finalizes, so no spinner outlives the transcript.
func (l *ActionLedger) SettleRunning(endedAt time.Time) {
	for pair := l.actions.Oldest(); pair != nil; pair = pair.Next() {
		action := pair.Value
		if action.Status != ActionRunning {
			continue
		}
		action.Status = ActionCompleted
		action.EndedAt = endedAt
		action.Duration = endedAt.Sub(action.StartedAt)
	}
}

// synthesizeActionID builds a locally unique action id from the arrival
// time. The ordinal suffix keeps ids distinct when two anonymous actions
// start within the same millisecond.
func synthesizeActionID(startedAt time.Time, ordinal int) string {
	return fmt.Sprintf("action_%d_%d", startedAt.UnixMilli(), ordinal)
}
