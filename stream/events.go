package stream

import (
	"encoding/json"
	"time"
)

// EventTag discriminates between server-push event kinds.
type EventTag string

const (
	TagAgentStart         EventTag = "agent_start"
	TagAgentSelection     EventTag = "agent_selection"
	TagAgentExecution     EventTag = "agent_execution"
	TagStatus             EventTag = "status"
	TagWorkflow           EventTag = "workflow"
	TagNodeResult         EventTag = "node_result"
	TagExplanation        EventTag = "explanation"
	TagAnswer             EventTag = "answer"
	TagToolProgress       EventTag = "tool_progress"
	TagToolRetry          EventTag = "tool_retry"
	TagActionStart        EventTag = "action_start"
	TagActionComplete     EventTag = "action_complete"
	TagAgentThinking      EventTag = "agent_thinking"
	TagStreamThinking     EventTag = "agent_stream_thinking"
	TagAgentError         EventTag = "agent_error"
	TagAgentEvaluation    EventTag = "agent_evaluation"
	TagAgentComplete      EventTag = "agent_complete"
	TagUsage              EventTag = "usage"
	TagPlaybookUpdate     EventTag = "playbook_update"
	TagUserInputRequired  EventTag = "user_input_required"
	TagComplete           EventTag = "complete"
)

// Envelope is the unit of input: one tagged event as delivered by the
// transport, in arrival order. The payload is decoded lazily by tag;
// envelopes are consumed and discarded after dispatch.
type Envelope struct {
	Tag     EventTag
	Payload json.RawMessage
}

// AgentStartPayload opens a conversation turn.
type AgentStartPayload struct {
	Query string `json:"query"`
}

// AgentSelectionPayload reports which agent was chosen for a task.
type AgentSelectionPayload struct {
	AgentName       string  `json:"agent_name"`
	AgentTask       string  `json:"agent_task"`
	SelectionReason string  `json:"selection_reason"`
	Timestamp       float64 `json:"timestamp"`
}

// AgentExecutionPayload reports an agent execution step boundary.
type AgentExecutionPayload struct {
	AgentName     string          `json:"agent_name"`
	ExecutionStep string          `json:"execution_step"` // "start" or "complete"
	ExecutionData json.RawMessage `json:"execution_data"`
	Timestamp     float64         `json:"timestamp"`
}

// StatusPayload carries a transient status line.
type StatusPayload struct {
	Message string `json:"message"`
}

// WorkflowNode describes one node of a workflow graph.
type WorkflowNode struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// WorkflowPayload announces a new workflow graph. Each workflow event
// begins a new iteration of the session.
type WorkflowPayload struct {
	Nodes []WorkflowNode `json:"nodes"`
}

// NodeResultPayload carries the state of one workflow node.
type NodeResultPayload struct {
	NodeID    string          `json:"node_id"`
	Status    string          `json:"status"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Iteration *int            `json:"iteration,omitempty"`
	Completed bool            `json:"completed,omitempty"`
}

// ExplanationPayload is an incremental fragment of the explanation field.
type ExplanationPayload struct {
	Success *bool  `json:"success,omitempty"`
	Data    string `json:"data"`
}

// AnswerPayload is an incremental fragment of the answer field.
type AnswerPayload struct {
	Success *bool  `json:"success,omitempty"`
	Data    string `json:"data"`
	IsFinal bool   `json:"is_final,omitempty"`
}

// ToolProgressPayload updates progress on a running action.
type ToolProgressPayload struct {
	ActionID string  `json:"action_id,omitempty"`
	Progress float64 `json:"progress"`
}

// ToolRetryPayload notifies of a tool retry attempt. Pure notification;
// it does not mutate ledger state.
type ToolRetryPayload struct {
	Tool       string `json:"tool"`
	Attempt    int    `json:"attempt"`
	MaxRetries int    `json:"max_retries"`
	Error      string `json:"error,omitempty"`
}

// ActionStartPayload opens a tool/action invocation.
type ActionStartPayload struct {
	ActionID  string          `json:"action_id,omitempty"`
	Action    string          `json:"action"`
	Input     json.RawMessage `json:"input,omitempty"`
	Timestamp float64         `json:"timestamp"`
}

// ActionCompletePayload seals a tool/action invocation.
type ActionCompletePayload struct {
	ActionID  string          `json:"action_id,omitempty"`
	Action    string          `json:"action,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Timestamp float64         `json:"timestamp"`
}

// AgentThinkingPayload is one discrete, complete thought.
type AgentThinkingPayload struct {
	Thought   string  `json:"thought"`
	Timestamp float64 `json:"timestamp"`
}

// StreamThinkingPayload is a delta of the thinking stream. The server
// embeds a completion sentinel inside the text payload itself instead of
// sending a separate terminal event.
type StreamThinkingPayload struct {
	Thinking  string  `json:"thinking"`
	Timestamp float64 `json:"timestamp"`
}

// AgentErrorPayload reports an agent-level error for inline display.
type AgentErrorPayload struct {
	Error     string  `json:"error"`
	Timestamp float64 `json:"timestamp"`
}

// EvaluationResult is the verdict of an agent self-evaluation.
type EvaluationResult struct {
	IsSatisfied         bool     `json:"is_satisfied"`
	Reason              string   `json:"reason,omitempty"`
	NeedHandover        bool     `json:"need_handover,omitempty"`
	HandoverSuggestions []string `json:"handover_suggestions,omitempty"`
}

// AgentEvaluationPayload reports an agent self-evaluation.
type AgentEvaluationPayload struct {
	AgentName        string           `json:"agent_name"`
	EvaluationResult EvaluationResult `json:"evaluation_result"`
	Feedback         string           `json:"feedback,omitempty"`
	Timestamp        float64          `json:"timestamp"`
}

// AgentCompletePayload is an incremental fragment of the final completion
// text. It may repeat; the terminal marker is an embedded sentinel.
type AgentCompletePayload struct {
	Result string `json:"result"`
}

// PlaybookTaskStatus is the lifecycle state of a playbook task.
type PlaybookTaskStatus string

const (
	PlaybookTaskPending    PlaybookTaskStatus = "pending"
	PlaybookTaskInProgress PlaybookTaskStatus = "in_progress"
	PlaybookTaskCompleted  PlaybookTaskStatus = "completed"
)

// PlaybookTask is one entry of the agent's sub-task list.
type PlaybookTask struct {
	Description string             `json:"description"`
	Status      PlaybookTaskStatus `json:"status"`
}

// PlaybookUpdatePayload replaces the whole task list atomically.
type PlaybookUpdatePayload struct {
	Tasks []PlaybookTask `json:"tasks"`
}

// UserInputRequiredPayload asks the host to collect a value from the user.
type UserInputRequiredPayload struct {
	NodeID       string          `json:"node_id"`
	Prompt       string          `json:"prompt"`
	InputType    string          `json:"input_type"`
	DefaultValue json.RawMessage `json:"default_value,omitempty"`
	Validation   json.RawMessage `json:"validation,omitempty"`
	AgentID      string          `json:"agent_id,omitempty"`
}

// tsToTime converts a unix-seconds timestamp to a time.Time.
// Zero timestamps fall back to now so records always carry a start time.
func tsToTime(ts float64) time.Time {
	if ts <= 0 {
		return time.Now()
	}
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec)
}
