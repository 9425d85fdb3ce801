package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Transport is the push-connection boundary. The controller consumes
// decoded envelopes from it (via Dispatch) and calls Close, nothing more.
type Transport interface {
	Close() error
}

// FinalResult is delivered to the completion callback exactly once, after
// all buffered completion content has settled.
type FinalResult struct {
	// Text is the accumulated completion text, sentinel stripped.
	Text string
	// Rendered is the output of the final-only render path. When that
	// path fails, Rendered equals Text and RenderErr carries the cause.
	Rendered  string
	RenderErr error
	Usage     json.RawMessage
	Duration  time.Duration
}

// Callbacks connect the controller to its host. Callbacks are invoked
// synchronously from Dispatch (or the grace timer) and must not call back
// into the controller.
type Callbacks struct {
	// OnUpdate receives a fresh snapshot after every state-changing
	// event. Intermediate snapshots are meant for the cheap streaming
	// render path only.
	OnUpdate func(*Snapshot)
	// OnComplete fires exactly once when the session finalizes.
	OnComplete func(FinalResult)
	// OnError fires exactly once on a transport-level failure.
	OnError func(error)
	// OnInputRequired fires when the server requests a user-supplied
	// value. Submission goes through the userinput side channel.
	OnInputRequired func(UserInputRequiredPayload)
}

// Controller folds an ordered stream of typed events into one session's
// state. One controller owns one session at a time; starting a new turn
// closes the previous transport before any new state is initialized.
type Controller struct {
	mu        sync.Mutex
	cfg       Config
	cb        Callbacks
	session   *Session
	arbiter   *finalizationArbiter
	transport Transport
	notified  bool // completion or error callback already fired
}

// NewController creates a controller with no transport attached.
func NewController(cb Callbacks, opts ...Option) *Controller {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	c := &Controller{cfg: cfg, cb: cb}
	c.resetLocked()
	return c
}

// Begin starts a new turn. Any previous transport is closed first so two
// sessions never mutate overlapping presentation targets.
func (c *Controller) Begin(t Transport) *Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closeTransportLocked()
	c.resetLocked()
	c.transport = t
	return c.session
}

// Cancel aborts the current turn: the transport is closed and all
// per-session state is reset without entering the finalization path.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.arbiter.Abort()
	c.closeTransportLocked()
	c.resetLocked()
}

// Snapshot projects the current session state.
func (c *Controller) Snapshot() *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Snapshot()
}

// ArbiterState reports the finalization arbiter's state.
func (c *Controller) ArbiterState() ArbiterState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.arbiter.State()
}

// Dispatch folds one envelope into the session. It is a total function:
// malformed payloads become inline error markers, lookup misses are
// logged and ignored, and nothing propagates to the transport layer.
// Envelopes must arrive in delivery order; Dispatch never reorders.
func (c *Controller) Dispatch(env Envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.arbiter.State() == ArbiterFinalized {
		c.log().Debug("event after finalize dropped", "tag", string(env.Tag))
		return
	}

	payload, err := ParseEvent(env)
	if err != nil {
		c.log().Warn("malformed event payload", "tag", string(env.Tag), "error", err)
		c.session.appendEntry(Entry{Kind: EntryError, Text: err.Error()})
		c.update()
		return
	}
	if payload == nil {
		// Unknown tag: ignored for forward compatibility.
		return
	}

	switch p := payload.(type) {
	case *AgentStartPayload:
		c.handleAgentStart(p)
	case *AgentSelectionPayload:
		c.session.appendEntry(Entry{
			Kind:      EntrySelection,
			Timestamp: tsToTime(p.Timestamp),
			AgentName: p.AgentName,
			Text:      p.SelectionReason,
			Step:      p.AgentTask,
		})
	case *AgentExecutionPayload:
		c.session.appendEntry(Entry{
			Kind:      EntryExecution,
			Timestamp: tsToTime(p.Timestamp),
			AgentName: p.AgentName,
			Step:      p.ExecutionStep,
			Text:      string(p.ExecutionData),
		})
	case *StatusPayload:
		c.session.appendEntry(Entry{Kind: EntryStatus, Text: p.Message})
	case *WorkflowPayload:
		c.handleWorkflow(p)
	case *NodeResultPayload:
		c.session.Registry.Upsert(p, c.session.IterationCount)
	case *ExplanationPayload:
		c.handleExplanation(p)
	case *AnswerPayload:
		c.handleAnswer(p)
	case *ToolProgressPayload:
		c.handleToolProgress(p)
	case *ToolRetryPayload:
		c.session.appendEntry(Entry{
			Kind:       EntryRetry,
			Text:       p.Error,
			Step:       p.Tool,
			Attempt:    p.Attempt,
			MaxRetries: p.MaxRetries,
		})
	case *ActionStartPayload:
		action := c.session.Ledger.Start(p.ActionID, p.Action, p.Input, tsToTime(p.Timestamp))
		c.session.CurrentActionID = action.ID
	case *ActionCompletePayload:
		c.handleActionComplete(p)
	case *AgentThinkingPayload:
		c.session.appendEntry(Entry{
			Kind:      EntryThought,
			Timestamp: tsToTime(p.Timestamp),
			Text:      p.Thought,
		})
	case *StreamThinkingPayload:
		_, done := c.session.Thinking.AppendWithSentinel(p.Thinking, c.cfg.ThinkingSentinel)
		if done {
			c.session.ThinkingDone = true
		}
	case *AgentErrorPayload:
		c.session.appendEntry(Entry{
			Kind:      EntryError,
			Timestamp: tsToTime(p.Timestamp),
			Text:      p.Error,
		})
	case *AgentEvaluationPayload:
		eval := p.EvaluationResult
		c.session.appendEntry(Entry{
			Kind:       EntryEvaluation,
			Timestamp:  tsToTime(p.Timestamp),
			AgentName:  p.AgentName,
			Text:       p.Feedback,
			Evaluation: &eval,
		})
	case *AgentCompletePayload:
		c.handleAgentComplete(p)
	case json.RawMessage:
		// usage side channel: last write wins.
		c.session.Usage = p
	case *PlaybookUpdatePayload:
		tasks := make([]PlaybookTask, len(p.Tasks))
		copy(tasks, p.Tasks)
		c.session.Playbook = tasks
	case *UserInputRequiredPayload:
		c.session.appendEntry(Entry{Kind: EntryInputRequest, Text: p.Prompt, Input: p})
		if c.cb.OnInputRequired != nil {
			c.cb.OnInputRequired(*p)
		}
	case EventTag:
		// Terminal stream-complete signal.
		c.arbiter.TerminalSignal(c.withLock)
	}

	c.update()
}

// TransportError reports a connection-level failure. The session is
// terminated immediately: an inline error marker is appended, the error
// callback fires once, and partial content is left as-is. The grace
// period is never entered.
func (c *Controller) TransportError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.notified {
		return
	}
	c.notified = true
	c.arbiter.Abort()

	terr := &TransportError{Cause: err}
	c.session.appendEntry(Entry{Kind: EntryError, Text: terr.Error()})
	c.update()
	if c.cb.OnError != nil {
		c.cb.OnError(terr)
	}
	c.closeTransportLocked()
}

func (c *Controller) handleAgentStart(p *AgentStartPayload) {
	c.session.Query = p.Query
}

func (c *Controller) handleWorkflow(p *WorkflowPayload) {
	// Each workflow graph announcement is an iteration boundary.
	c.session.IterationCount++
	nodes := make([]WorkflowNode, len(p.Nodes))
	copy(nodes, p.Nodes)
	c.session.Workflow = nodes
	c.session.appendEntry(Entry{Kind: EntryWorkflow, Text: workflowSummary(nodes)})
}

func (c *Controller) handleExplanation(p *ExplanationPayload) {
	if p.Success != nil && !*p.Success {
		c.session.appendEntry(Entry{Kind: EntryError, Text: p.Data})
		return
	}
	if _, err := c.session.Explanation.Append(p.Data); err != nil {
		c.log().Warn("explanation fragment rejected", "error", err)
	}
}

func (c *Controller) handleAnswer(p *AnswerPayload) {
	if p.Success != nil && !*p.Success {
		c.session.appendEntry(Entry{Kind: EntryError, Text: p.Data})
		return
	}
	if _, err := c.session.Answer.Append(p.Data); err != nil {
		c.log().Warn("answer fragment rejected", "error", err)
		return
	}
	if p.IsFinal {
		c.session.Answer.Finalize()
	}
}

func (c *Controller) handleToolProgress(p *ToolProgressPayload) {
	id := p.ActionID
	if id == "" {
		id = c.session.CurrentActionID
	}
	if _, err := c.session.Ledger.Progress(id, p.Progress); err != nil {
		// Plausible under reordering/packet loss; tolerated.
		c.log().Warn("progress for unknown action", "action_id", id, "error", err)
	}
}

func (c *Controller) handleActionComplete(p *ActionCompletePayload) {
	id := p.ActionID
	if id == "" {
		id = c.session.CurrentActionID
	}
	action, err := c.session.Ledger.Complete(id, p.Result, tsToTime(p.Timestamp))
	if err != nil {
		// A start must always precede a completion; never fabricate a
		// record from a completion alone.
		c.log().Warn("completion for unknown action dropped", "action_id", id, "error", err)
		return
	}
	if action.Name == "file_write" {
		c.emitFile(action)
	}
}

func (c *Controller) handleAgentComplete(p *AgentCompletePayload) {
	c.arbiter.StreamStarted()
	if _, settled := c.session.Completion.AppendWithSentinel(p.Result, c.cfg.CompletionSentinel); settled {
		c.arbiter.StreamSettled()
	}
}

// emitFile triggers the file-emission side effect for file_write actions.
// Fire-and-forget: it never blocks subsequent event processing.
func (c *Controller) emitFile(action *ActionExecution) {
	sink := c.cfg.FileSink
	if sink == nil {
		return
	}
	in, ok := parseFileWriteInput(action.Input)
	if !ok {
		c.log().Warn("file_write input unrecognized", "action_id", action.ID)
		return
	}
	name := in.FileName
	if name == "" {
		name = "untitled.txt"
	}
	filename := SanitizeFilename(name)
	mimeType := MIMEForFilename(filename)
	logger := c.log()
	go func() {
		if err := sink.Emit(filename, []byte(in.Content), mimeType); err != nil {
			logger.Warn("file emission failed", "filename", filename, "error", err)
		}
	}()
}

// finalize runs on entry to the Finalized state, with c.mu held. It seals
// the completion field, applies the expensive final-only render path,
// settles every still-running indicator, notifies the caller exactly
// once, and closes the transport.
func (c *Controller) finalize() {
	text := c.session.Completion.Finalize()

	rendered := text
	var renderErr error
	if c.cfg.FinalRenderer != nil && text != "" {
		rendered, renderErr = c.runFinalRenderer(text)
		if renderErr != nil {
			// Plain-text fallback: the transcript is never left empty.
			rendered = text
			c.log().Warn("final render fell back to plain text", "error", renderErr)
		}
	}

	now := time.Now()
	c.session.ThinkingDone = true
	c.session.Thinking.Finalize()
	c.session.Ledger.SettleRunning(now)
	c.session.Registry.SettleRunning()

	c.update()

	if !c.notified {
		c.notified = true
		if c.cb.OnComplete != nil {
			c.cb.OnComplete(FinalResult{
				Text:      text,
				Rendered:  rendered,
				RenderErr: renderErr,
				Usage:     c.session.Usage,
				Duration:  now.Sub(c.session.StartedAt),
			})
		}
	}

	c.closeTransportLocked()
}

// runFinalRenderer applies the final render path, converting panics into
// errors so a rendering engine failure cannot take down the controller.
func (c *Controller) runFinalRenderer(text string) (rendered string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &RenderError{Cause: recoveredError(r)}
		}
	}()
	rendered, err = c.cfg.FinalRenderer(text)
	if err != nil {
		return "", &RenderError{Cause: err}
	}
	return rendered, nil
}

// withLock runs f under the controller lock. Handed to the arbiter so the
// grace timer transition is serialized with Dispatch.
func (c *Controller) withLock(f func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f()
}

func (c *Controller) update() {
	if c.cb.OnUpdate != nil {
		c.cb.OnUpdate(c.session.Snapshot())
	}
}

func (c *Controller) resetLocked() {
	c.session = NewSession()
	c.arbiter = newFinalizationArbiter(c.cfg.GracePeriod(), c.finalize)
	c.notified = false
}

func (c *Controller) closeTransportLocked() {
	if c.transport == nil {
		return
	}
	if err := c.transport.Close(); err != nil {
		c.log().Warn("transport close failed", "error", err)
	}
	c.transport = nil
}

func (c *Controller) log() *slog.Logger {
	if c.cfg.Logger != nil {
		return c.cfg.Logger
	}
	return slog.Default()
}

func workflowSummary(nodes []WorkflowNode) string {
	if len(nodes) == 0 {
		return "workflow updated"
	}
	names := make([]byte, 0, 64)
	for i, n := range nodes {
		if i > 0 {
			names = append(names, ' ', '>', ' ')
		}
		label := n.Name
		if label == "" {
			label = n.ID
		}
		names = append(names, label...)
	}
	return string(names)
}

func recoveredError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return &panicError{value: r}
}

type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("renderer panic: %v", e.value)
}
