package stream

import "encoding/json"

// ParseEvent decodes the payload of an envelope into its typed form.
// Unknown tags return (nil, nil) and are silently skipped for forward
// compatibility. A decode failure returns a *DecodeError; the envelope
// carries no other recoverable content.
func ParseEvent(env Envelope) (any, error) {
	decode := func(v any) (any, error) {
		if len(env.Payload) == 0 {
			return v, nil
		}
		if err := json.Unmarshal(env.Payload, v); err != nil {
			return nil, &DecodeError{Tag: env.Tag, Cause: err, Payload: string(env.Payload)}
		}
		return v, nil
	}

	switch env.Tag {
	case TagAgentStart:
		return decode(&AgentStartPayload{})
	case TagAgentSelection:
		return decode(&AgentSelectionPayload{})
	case TagAgentExecution:
		return decode(&AgentExecutionPayload{})
	case TagStatus:
		return decode(&StatusPayload{})
	case TagWorkflow:
		return decode(&WorkflowPayload{})
	case TagNodeResult:
		return decode(&NodeResultPayload{})
	case TagExplanation:
		return decode(&ExplanationPayload{})
	case TagAnswer:
		return decode(&AnswerPayload{})
	case TagToolProgress:
		return decode(&ToolProgressPayload{})
	case TagToolRetry:
		return decode(&ToolRetryPayload{})
	case TagActionStart:
		return decode(&ActionStartPayload{})
	case TagActionComplete:
		return decode(&ActionCompletePayload{})
	case TagAgentThinking:
		return decode(&AgentThinkingPayload{})
	case TagStreamThinking:
		return decode(&StreamThinkingPayload{})
	case TagAgentError:
		return decode(&AgentErrorPayload{})
	case TagAgentEvaluation:
		return decode(&AgentEvaluationPayload{})
	case TagAgentComplete:
		return decode(&AgentCompletePayload{})
	case TagUsage:
		// Opaque side-channel record, stored as-is for later display.
		raw := make(json.RawMessage, len(env.Payload))
		copy(raw, env.Payload)
		return raw, nil
	case TagPlaybookUpdate:
		return decode(&PlaybookUpdatePayload{})
	case TagUserInputRequired:
		return decode(&UserInputRequiredPayload{})
	case TagComplete:
		// Terminal signal, no payload.
		return env.Tag, nil
	default:
		return nil, nil
	}
}
