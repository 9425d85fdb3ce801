package stream

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseEventTypedPayloads(t *testing.T) {
	tests := []struct {
		name    string
		tag     EventTag
		payload string
		check   func(t *testing.T, v any)
	}{
		{
			name:    "agent_start",
			tag:     TagAgentStart,
			payload: `{"query":"what is 6*7"}`,
			check: func(t *testing.T, v any) {
				p := v.(*AgentStartPayload)
				if p.Query != "what is 6*7" {
					t.Fatalf("Query = %q", p.Query)
				}
			},
		},
		{
			name:    "node_result",
			tag:     TagNodeResult,
			payload: `{"node_id":"n1","status":"running","iteration":2,"completed":true}`,
			check: func(t *testing.T, v any) {
				p := v.(*NodeResultPayload)
				if p.NodeID != "n1" || p.Status != "running" {
					t.Fatalf("payload = %+v", p)
				}
				if p.Iteration == nil || *p.Iteration != 2 {
					t.Fatalf("Iteration = %v, want 2", p.Iteration)
				}
				if !p.Completed {
					t.Fatal("Completed flag lost")
				}
			},
		},
		{
			name:    "node_result without iteration",
			tag:     TagNodeResult,
			payload: `{"node_id":"n1","status":"completed"}`,
			check: func(t *testing.T, v any) {
				p := v.(*NodeResultPayload)
				if p.Iteration != nil {
					t.Fatalf("Iteration = %v, want nil for absent field", *p.Iteration)
				}
			},
		},
		{
			name:    "answer with is_final",
			tag:     TagAnswer,
			payload: `{"data":"42","is_final":true}`,
			check: func(t *testing.T, v any) {
				p := v.(*AnswerPayload)
				if p.Data != "42" || !p.IsFinal {
					t.Fatalf("payload = %+v", p)
				}
				if p.Success != nil {
					t.Fatal("Success should be nil when absent")
				}
			},
		},
		{
			name:    "user_input_required",
			tag:     TagUserInputRequired,
			payload: `{"node_id":"n1","prompt":"port?","input_type":"local_port","default_value":8900}`,
			check: func(t *testing.T, v any) {
				p := v.(*UserInputRequiredPayload)
				if p.InputType != "local_port" {
					t.Fatalf("InputType = %q", p.InputType)
				}
				if string(p.DefaultValue) != "8900" {
					t.Fatalf("DefaultValue = %s", p.DefaultValue)
				}
			},
		},
		{
			name:    "evaluation",
			tag:     TagAgentEvaluation,
			payload: `{"agent_name":"coder","evaluation_result":{"is_satisfied":false,"need_handover":true,"handover_suggestions":["reviewer"]}}`,
			check: func(t *testing.T, v any) {
				p := v.(*AgentEvaluationPayload)
				if p.EvaluationResult.IsSatisfied || !p.EvaluationResult.NeedHandover {
					t.Fatalf("evaluation = %+v", p.EvaluationResult)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ParseEvent(Envelope{Tag: tt.tag, Payload: json.RawMessage(tt.payload)})
			if err != nil {
				t.Fatalf("ParseEvent: %v", err)
			}
			tt.check(t, v)
		})
	}
}

func TestParseEventUsageOpaque(t *testing.T) {
	payload := json.RawMessage(`{"prompt_tokens":10,"completion_tokens":3}`)
	v, err := ParseEvent(Envelope{Tag: TagUsage, Payload: payload})
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	raw, ok := v.(json.RawMessage)
	if !ok {
		t.Fatalf("usage decoded to %T, want json.RawMessage", v)
	}
	if string(raw) != string(payload) {
		t.Fatalf("raw = %s", raw)
	}
	// The returned slice must be a copy, immune to transport buffer reuse.
	payload[2] = 'X'
	if string(raw) == string(payload) {
		t.Fatal("usage payload aliases the transport buffer")
	}
}

func TestParseEventCompleteSignal(t *testing.T) {
	v, err := ParseEvent(Envelope{Tag: TagComplete})
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if tag, ok := v.(EventTag); !ok || tag != TagComplete {
		t.Fatalf("complete decoded to %#v", v)
	}
}

func TestParseEventUnknownTag(t *testing.T) {
	v, err := ParseEvent(Envelope{Tag: "future_event", Payload: json.RawMessage(`{"x":1}`)})
	if err != nil {
		t.Fatalf("unknown tag errored: %v", err)
	}
	if v != nil {
		t.Fatalf("unknown tag decoded to %#v, want nil", v)
	}
}

func TestParseEventMalformed(t *testing.T) {
	_, err := ParseEvent(Envelope{Tag: TagWorkflow, Payload: json.RawMessage(`{nodes`)})
	var derr *DecodeError
	if !errors.As(err, &derr) {
		t.Fatalf("err = %v, want *DecodeError", err)
	}
	if derr.Tag != TagWorkflow {
		t.Fatalf("Tag = %s", derr.Tag)
	}
	if derr.Payload != `{nodes` {
		t.Fatalf("Payload = %q", derr.Payload)
	}
}
