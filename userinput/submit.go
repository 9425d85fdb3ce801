// Package userinput submits answers to user_input_required events back
// to the server. Values are coerced per the request's input type; two
// input types bypass the generic path and talk to a port-addressed local
// service first.
package userinput

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alishangtian/proteus-stream/stream"
)

// Input types with dedicated handling.
const (
	TypeBoolean     = "boolean"
	TypeNumber      = "number"
	TypeJSON        = "json"
	TypeGeolocation = "geolocation"
	TypeLocalPort   = "local_port"
)

// DefaultLocalPort is used when a bypass request does not carry its own
// port in the default value.
const DefaultLocalPort = 8900

// Submission is the generic outbound request body.
type Submission struct {
	NodeID  string `json:"node_id"`
	Value   any    `json:"value"`
	ChatID  string `json:"chat_id"`
	AgentID string `json:"agent_id,omitempty"`
}

// Submitter posts coerced input values to the server's submission
// endpoint.
type Submitter struct {
	client   *http.Client
	logger   *slog.Logger
	endpoint string
}

// SubmitterOption configures a Submitter.
type SubmitterOption func(*Submitter)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) SubmitterOption {
	return func(s *Submitter) {
		s.client = client
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) SubmitterOption {
	return func(s *Submitter) {
		s.logger = logger
	}
}

// NewSubmitter creates a submitter targeting the given endpoint.
func NewSubmitter(endpoint string, opts ...SubmitterOption) *Submitter {
	s := &Submitter{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit answers one input request. The raw value is coerced per the
// request's input type; geolocation and local_port requests perform
// their own request against the local service before falling back to the
// generic submission path.
func (s *Submitter) Submit(ctx context.Context, req stream.UserInputRequiredPayload, chatID, raw string) error {
	switch req.InputType {
	case TypeGeolocation, TypeLocalPort:
		if err := s.submitLocal(ctx, req, raw); err != nil {
			s.logger.Warn("local service submission failed, falling back",
				"input_type", req.InputType, "error", err)
		}
	}

	value, err := Coerce(req.InputType, raw)
	if err != nil {
		return fmt.Errorf("coerce %s value: %w", req.InputType, err)
	}
	return s.post(ctx, s.endpoint, Submission{
		NodeID:  req.NodeID,
		Value:   value,
		ChatID:  chatID,
		AgentID: req.AgentID,
	})
}

// submitLocal sends the value to the port-addressed local service named
// by the request's default value.
func (s *Submitter) submitLocal(ctx context.Context, req stream.UserInputRequiredPayload, raw string) error {
	port := localPort(req.DefaultValue)
	url := fmt.Sprintf("http://127.0.0.1:%d/input", port)
	return s.post(ctx, url, Submission{NodeID: req.NodeID, Value: raw})
}

func (s *Submitter) post(ctx context.Context, url string, body Submission) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal submission: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("submission rejected: %s", resp.Status)
	}
	return nil
}

// Coerce converts a raw string value per the declared input type.
// Unrecognized types pass the string through unchanged.
func Coerce(inputType, raw string) (any, error) {
	switch inputType {
	case TypeBoolean:
		v, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return nil, err
		}
		return v, nil
	case TypeNumber:
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, err
		}
		return v, nil
	case TypeJSON:
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, err
		}
		return v, nil
	default:
		return raw, nil
	}
}

// localPort extracts the service port from a request's default value,
// accepting either a bare number or {"port": N}.
func localPort(defaultValue json.RawMessage) int {
	if len(defaultValue) == 0 {
		return DefaultLocalPort
	}
	var port int
	if err := json.Unmarshal(defaultValue, &port); err == nil && port > 0 {
		return port
	}
	var obj struct {
		Port int `json:"port"`
	}
	if err := json.Unmarshal(defaultValue, &obj); err == nil && obj.Port > 0 {
		return obj.Port
	}
	return DefaultLocalPort
}
