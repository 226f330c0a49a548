// Package llm is a provider-neutral streaming chat interface. Adapters turn a
// vendor's streaming API into a sequence of Delta values; reassembly of
// fragmented tool calls is left to the caller.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Tool is a function the model may call. Parameters is a JSON schema object.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

type Request struct {
	Model       string
	System      string
	Messages    []Message
	Tools       []Tool
	MaxTokens   int
	Temperature *float32
}

// ToolCallDelta is one fragment of a tool call. Fragments sharing an Index
// belong to the same call; Name and Arguments must be concatenated in order.
type ToolCallDelta struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}

type Delta struct {
	Content      string
	ToolCalls    []ToolCallDelta
	FinishReason string
}

func (d Delta) Empty() bool {
	return d.Content == "" && len(d.ToolCalls) == 0 && d.FinishReason == ""
}

// Stream yields deltas until Recv returns io.EOF.
type Stream interface {
	Recv() (Delta, error)
	Close() error
}

type Provider interface {
	Name() string
	Stream(ctx context.Context, req Request) (Stream, error)
}

// ProviderError is a failure reported by the upstream model API.
type ProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) HTTPStatusCode() int { return e.StatusCode }

// IsProviderError reports whether err came from the upstream API rather than
// from local cancellation.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
