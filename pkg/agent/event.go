package agent

import (
	"time"

	"github.com/mikan/convo/pkg/history"
	"github.com/mikan/convo/pkg/provider"
	"github.com/mikan/convo/pkg/tool"
)

// EventType discriminates the variants carried on a turn's event channel.
type EventType string

const (
	EventContentDelta    EventType = "content_delta"
	EventToolCallStarted EventType = "tool_call_started"
	EventToolCallResult  EventType = "tool_call_result"
	EventTurnComplete    EventType = "turn_complete"
	EventError           EventType = "error"
	EventCancelled       EventType = "cancelled"
)

// ErrorKind classifies terminal turn failures.
type ErrorKind string

const (
	ErrorKindModelFatal     ErrorKind = "model_fatal"
	ErrorKindRoundLimit     ErrorKind = "round_limit"
	ErrorKindRetryExhausted ErrorKind = "retry_exhausted"
)

// Event is one item on a turn's stream. Exactly one terminal event
// (TurnComplete, Error or Cancelled) closes every stream.
type Event struct {
	Type EventType `json:"type"`

	// ContentDelta
	Delta string `json:"delta,omitempty"`

	// ToolCallStarted
	ToolCall *history.ToolCall `json:"tool_call,omitempty"`

	// ToolCallResult
	ToolResult *tool.Result `json:"tool_result,omitempty"`

	// TurnComplete
	Result *TurnResult `json:"result,omitempty"`

	// Error
	ErrorKind    ErrorKind `json:"error_kind,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// Terminal reports whether this event ends the turn.
func (e Event) Terminal() bool {
	switch e.Type {
	case EventTurnComplete, EventError, EventCancelled:
		return true
	}
	return false
}

// TurnResult summarizes a settled turn.
type TurnResult struct {
	TurnID    string             `json:"turn_id"`
	SessionID string             `json:"session_id"`
	Content   string             `json:"content"`
	ToolCalls []history.ToolCall `json:"tool_calls,omitempty"`
	Rounds    int                `json:"rounds"`
	Retries   int                `json:"retries"`
	Usage     provider.Usage     `json:"usage"`
	Duration  time.Duration      `json:"-"`
}
