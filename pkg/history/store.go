package history

import (
	"context"
	"errors"
	"time"
)

// Role values for Message.Role.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ErrUnknownBackend is returned by Open for an unrecognized backend name.
var ErrUnknownBackend = errors.New("unknown history backend")

// ToolCall is a tool invocation requested by the model inside an
// assistant message.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// Message is a single conversation turn. Once appended to a store it is
// immutable; ordering within a session follows append order.
type Message struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []ToolCall     `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Store persists ordered conversation history per session. Appends are
// atomic per call; callers serialize appends within one session.
type Store interface {
	// Append durably adds messages to a session in order. The session is
	// created on first append.
	Append(ctx context.Context, sessionID string, messages []Message) error

	// History returns all messages of a session in append order. A session
	// that was never written to yields an empty slice, not an error.
	History(ctx context.Context, sessionID string) ([]Message, error)

	// Clear removes all messages of a session.
	Clear(ctx context.Context, sessionID string) error

	// Sessions lists the IDs of all sessions known to the store.
	Sessions(ctx context.Context) ([]string, error)

	Close() error
}

// Options selects and configures a Store backend.
type Options struct {
	Backend string // "memory", "file" or "sqlite"
	Path    string // directory (file) or database file (sqlite)
}

// Open creates the store selected by opts.Backend.
func Open(opts Options) (Store, error) {
	switch opts.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "file":
		return NewFileStore(opts.Path)
	case "sqlite":
		return NewSQLiteStore(opts.Path)
	default:
		return nil, ErrUnknownBackend
	}
}
