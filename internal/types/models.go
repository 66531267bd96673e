// internal/types/models.go
package types

import (
	"encoding/json"
	"time"
)

// Event types recorded in a session's transcript.
const (
	EventUserMessage      = "user_message"
	EventAssistantMessage = "assistant_message"
	EventToolCall         = "tool_call"
	EventToolResult       = "tool_result"
	EventToolError        = "tool_error"
	EventSystemNote       = "system_note"
)

type Event struct {
	ID        EventID         `json:"id"`
	SessionID SessionID       `json:"session_id"`
	RunID     RunID           `json:"run_id,omitempty"`
	Seq       int64           `json:"seq"`
	Type      string          `json:"type"`
	Source    string          `json:"source"`
	At        time.Time       `json:"at"`
	Payload   json.RawMessage `json:"payload"`
}

type SessionIndex struct {
	SessionID    SessionID  `json:"session_id"`
	SessionKey   SessionKey `json:"session_key"`
	Agent        string     `json:"agent"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastRunID    RunID      `json:"last_run_id,omitempty"`
	LastEventSeq int64      `json:"last_event_seq"`
	TotalTokens  int64      `json:"total_tokens,omitempty"`
}

type ArtifactMeta struct {
	ID        ArtifactID `json:"id"`
	SessionID SessionID  `json:"session_id"`
	RunID     RunID      `json:"run_id"`
	Tool      string     `json:"tool"`
	CreatedAt time.Time  `json:"created_at"`
	MimeType  string     `json:"mime_type,omitempty"`
	SizeBytes int64      `json:"size_bytes"`
}

// InboundEvent is a message arriving from a delivery channel before it is
// resolved to a session.
type InboundEvent struct {
	Source     string          `json:"source"`
	SessionKey SessionKey      `json:"session_key"`
	UserID     string          `json:"user_id"`
	Text       string          `json:"text"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
}

// OutboundEvent is a reply heading back to the channel the session key
// names. Delivery consumers subscribe by channel prefix.
type OutboundEvent struct {
	SessionKey SessionKey `json:"session_key"`
	Text       string     `json:"text"`
}
