// Package llm is a protocol-adapting gateway to large language model
// backends. A single calling convention (messages in, a uniform Response
// out, streaming or not) is translated to whichever wire protocol the
// configured model speaks: the classic chat-completions API or the newer
// responses API. The gateway guarantees that tool calls surfaced to the
// caller always carry fully assembled, valid JSON arguments, no matter how
// the backend fragmented them on the wire.
package llm

import "encoding/json"

// Message is the canonical conversation message. It is shaped after the
// chat-completions wire format; the responses adapter converts to and from
// its own turn representation internally.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// Tool describes a function the model may call, with a JSON-schema
// parameter spec.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ToolCall is a completed tool invocation requested by the model.
// Arguments is always a valid JSON document by the time a caller sees it;
// partially assembled calls never leave the gateway.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolCallDelta is one fragment of a streaming tool call. Index positions
// the call among concurrently streaming calls in the same turn; ID, Name
// and Arguments are each optional per fragment. Done marks an explicit
// end-of-call signal for the index. Deltas are a transport-level construct
// consumed by the Accumulator and never returned to callers.
type ToolCallDelta struct {
	Index     int
	ID        string
	Name      string
	Arguments string
	Done      bool
}

// Usage summarises token consumption for one invocation.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Options carries generation parameters. Nil pointer fields are omitted
// from the backend request entirely.
type Options struct {
	Temperature *float64
	TopP        *float64
	MaxTokens   int
}

// Request is one backend-agnostic invocation: an ordered message list,
// optional tool definitions, and generation options. A Request is owned by
// the caller for the duration of a single invocation and is never mutated
// by the gateway.
type Request struct {
	Messages []Message
	Tools    []Tool
	Options  Options
}

// Response is the uniform result of one invocation, regardless of backend.
// Text holds only committed content; ToolCalls is ordered by ascending
// stream index and contains only calls whose arguments parsed as valid
// JSON. ToolErrors records per-index tool calls that were dropped because
// their arguments did not parse; their presence does not make the response
// invalid. Raw retains the final backend payload for diagnostics only.
type Response struct {
	Text       string
	ToolCalls  []ToolCall
	ID         string
	Usage      Usage
	Raw        json.RawMessage
	ToolErrors []*MalformedToolCallError
}

// Delta is the parsed view of a single raw stream chunk. At most one text
// fragment and at most one tool-call fragment per chunk; a metadata-only
// chunk (usage trailer, stream bookkeeping) yields neither. Done marks the
// backend's end-of-stream signal, and Final, when present, carries the
// complete response payload some protocols attach to that signal.
type Delta struct {
	Content  string
	ToolCall *ToolCallDelta
	ID       string
	Usage    *Usage
	Done     bool
	Final    json.RawMessage
}
