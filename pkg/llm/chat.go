package llm

import (
	"context"
	"encoding/json"
	"net/http"
)

// ChatAdapter speaks the chat-completions wire protocol.
//
// Wire contract:
//   - request: "messages" array of {role, content, tool_calls, tool_call_id},
//     "tools" array of {type:"function", function:{name, description,
//     parameters}} (omitted entirely when no tools are offered), options
//     "temperature", "top_p", "max_tokens", flag "stream" plus
//     "stream_options":{"include_usage":true} on streaming calls.
//   - non-streaming response: text at choices[0].message.content, tool
//     calls at choices[0].message.tool_calls, usage at usage
//     {prompt_tokens, completion_tokens, total_tokens}, response id at id.
//   - streaming chunk: text at choices[0].delta.content, tool-call deltas
//     at choices[0].delta.tool_calls [{index, id, function:{name,
//     arguments}}]. There is no per-call stop marker; indices close when
//     the stream ends. A usage-only trailer chunk has no choices. The
//     end-of-stream marker is the literal data payload "[DONE]".
type ChatAdapter struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewChatAdapter creates the chat-completions variant.
func NewChatAdapter(baseURL, apiKey, model string, client *http.Client) *ChatAdapter {
	if client == nil {
		client = http.DefaultClient
	}
	return &ChatAdapter{baseURL: baseURL, apiKey: apiKey, model: model, client: client}
}

func (a *ChatAdapter) Family() ProtocolFamily { return FamilyChat }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Tools       []chatTool    `json:"tools,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	Name       string         `json:"name,omitempty"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function chatFunction `json:"function"`
}

type chatFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type chatToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function chatFunctionCall `json:"function"`
}

type chatFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Choices []chatChoice `json:"choices"`
	Usage   *Usage       `json:"usage"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type chatChunk struct {
	ID      string            `json:"id"`
	Choices []chatChunkChoice `json:"choices"`
	Usage   *Usage            `json:"usage"`
}

type chatChunkChoice struct {
	Delta        chatChunkDelta `json:"delta"`
	FinishReason *string        `json:"finish_reason"`
}

type chatChunkDelta struct {
	Content   string              `json:"content"`
	ToolCalls []chatToolCallDelta `json:"tool_calls"`
}

type chatToolCallDelta struct {
	Index    int              `json:"index"`
	ID       string           `json:"id"`
	Function chatFunctionCall `json:"function"`
}

// BuildParams maps the canonical request almost directly onto the wire
// shape. An empty tool list is omitted rather than sent: some backends
// read a present-but-empty tools array as "tool calling forced off",
// which is not what a caller offering no tools asked for.
func (a *ChatAdapter) BuildParams(req Request) (json.RawMessage, error) {
	out := chatRequest{
		Model:       a.model,
		Messages:    make([]chatMessage, 0, len(req.Messages)),
		Temperature: req.Options.Temperature,
		TopP:        req.Options.TopP,
		MaxTokens:   req.Options.MaxTokens,
	}
	for _, m := range req.Messages {
		cm := chatMessage{Role: m.Role, Content: m.Content, ToolCallID: m.ToolCallID, Name: m.Name}
		for _, tc := range m.ToolCalls {
			cm.ToolCalls = append(cm.ToolCalls, chatToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: chatFunctionCall{
					Name:      tc.Name,
					Arguments: string(tc.Arguments),
				},
			})
		}
		out.Messages = append(out.Messages, cm)
	}
	if len(req.Tools) > 0 {
		out.Tools = make([]chatTool, 0, len(req.Tools))
		for _, t := range req.Tools {
			out.Tools = append(out.Tools, chatTool{
				Type: "function",
				Function: chatFunction{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.Parameters,
				},
			})
		}
	}
	return json.Marshal(out)
}

func (a *ChatAdapter) endpoint() string { return a.baseURL + "/chat/completions" }

// ExecuteSync issues the blocking, non-streaming call.
func (a *ChatAdapter) ExecuteSync(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	resp, err := postJSON(ctx, a.client, a.endpoint(), a.apiKey, params, false)
	if err != nil {
		return nil, err
	}
	return readAll(resp)
}

// Execute issues the streaming call. include_usage asks the backend for
// the usage trailer chunk before [DONE].
func (a *ChatAdapter) Execute(ctx context.Context, params json.RawMessage) (ChunkStream, error) {
	body, err := setStream(params, map[string]any{
		"stream":         true,
		"stream_options": map[string]any{"include_usage": true},
	})
	if err != nil {
		return nil, &ProtocolError{Family: FamilyChat, Msg: "building stream params", Err: err}
	}
	resp, err := postJSON(ctx, a.client, a.endpoint(), a.apiKey, body, true)
	if err != nil {
		return nil, err
	}
	return newSSEStream(resp, "[DONE]"), nil
}

// ParseResponse extracts the uniform result from a non-streaming payload.
// Tool calls in a non-streaming response arrive complete, but their
// arguments are still validated before being exposed; a call with invalid
// JSON is dropped and recorded, same as on the streaming path.
func (a *ChatAdapter) ParseResponse(raw json.RawMessage) (*Response, error) {
	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return nil, &ProtocolError{Family: FamilyChat, Msg: "unparseable response payload", Err: err}
	}
	if len(cr.Choices) == 0 {
		return nil, &ProtocolError{Family: FamilyChat, Msg: "response has no choices"}
	}

	msg := cr.Choices[0].Message
	out := &Response{Text: msg.Content, ID: cr.ID, Raw: raw}
	if cr.Usage != nil {
		out.Usage = *cr.Usage
	}
	for i, tc := range msg.ToolCalls {
		args := tc.Function.Arguments
		if args == "" {
			args = "{}"
		}
		if !json.Valid([]byte(args)) {
			out.ToolErrors = append(out.ToolErrors, &MalformedToolCallError{
				Index: i,
				Name:  tc.Function.Name,
				Raw:   args,
				Err:   errInvalidJSON,
			})
			continue
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(args),
		})
	}
	return out, nil
}

// ParseStreamDelta parses one chunk. It never aggregates: a chunk yields
// at most one text fragment and one tool-call fragment, and a usage-only
// trailer yields neither.
func (a *ChatAdapter) ParseStreamDelta(chunk json.RawMessage) (Delta, error) {
	var cc chatChunk
	if err := json.Unmarshal(chunk, &cc); err != nil {
		return Delta{}, &ProtocolError{Family: FamilyChat, Msg: "unparseable stream chunk", Err: err}
	}

	d := Delta{ID: cc.ID, Usage: cc.Usage}
	if len(cc.Choices) == 0 {
		return d, nil
	}
	delta := cc.Choices[0].Delta
	d.Content = delta.Content
	if len(delta.ToolCalls) > 0 {
		tc := delta.ToolCalls[0]
		d.ToolCall = &ToolCallDelta{
			Index:     tc.Index,
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		}
	}
	return d, nil
}
