package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// ResponsesAdapter speaks the responses wire protocol.
//
// Wire contract:
//   - request: "input" array of turn items, "instructions" (system text),
//     "tools" array declared flat at top level as {type:"function", name,
//     description, parameters}, options "temperature", "top_p",
//     "max_output_tokens", flag "stream". Assistant tool calls are input
//     items {type:"function_call", call_id, name, arguments}; tool results
//     are {type:"function_call_output", call_id, output}. An empty tool
//     list is omitted, never sent empty.
//   - non-streaming response: text at output[].content[] parts of type
//     output_text (or top-level output_text), tool calls at output[] items
//     of type function_call {call_id, name, arguments}, usage at usage
//     {input_tokens, output_tokens, total_tokens}, response id at id.
//   - streaming chunk: typed events. response.output_text.delta carries a
//     text fragment in "delta"; response.output_item.added with a
//     function_call item opens a tool call at "output_index";
//     response.function_call_arguments.delta carries an argument fragment
//     in "delta" for "output_index"; response.function_call_arguments.done
//     and response.output_item.done are the per-call stop markers;
//     response.completed is the end-of-stream marker and embeds the full
//     final payload under "response".
type ResponsesAdapter struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewResponsesAdapter creates the responses-API variant.
func NewResponsesAdapter(baseURL, apiKey, model string, client *http.Client) *ResponsesAdapter {
	if client == nil {
		client = http.DefaultClient
	}
	return &ResponsesAdapter{baseURL: baseURL, apiKey: apiKey, model: model, client: client}
}

func (a *ResponsesAdapter) Family() ProtocolFamily { return FamilyResponses }

type responsesRequest struct {
	Model           string          `json:"model"`
	Input           []inputItem     `json:"input"`
	Instructions    string          `json:"instructions,omitempty"`
	Tools           []responsesTool `json:"tools,omitempty"`
	Temperature     *float64        `json:"temperature,omitempty"`
	TopP            *float64        `json:"top_p,omitempty"`
	MaxOutputTokens int             `json:"max_output_tokens,omitempty"`
}

// inputItem is the union of the turn item shapes: a role message with
// typed content parts, a function_call, or a function_call_output.
type inputItem struct {
	Type      string        `json:"type,omitempty"`
	Role      string        `json:"role,omitempty"`
	Content   []contentPart `json:"content,omitempty"`
	CallID    string        `json:"call_id,omitempty"`
	Name      string        `json:"name,omitempty"`
	Arguments string        `json:"arguments,omitempty"`
	Output    string        `json:"output,omitempty"`
}

type contentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type responsesTool struct {
	Type        string          `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type responsesUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

type responsesResponse struct {
	ID     string          `json:"id"`
	Output []outputItem    `json:"output"`
	Usage  *responsesUsage `json:"usage"`
}

type outputItem struct {
	Type      string        `json:"type"`
	ID        string        `json:"id"`
	CallID    string        `json:"call_id"`
	Name      string        `json:"name"`
	Arguments string        `json:"arguments"`
	Content   []contentPart `json:"content"`
}

// responsesEvent is one streaming event. The discriminating "type" is
// repeated inside the data payload, so the SSE "event:" field is ignored.
type responsesEvent struct {
	Type        string          `json:"type"`
	Delta       string          `json:"delta"`
	OutputIndex *int            `json:"output_index"`
	Item        *outputItem     `json:"item"`
	Response    json.RawMessage `json:"response"`
}

// BuildParams restructures the canonical chat-shaped message list into the
// responses turn representation: system messages are concatenated into
// top-level instructions, assistant tool calls and tool results become
// typed input items, and everything else becomes a role message with typed
// content parts. The empty-tools omission rule is the same as for chat.
func (a *ResponsesAdapter) BuildParams(req Request) (json.RawMessage, error) {
	input, instructions := flattenMessages(req.Messages)
	out := responsesRequest{
		Model:           a.model,
		Input:           input,
		Instructions:    instructions,
		Temperature:     req.Options.Temperature,
		TopP:            req.Options.TopP,
		MaxOutputTokens: req.Options.MaxTokens,
	}
	if len(req.Tools) > 0 {
		out.Tools = make([]responsesTool, 0, len(req.Tools))
		for _, t := range req.Tools {
			out.Tools = append(out.Tools, responsesTool{
				Type:        "function",
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			})
		}
	}
	return json.Marshal(out)
}

func flattenMessages(messages []Message) ([]inputItem, string) {
	var instructions []string
	input := make([]inputItem, 0, len(messages))

	for _, m := range messages {
		switch m.Role {
		case "system":
			if s := strings.TrimSpace(m.Content); s != "" {
				instructions = append(instructions, s)
			}

		case "assistant":
			if m.Content != "" {
				input = append(input, inputItem{
					Role:    "assistant",
					Content: []contentPart{{Type: "output_text", Text: m.Content}},
				})
			}
			for _, tc := range m.ToolCalls {
				args := string(tc.Arguments)
				if args == "" {
					args = "{}"
				}
				input = append(input, inputItem{
					Type:      "function_call",
					CallID:    tc.ID,
					Name:      tc.Name,
					Arguments: args,
				})
			}

		case "tool":
			input = append(input, inputItem{
				Type:   "function_call_output",
				CallID: m.ToolCallID,
				Output: m.Content,
			})

		default:
			input = append(input, inputItem{
				Role:    m.Role,
				Content: []contentPart{{Type: "input_text", Text: m.Content}},
			})
		}
	}
	return input, strings.Join(instructions, "\n\n")
}

func (a *ResponsesAdapter) endpoint() string { return a.baseURL + "/responses" }

// ExecuteSync issues the blocking, non-streaming call.
func (a *ResponsesAdapter) ExecuteSync(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	resp, err := postJSON(ctx, a.client, a.endpoint(), a.apiKey, params, false)
	if err != nil {
		return nil, err
	}
	return readAll(resp)
}

// Execute issues the streaming call. The stream ends at EOF after the
// response.completed event; there is no sentinel payload like chat's
// [DONE].
func (a *ResponsesAdapter) Execute(ctx context.Context, params json.RawMessage) (ChunkStream, error) {
	body, err := setStream(params, map[string]any{"stream": true})
	if err != nil {
		return nil, &ProtocolError{Family: FamilyResponses, Msg: "building stream params", Err: err}
	}
	resp, err := postJSON(ctx, a.client, a.endpoint(), a.apiKey, body, true)
	if err != nil {
		return nil, err
	}
	return newSSEStream(resp, ""), nil
}

// ParseResponse extracts the uniform result from a non-streaming payload.
func (a *ResponsesAdapter) ParseResponse(raw json.RawMessage) (*Response, error) {
	var rr responsesResponse
	if err := json.Unmarshal(raw, &rr); err != nil {
		return nil, &ProtocolError{Family: FamilyResponses, Msg: "unparseable response payload", Err: err}
	}

	out := &Response{ID: rr.ID, Raw: raw}
	if rr.Usage != nil {
		out.Usage = Usage{
			PromptTokens:     rr.Usage.InputTokens,
			CompletionTokens: rr.Usage.OutputTokens,
			TotalTokens:      rr.Usage.TotalTokens,
		}
	}

	var text strings.Builder
	callIndex := 0
	for _, item := range rr.Output {
		switch item.Type {
		case "message":
			for _, part := range item.Content {
				if part.Type == "output_text" {
					text.WriteString(part.Text)
				}
			}
		case "function_call", "tool_call":
			args := item.Arguments
			if args == "" {
				args = "{}"
			}
			id := item.CallID
			if id == "" {
				id = item.ID
			}
			if !json.Valid([]byte(args)) {
				out.ToolErrors = append(out.ToolErrors, &MalformedToolCallError{
					Index: callIndex,
					Name:  item.Name,
					Raw:   args,
					Err:   errInvalidJSON,
				})
			} else {
				out.ToolCalls = append(out.ToolCalls, ToolCall{
					ID:        id,
					Name:      item.Name,
					Arguments: json.RawMessage(args),
				})
			}
			callIndex++
		}
	}
	out.Text = text.String()
	return out, nil
}

// ParseStreamDelta maps one typed event to its Delta. Events the gateway
// has no use for (created, in_progress, content_part boilerplate) yield an
// empty Delta and are skipped by the stream loop.
func (a *ResponsesAdapter) ParseStreamDelta(chunk json.RawMessage) (Delta, error) {
	var ev responsesEvent
	if err := json.Unmarshal(chunk, &ev); err != nil {
		return Delta{}, &ProtocolError{Family: FamilyResponses, Msg: "unparseable stream chunk", Err: err}
	}

	index := 0
	if ev.OutputIndex != nil {
		index = *ev.OutputIndex
	}

	switch ev.Type {
	case "response.output_text.delta":
		return Delta{Content: ev.Delta}, nil

	case "response.output_item.added":
		if ev.Item != nil && ev.Item.Type == "function_call" {
			id := ev.Item.CallID
			if id == "" {
				id = ev.Item.ID
			}
			return Delta{ToolCall: &ToolCallDelta{
				Index:     index,
				ID:        id,
				Name:      ev.Item.Name,
				Arguments: ev.Item.Arguments,
			}}, nil
		}
		return Delta{}, nil

	case "response.function_call_arguments.delta":
		return Delta{ToolCall: &ToolCallDelta{Index: index, Arguments: ev.Delta}}, nil

	case "response.function_call_arguments.done":
		return Delta{ToolCall: &ToolCallDelta{Index: index, Done: true}}, nil

	case "response.output_item.done":
		if ev.Item != nil && ev.Item.Type == "function_call" {
			// Carries the complete arguments; the accumulator only uses
			// them when no fragments streamed for this index.
			id := ev.Item.CallID
			if id == "" {
				id = ev.Item.ID
			}
			return Delta{ToolCall: &ToolCallDelta{
				Index:     index,
				ID:        id,
				Name:      ev.Item.Name,
				Arguments: ev.Item.Arguments,
				Done:      true,
			}}, nil
		}
		return Delta{}, nil

	case "response.completed":
		d := Delta{Done: true, Final: ev.Response}
		var rr responsesResponse
		if len(ev.Response) > 0 && json.Unmarshal(ev.Response, &rr) == nil {
			d.ID = rr.ID
			if rr.Usage != nil {
				d.Usage = &Usage{
					PromptTokens:     rr.Usage.InputTokens,
					CompletionTokens: rr.Usage.OutputTokens,
					TotalTokens:      rr.Usage.TotalTokens,
				}
			}
		}
		return d, nil
	}
	return Delta{}, nil
}
