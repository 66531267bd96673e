package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func responsesAdapterForTest(url string) *ResponsesAdapter {
	return NewResponsesAdapter(url, "test-key", "gpt-5-codex", nil)
}

func TestResponsesBuildParamsFlattening(t *testing.T) {
	a := responsesAdapterForTest("http://unused")
	params, err := a.BuildParams(Request{
		Messages: []Message{
			{Role: "system", Content: "Be terse."},
			{Role: "system", Content: "Answer in English."},
			{Role: "user", Content: "run it"},
			{Role: "assistant", ToolCalls: []ToolCall{{ID: "c1", Name: "bash", Arguments: json.RawMessage(`{"command":"ls"}`)}}},
			{Role: "tool", ToolCallID: "c1", Content: "file.txt"},
		},
		Tools: []Tool{{Name: "bash", Description: "run a command", Parameters: json.RawMessage(`{"type":"object"}`)}},
	})
	if err != nil {
		t.Fatal(err)
	}

	var body struct {
		Instructions string `json:"instructions"`
		Input        []struct {
			Type    string `json:"type"`
			Role    string `json:"role"`
			CallID  string `json:"call_id"`
			Name    string `json:"name"`
			Output  string `json:"output"`
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"input"`
		Tools []struct {
			Type string `json:"type"`
			Name string `json:"name"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(params, &body); err != nil {
		t.Fatal(err)
	}

	if body.Instructions != "Be terse.\n\nAnswer in English." {
		t.Errorf("instructions = %q", body.Instructions)
	}
	if len(body.Input) != 3 {
		t.Fatalf("expected 3 input items, got %d", len(body.Input))
	}
	if body.Input[0].Role != "user" || body.Input[0].Content[0].Type != "input_text" {
		t.Errorf("user turn not converted: %+v", body.Input[0])
	}
	if body.Input[1].Type != "function_call" || body.Input[1].CallID != "c1" || body.Input[1].Name != "bash" {
		t.Errorf("assistant tool call not converted: %+v", body.Input[1])
	}
	if body.Input[2].Type != "function_call_output" || body.Input[2].Output != "file.txt" {
		t.Errorf("tool result not converted: %+v", body.Input[2])
	}
	// Tools are declared flat at the top level, not nested under function.
	if len(body.Tools) != 1 || body.Tools[0].Name != "bash" || body.Tools[0].Type != "function" {
		t.Errorf("tools = %+v", body.Tools)
	}
}

func TestResponsesBuildParamsOmitsEmptyTools(t *testing.T) {
	a := responsesAdapterForTest("http://unused")
	params, err := a.BuildParams(Request{
		Messages: []Message{{Role: "user", Content: "hi"}},
		Tools:    []Tool{},
	})
	if err != nil {
		t.Fatal(err)
	}
	var body map[string]any
	if err := json.Unmarshal(params, &body); err != nil {
		t.Fatal(err)
	}
	if _, present := body["tools"]; present {
		t.Error("tools field must be absent, not present-but-empty")
	}
}

func TestResponsesBuildParamsMaxOutputTokens(t *testing.T) {
	a := responsesAdapterForTest("http://unused")
	params, err := a.BuildParams(Request{
		Messages: []Message{{Role: "user", Content: "hi"}},
		Options:  Options{MaxTokens: 512},
	})
	if err != nil {
		t.Fatal(err)
	}
	var body map[string]any
	if err := json.Unmarshal(params, &body); err != nil {
		t.Fatal(err)
	}
	if body["max_output_tokens"] != float64(512) {
		t.Errorf("max_output_tokens = %v", body["max_output_tokens"])
	}
	if _, present := body["max_tokens"]; present {
		t.Error("chat-family max_tokens leaked into responses params")
	}
}

func TestResponsesParseResponse(t *testing.T) {
	a := responsesAdapterForTest("http://unused")
	raw := json.RawMessage(`{
		"id": "resp_1",
		"output": [
			{"type": "message", "content": [{"type": "output_text", "text": "done"}]},
			{"type": "function_call", "call_id": "c9", "name": "bash", "arguments": "{\"command\":\"ls\"}"}
		],
		"usage": {"input_tokens": 12, "output_tokens": 5, "total_tokens": 17}
	}`)

	resp, err := a.ParseResponse(raw)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Text != "done" {
		t.Errorf("text = %q", resp.Text)
	}
	if resp.ID != "resp_1" {
		t.Errorf("id = %q", resp.ID)
	}
	if resp.Usage.PromptTokens != 12 || resp.Usage.CompletionTokens != 5 {
		t.Errorf("usage mapping wrong: %+v", resp.Usage)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].ID != "c9" {
		t.Fatalf("tool calls = %+v", resp.ToolCalls)
	}
}

func TestResponsesParseStreamDelta(t *testing.T) {
	a := responsesAdapterForTest("http://unused")

	cases := []struct {
		name  string
		chunk string
		check func(t *testing.T, d Delta)
	}{
		{
			name:  "text delta",
			chunk: `{"type":"response.output_text.delta","delta":"Hel"}`,
			check: func(t *testing.T, d Delta) {
				if d.Content != "Hel" || d.ToolCall != nil {
					t.Errorf("delta = %+v", d)
				}
			},
		},
		{
			name:  "tool call opened",
			chunk: `{"type":"response.output_item.added","output_index":1,"item":{"type":"function_call","call_id":"c1","name":"bash"}}`,
			check: func(t *testing.T, d Delta) {
				if d.ToolCall == nil || d.ToolCall.Index != 1 || d.ToolCall.Name != "bash" || d.ToolCall.ID != "c1" {
					t.Errorf("delta = %+v", d.ToolCall)
				}
			},
		},
		{
			name:  "argument fragment",
			chunk: `{"type":"response.function_call_arguments.delta","output_index":1,"delta":"{\"command\":"}`,
			check: func(t *testing.T, d Delta) {
				if d.ToolCall == nil || d.ToolCall.Arguments != `{"command":` || d.ToolCall.Done {
					t.Errorf("delta = %+v", d.ToolCall)
				}
			},
		},
		{
			name:  "argument close marker",
			chunk: `{"type":"response.function_call_arguments.done","output_index":1}`,
			check: func(t *testing.T, d Delta) {
				if d.ToolCall == nil || !d.ToolCall.Done {
					t.Errorf("delta = %+v", d.ToolCall)
				}
			},
		},
		{
			name:  "metadata-only event",
			chunk: `{"type":"response.in_progress"}`,
			check: func(t *testing.T, d Delta) {
				if d.Content != "" || d.ToolCall != nil || d.Done {
					t.Errorf("metadata event should yield nothing: %+v", d)
				}
			},
		},
		{
			name:  "completed",
			chunk: `{"type":"response.completed","response":{"id":"resp_9","output":[],"usage":{"input_tokens":1,"output_tokens":2,"total_tokens":3}}}`,
			check: func(t *testing.T, d Delta) {
				if !d.Done || d.ID != "resp_9" || d.Usage == nil || d.Usage.TotalTokens != 3 {
					t.Errorf("delta = %+v", d)
				}
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := a.ParseStreamDelta(json.RawMessage(tc.chunk))
			if err != nil {
				t.Fatal(err)
			}
			tc.check(t, d)
		})
	}
}

func TestResponsesStreamEndToEnd(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/responses" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		writeSSE(w, `{"type":"response.output_text.delta","delta":"On "}`)
		writeSSE(w, `{"type":"response.output_item.added","output_index":1,"item":{"type":"function_call","call_id":"c1","name":"bash"}}`)
		writeSSE(w, `{"type":"response.output_text.delta","delta":"it"}`)
		writeSSE(w, `{"type":"response.function_call_arguments.delta","output_index":1,"delta":"{\"command\":"}`)
		writeSSE(w, `{"type":"response.function_call_arguments.delta","output_index":1,"delta":"\"ls\"}"}`)
		writeSSE(w, `{"type":"response.function_call_arguments.done","output_index":1}`)
		writeSSE(w, `{"type":"response.completed","response":{"id":"resp_2","output":[],"usage":{"input_tokens":4,"output_tokens":6,"total_tokens":10}}}`)
	}))
	defer server.Close()

	client, err := New(Config{BaseURL: server.URL, APIKey: "k", Model: "gpt-5-codex"})
	if err != nil {
		t.Fatal(err)
	}
	if client.Family() != FamilyResponses {
		t.Fatalf("family = %q", client.Family())
	}

	stream, err := client.Stream(context.Background(), []Message{{Role: "user", Content: "go"}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer stream.Close()

	var text string
	var final *Response
	for {
		ev, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		text += ev.Content
		if ev.Final != nil {
			final = ev.Final
			break
		}
	}

	if text != "On it" {
		t.Errorf("text = %q", text)
	}
	if final == nil {
		t.Fatal("no final response delivered")
	}
	if len(final.ToolCalls) != 1 {
		t.Fatalf("tool calls = %+v", final.ToolCalls)
	}
	if string(final.ToolCalls[0].Arguments) != `{"command":"ls"}` {
		t.Errorf("arguments = %s", final.ToolCalls[0].Arguments)
	}
	if final.ID != "resp_2" || final.Usage.TotalTokens != 10 {
		t.Errorf("final metadata: id=%q usage=%+v", final.ID, final.Usage)
	}
}
