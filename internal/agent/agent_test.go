package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/user/agentd/internal/dispatch"
	"github.com/user/agentd/internal/state"
	"github.com/user/agentd/internal/tool"
	"github.com/user/agentd/internal/types"
	"github.com/user/agentd/pkg/llm"
)

// scriptedProvider replays canned responses, one per Complete call.
type scriptedProvider struct {
	responses []*llm.Response
	calls     [][]llm.Message
}

func (p *scriptedProvider) Complete(_ context.Context, messages []llm.Message, _ []llm.Tool) (*llm.Response, error) {
	p.calls = append(p.calls, messages)
	if len(p.responses) == 0 {
		return &llm.Response{}, nil
	}
	resp := p.responses[0]
	p.responses = p.responses[1:]
	return resp, nil
}

func (p *scriptedProvider) Stream(_ context.Context, _ []llm.Message, _ []llm.Tool) (llm.EventStream, error) {
	panic("not used in these tests")
}

// passthroughPrompts converts events to messages without budgeting.
type passthroughPrompts struct{}

func (passthroughPrompts) Build(_ context.Context, _ *types.SessionIndex, events []*types.Event, _ types.ArtifactStore, _ []string) ([]llm.Message, error) {
	messages := []llm.Message{{Role: "system", Content: "test"}}
	for _, ev := range events {
		var payload struct {
			Text string `json:"text"`
		}
		json.Unmarshal(ev.Payload, &payload)
		if ev.Type == types.EventUserMessage {
			messages = append(messages, llm.Message{Role: "user", Content: payload.Text})
		}
	}
	return messages, nil
}

type echoTool struct{}

func (echoTool) Name() string        { return "echo" }
func (echoTool) Description() string { return "echo the input" }
func (echoTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"text":{"type":"string"}},"required":["text"]}`)
}
func (echoTool) Execute(_ context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", err
	}
	return "echo: " + params.Text, nil
}

type agentFixture struct {
	agent    *Agent
	events   *state.EventStore
	sessions *state.SessionStore
	run      *dispatch.Run
}

func newFixture(t *testing.T, provider llm.Provider, policy *tool.Policy, maxRounds int) *agentFixture {
	t.Helper()
	root := t.TempDir()
	sessions := state.NewSessionStore(root)
	events := state.NewEventStore(root)
	artifacts := state.NewArtifactStore(root)

	registry := tool.NewRegistry()
	registry.Register(echoTool{})

	sessionID, err := sessions.ResolveOrCreate(context.Background(), "cli:test", "default")
	if err != nil {
		t.Fatal(err)
	}
	run := dispatch.NewRun(sessionID, &types.InboundEvent{
		Source:     "cli",
		SessionKey: "cli:test",
		Text:       "hello",
	})

	a := New(provider, passthroughPrompts{}, sessions, events, artifacts, registry, policy, maxRounds)
	return &agentFixture{agent: a, events: events, sessions: sessions, run: run}
}

func eventTypes(t *testing.T, f *agentFixture) []string {
	t.Helper()
	events, err := f.events.Tail(context.Background(), f.run.SessionID, 100)
	if err != nil {
		t.Fatal(err)
	}
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}

func TestProcessRunTextOnly(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.Response{
		{Text: "hi!", Usage: llm.Usage{TotalTokens: 10}},
	}}
	f := newFixture(t, provider, nil, 5)

	var reply string
	f.run.OnComplete = func(s string) { reply = s }

	if err := f.agent.ProcessRun(context.Background(), f.run); err != nil {
		t.Fatal(err)
	}
	if reply != "hi!" {
		t.Errorf("reply = %q", reply)
	}

	got := eventTypes(t, f)
	want := []string{types.EventUserMessage, types.EventAssistantMessage}
	if len(got) != len(want) {
		t.Fatalf("events = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("events[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	session, err := f.sessions.Get(context.Background(), f.run.SessionID)
	if err != nil {
		t.Fatal(err)
	}
	if session.TotalTokens != 10 {
		t.Errorf("session tokens = %d", session.TotalTokens)
	}
	if session.LastRunID != f.run.ID {
		t.Error("LastRunID not recorded")
	}
}

func TestProcessRunToolLoop(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.Response{
		{ToolCalls: []llm.ToolCall{{ID: "c1", Name: "echo", Arguments: json.RawMessage(`{"text":"ping"}`)}}},
		{Text: "the tool said: echo: ping"},
	}}
	f := newFixture(t, provider, nil, 5)

	if err := f.agent.ProcessRun(context.Background(), f.run); err != nil {
		t.Fatal(err)
	}

	got := eventTypes(t, f)
	want := []string{
		types.EventUserMessage,
		types.EventToolCall,
		types.EventToolResult,
		types.EventAssistantMessage,
	}
	if len(got) != len(want) {
		t.Fatalf("events = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("events[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if len(provider.calls) != 2 {
		t.Errorf("model called %d times", len(provider.calls))
	}
}

func TestProcessRunUnknownToolRecorded(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.Response{
		{ToolCalls: []llm.ToolCall{{ID: "c1", Name: "nope", Arguments: json.RawMessage(`{}`)}}},
		{Text: "done"},
	}}
	f := newFixture(t, provider, nil, 5)

	if err := f.agent.ProcessRun(context.Background(), f.run); err != nil {
		t.Fatal(err)
	}

	events, err := f.events.Tail(context.Background(), f.run.SessionID, 100)
	if err != nil {
		t.Fatal(err)
	}
	var result string
	for _, ev := range events {
		if ev.Type == types.EventToolResult {
			var payload struct {
				Result string `json:"result"`
			}
			json.Unmarshal(ev.Payload, &payload)
			result = payload.Result
		}
	}
	if !strings.Contains(result, "unknown tool") {
		t.Errorf("tool result = %q", result)
	}
}

func TestProcessRunDeniedTool(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.Response{
		{ToolCalls: []llm.ToolCall{{ID: "c1", Name: "echo", Arguments: json.RawMessage(`{"text":"x"}`)}}},
		{Text: "ok"},
	}}
	policy := tool.NewPolicy(tool.ModeDeny)
	f := newFixture(t, provider, policy, 5)

	if err := f.agent.ProcessRun(context.Background(), f.run); err != nil {
		t.Fatal(err)
	}

	events, _ := f.events.Tail(context.Background(), f.run.SessionID, 100)
	var result string
	for _, ev := range events {
		if ev.Type == types.EventToolResult {
			var payload struct {
				Result string `json:"result"`
			}
			json.Unmarshal(ev.Payload, &payload)
			result = payload.Result
		}
	}
	if !strings.Contains(result, "not approved") {
		t.Errorf("tool result = %q", result)
	}
}

func TestProcessRunMalformedToolCallRecorded(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.Response{
		{
			Text: "partial",
			ToolErrors: []*llm.MalformedToolCallError{
				{Index: 0, Name: "echo", Raw: `{"text"`, Err: errors.New("unexpected end of JSON input")},
			},
		},
	}}
	f := newFixture(t, provider, nil, 5)

	if err := f.agent.ProcessRun(context.Background(), f.run); err != nil {
		t.Fatal(err)
	}

	got := eventTypes(t, f)
	foundErr := false
	for _, typ := range got {
		if typ == types.EventToolError {
			foundErr = true
		}
	}
	if !foundErr {
		t.Errorf("no tool_error event recorded: %v", got)
	}
}

func TestProcessRunMaxRounds(t *testing.T) {
	call := &llm.Response{ToolCalls: []llm.ToolCall{{ID: "c", Name: "echo", Arguments: json.RawMessage(`{"text":"x"}`)}}}
	provider := &scriptedProvider{responses: []*llm.Response{call, call, call, call}}
	f := newFixture(t, provider, nil, 2)

	err := f.agent.ProcessRun(context.Background(), f.run)
	if err == nil || !strings.Contains(err.Error(), "max tool rounds") {
		t.Fatalf("err = %v", err)
	}

	got := eventTypes(t, f)
	if got[len(got)-1] != types.EventSystemNote {
		t.Errorf("expected trailing system note, got %v", got)
	}
}
