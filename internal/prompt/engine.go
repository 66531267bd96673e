// Package prompt assembles token-budgeted message windows from session
// transcripts. The system prompt is a text/template, overridable from a
// file; history is trimmed newest-first to fit the model's context window.
package prompt

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"github.com/user/agentd/internal/types"
	"github.com/user/agentd/pkg/llm"
)

// Engine builds prompts within a fixed token budget.
type Engine struct {
	tokenizer  *tiktoken.Tiktoken
	tmpl       *template.Template
	memoryPath string
	maxTokens  int
	reserve    int
}

// New creates an Engine. model selects the tokenizer (unknown models fall
// back to cl100k_base), maxTokens is the context window size, and reserve
// is held back for the model's reply.
func New(model string, maxTokens, reserve int) (*Engine, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get tokenizer: %w", err)
		}
	}
	tmpl, err := template.New("system").Parse(DefaultTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse default prompt template: %w", err)
	}
	return &Engine{
		tokenizer: enc,
		tmpl:      tmpl,
		maxTokens: maxTokens,
		reserve:   reserve,
	}, nil
}

// LoadTemplate replaces the default system prompt with one from a file.
func (e *Engine) LoadTemplate(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read prompt file: %w", err)
	}
	tmpl, err := template.New("system").Parse(string(data))
	if err != nil {
		return fmt.Errorf("parse prompt file: %w", err)
	}
	e.tmpl = tmpl
	return nil
}

// SetMemoryPath points the engine at the memory file whose contents are
// injected into the system prompt.
func (e *Engine) SetMemoryPath(path string) {
	e.memoryPath = path
}

func (e *Engine) countTokens(text string) int {
	return len(e.tokenizer.Encode(text, nil, nil))
}

type promptData struct {
	Time       string
	SessionID  string
	SessionKey string
	Tools      string
	Memory     string
}

func (e *Engine) systemPrompt(session *types.SessionIndex, toolNames []string) (string, error) {
	memory := ""
	if e.memoryPath != "" {
		if data, err := os.ReadFile(e.memoryPath); err == nil {
			memory = strings.TrimSpace(string(data))
		}
	}
	var sb strings.Builder
	err := e.tmpl.Execute(&sb, promptData{
		Time:       time.Now().Format(time.RFC3339),
		SessionID:  string(session.SessionID),
		SessionKey: string(session.SessionKey),
		Tools:      strings.Join(toolNames, ", "),
		Memory:     memory,
	})
	if err != nil {
		return "", fmt.Errorf("render system prompt: %w", err)
	}
	return sb.String(), nil
}

// Build assembles the message window: system prompt first, then as much
// recent history as fits in 70% of the remaining budget. Trimming drops
// the oldest events, never the newest.
func (e *Engine) Build(
	_ context.Context,
	session *types.SessionIndex,
	events []*types.Event,
	_ types.ArtifactStore,
	toolNames []string,
) ([]llm.Message, error) {
	sysPrompt, err := e.systemPrompt(session, toolNames)
	if err != nil {
		return nil, err
	}
	remaining := e.maxTokens - e.reserve - e.countTokens(sysPrompt)
	eventBudget := int(float64(remaining) * 0.7)

	// Walk history newest-first so the budget keeps recent turns.
	var reversed []llm.Message
	usedTokens := 0
	for i := len(events) - 1; i >= 0; i-- {
		msg, ok := eventToMessage(events[i])
		if !ok {
			continue
		}
		msgTokens := e.countTokens(msg.Content)
		for _, tc := range msg.ToolCalls {
			msgTokens += e.countTokens(tc.Name)
			msgTokens += e.countTokens(string(tc.Arguments))
		}
		if usedTokens+msgTokens > eventBudget {
			break
		}
		reversed = append(reversed, msg)
		usedTokens += msgTokens
	}

	messages := make([]llm.Message, 0, 1+len(reversed))
	messages = append(messages, llm.Message{Role: "system", Content: sysPrompt})
	for i := len(reversed) - 1; i >= 0; i-- {
		messages = append(messages, reversed[i])
	}
	return messages, nil
}

type eventPayload struct {
	Text      string          `json:"text"`
	Tool      string          `json:"tool"`
	CallID    string          `json:"call_id"`
	Arguments json.RawMessage `json:"arguments"`
	Result    string          `json:"result"`
}

// eventToMessage converts a transcript event into a prompt message.
// Event types with no prompt representation report ok=false.
func eventToMessage(event *types.Event) (llm.Message, bool) {
	var payload eventPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return llm.Message{}, false
	}

	switch event.Type {
	case types.EventUserMessage:
		return llm.Message{Role: "user", Content: payload.Text}, true

	case types.EventAssistantMessage:
		return llm.Message{Role: "assistant", Content: payload.Text}, true

	case types.EventToolCall:
		return llm.Message{
			Role: "assistant",
			ToolCalls: []llm.ToolCall{{
				ID:        payload.CallID,
				Name:      payload.Tool,
				Arguments: payload.Arguments,
			}},
		}, true

	case types.EventToolResult:
		return llm.Message{
			Role:       "tool",
			Content:    payload.Result,
			ToolCallID: payload.CallID,
			Name:       payload.Tool,
		}, true

	default:
		return llm.Message{}, false
	}
}
