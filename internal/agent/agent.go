// Package agent implements the turn loop: build a prompt from the session
// transcript, call the model, execute any tool calls it asked for, feed
// the results back, and repeat until the model answers in text.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/user/agentd/internal/dispatch"
	"github.com/user/agentd/internal/tool"
	"github.com/user/agentd/internal/types"
	"github.com/user/agentd/pkg/llm"
)

// PromptBuilder assembles the message window sent to the model.
type PromptBuilder interface {
	Build(ctx context.Context, session *types.SessionIndex, events []*types.Event, artifacts types.ArtifactStore, toolNames []string) ([]llm.Message, error)
}

// Agent drives runs to completion against the model gateway.
type Agent struct {
	provider  llm.Provider
	prompts   PromptBuilder
	sessions  types.SessionStore
	events    types.EventStore
	artifacts types.ArtifactStore
	registry  *tool.Registry
	policy    *tool.Policy
	maxRounds int
}

// New creates an Agent. maxRounds caps tool-call rounds per run; zero or
// negative falls back to 10.
func New(
	provider llm.Provider,
	prompts PromptBuilder,
	sessions types.SessionStore,
	events types.EventStore,
	artifacts types.ArtifactStore,
	registry *tool.Registry,
	policy *tool.Policy,
	maxRounds int,
) *Agent {
	if maxRounds <= 0 {
		maxRounds = 10
	}
	if policy == nil {
		policy = tool.NewPolicy(tool.ModeAuto)
	}
	return &Agent{
		provider:  provider,
		prompts:   prompts,
		sessions:  sessions,
		events:    events,
		artifacts: artifacts,
		registry:  registry,
		policy:    policy,
		maxRounds: maxRounds,
	}
}

// Tool results longer than this move to the artifact store; the transcript
// keeps a truncated excerpt plus the artifact ID.
const artifactThreshold = 2000

func (a *Agent) record(ctx context.Context, run *dispatch.Run, eventType, source string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return a.events.Append(ctx, &types.Event{
		ID:        types.NewEventID(),
		SessionID: run.SessionID,
		RunID:     run.ID,
		Type:      eventType,
		Source:    source,
		At:        time.Now(),
		Payload:   data,
	})
}

// ProcessRun executes the turn loop for a single run. This is the function
// handed to the dispatcher.
func (a *Agent) ProcessRun(ctx context.Context, run *dispatch.Run) error {
	if err := a.record(ctx, run, types.EventUserMessage, run.Event.Source, map[string]string{"text": run.Event.Text}); err != nil {
		return fmt.Errorf("record user message: %w", err)
	}

	var toolNames []string
	for _, t := range a.registry.All() {
		toolNames = append(toolNames, t.Name())
	}
	decls := a.registry.Declarations()

	var totalUsage llm.Usage

	for round := 0; round < a.maxRounds; round++ {
		session, err := a.sessions.Get(ctx, run.SessionID)
		if err != nil {
			return fmt.Errorf("load session: %w", err)
		}

		events, err := a.events.Tail(ctx, run.SessionID, 100)
		if err != nil {
			return fmt.Errorf("load events: %w", err)
		}

		messages, err := a.prompts.Build(ctx, session, events, a.artifacts, toolNames)
		if err != nil {
			return fmt.Errorf("build prompt: %w", err)
		}

		resp, err := a.provider.Complete(ctx, messages, decls)
		if err != nil {
			return fmt.Errorf("model call: %w", err)
		}
		totalUsage.PromptTokens += resp.Usage.PromptTokens
		totalUsage.CompletionTokens += resp.Usage.CompletionTokens
		totalUsage.TotalTokens += resp.Usage.TotalTokens

		// Tool calls the backend garbled are recorded and surfaced to the
		// model as errors; the run itself keeps going.
		for _, te := range resp.ToolErrors {
			slog.Warn("malformed tool call",
				"session_id", string(run.SessionID),
				"tool", te.Name,
				"index", te.Index)
			if err := a.record(ctx, run, types.EventToolError, "agent", map[string]any{
				"tool":  te.Name,
				"index": te.Index,
				"error": te.Error(),
			}); err != nil {
				return fmt.Errorf("record tool error: %w", err)
			}
		}

		if len(resp.ToolCalls) > 0 {
			for _, tc := range resp.ToolCalls {
				if err := a.executeToolCall(ctx, run, tc); err != nil {
					return err
				}
			}
			continue
		}

		if err := a.finishRun(ctx, run, session, totalUsage); err != nil {
			return err
		}

		if resp.Text != "" {
			if err := a.record(ctx, run, types.EventAssistantMessage, "agent", map[string]string{"text": resp.Text}); err != nil {
				return fmt.Errorf("record assistant message: %w", err)
			}
		}
		if run.OnComplete != nil {
			run.OnComplete(resp.Text)
		}
		return nil
	}

	errMsg := fmt.Sprintf("max tool rounds (%d) exceeded", a.maxRounds)
	a.record(ctx, run, types.EventSystemNote, "agent", map[string]string{"error": errMsg})
	return fmt.Errorf("%s", errMsg)
}

func (a *Agent) executeToolCall(ctx context.Context, run *dispatch.Run, tc llm.ToolCall) error {
	if err := a.record(ctx, run, types.EventToolCall, "agent", map[string]any{
		"tool":      tc.Name,
		"call_id":   tc.ID,
		"arguments": tc.Arguments,
	}); err != nil {
		return fmt.Errorf("record tool call: %w", err)
	}

	result := a.runTool(ctx, tc)

	payload := map[string]any{
		"tool":    tc.Name,
		"call_id": tc.ID,
		"result":  result,
	}
	if len(result) > artifactThreshold {
		artID, err := a.artifacts.Put(ctx, run.SessionID, run.ID, tc.Name, result)
		if err == nil {
			payload["artifact_id"] = string(artID)
			payload["result"] = result[:artifactThreshold] + "\n[truncated, see artifact " + string(artID) + "]"
		}
	}
	if err := a.record(ctx, run, types.EventToolResult, "agent", payload); err != nil {
		return fmt.Errorf("record tool result: %w", err)
	}
	return nil
}

// runTool resolves, gates, validates, and executes one tool call. Failures
// come back as result text so the model can react to them.
func (a *Agent) runTool(ctx context.Context, tc llm.ToolCall) string {
	t, ok := a.registry.Get(tc.Name)
	if !ok {
		return fmt.Sprintf("error: unknown tool %q", tc.Name)
	}

	allowed, err := a.policy.Allow(ctx, tc.Name, string(tc.Arguments))
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	if !allowed {
		return fmt.Sprintf("error: tool %q was not approved for this call", tc.Name)
	}

	if err := tool.ValidateArgs(t, tc.Arguments); err != nil {
		return fmt.Sprintf("error: %v", err)
	}

	result, err := t.Execute(ctx, tc.Arguments)
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	return result
}

// finishRun folds usage into the session index.
func (a *Agent) finishRun(ctx context.Context, run *dispatch.Run, session *types.SessionIndex, usage llm.Usage) error {
	seq, err := a.events.Count(ctx, run.SessionID)
	if err != nil {
		return fmt.Errorf("count events: %w", err)
	}
	session.LastRunID = run.ID
	session.LastEventSeq = seq
	session.TotalTokens += int64(usage.TotalTokens)
	if err := a.sessions.Update(ctx, session); err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}
