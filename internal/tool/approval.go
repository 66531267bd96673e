package tool

import (
	"context"
	"fmt"
)

// Mode decides what happens before a tool call executes.
type Mode string

const (
	// ModeAuto executes without asking.
	ModeAuto Mode = "auto"
	// ModeConfirm asks the configured Approver first.
	ModeConfirm Mode = "confirm"
	// ModeDeny refuses the call outright.
	ModeDeny Mode = "deny"
)

// Approver answers confirmation requests for gated tool calls, e.g. by
// messaging the session's channel and waiting for a reply.
type Approver interface {
	Approve(ctx context.Context, toolName string, args string) (bool, error)
}

// Policy maps tool names to approval modes with a default for tools the
// map does not mention.
type Policy struct {
	Default  Mode
	PerTool  map[string]Mode
	approver Approver
}

// NewPolicy creates a Policy with the given default mode.
func NewPolicy(def Mode) *Policy {
	if def == "" {
		def = ModeAuto
	}
	return &Policy{Default: def, PerTool: make(map[string]Mode)}
}

// SetApprover installs the approver consulted for ModeConfirm tools.
func (p *Policy) SetApprover(a Approver) {
	p.approver = a
}

// Set overrides the mode for a single tool.
func (p *Policy) Set(toolName string, mode Mode) {
	p.PerTool[toolName] = mode
}

// ModeFor returns the effective mode for a tool.
func (p *Policy) ModeFor(toolName string) Mode {
	if mode, ok := p.PerTool[toolName]; ok {
		return mode
	}
	return p.Default
}

// Allow decides whether the given tool call may proceed. ModeConfirm
// without a configured approver denies the call.
func (p *Policy) Allow(ctx context.Context, toolName string, args string) (bool, error) {
	switch p.ModeFor(toolName) {
	case ModeDeny:
		return false, nil
	case ModeConfirm:
		if p.approver == nil {
			return false, fmt.Errorf("tool %s requires confirmation but no approver is configured", toolName)
		}
		return p.approver.Approve(ctx, toolName, args)
	default:
		return true, nil
	}
}
