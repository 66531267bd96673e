// Package tool defines the executable tool contract, the registry the
// agent draws its tool declarations from, and the approval policy gating
// side-effectful tools.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/user/agentd/pkg/llm"
)

// Tool is an executable capability exposed to the model.
type Tool interface {
	Name() string
	Description() string
	Parameters() json.RawMessage
	Execute(ctx context.Context, args json.RawMessage) (string, error)
}

// Registry holds registered tools and provides lookup.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool to the registry, replacing any tool with the same name.
func (r *Registry) Register(t Tool) {
	r.tools[t.Name()] = t
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// All returns all registered tools sorted by name.
func (r *Registry) All() []Tool {
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Declarations converts registered tools to gateway tool declarations.
func (r *Registry) Declarations() []llm.Tool {
	all := r.All()
	out := make([]llm.Tool, 0, len(all))
	for _, t := range all {
		out = append(out, llm.Tool{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return out
}

// ValidateArgs checks the arguments object against the tool's parameter
// schema: every key the schema lists as required must be present.
func ValidateArgs(t Tool, args json.RawMessage) error {
	var schema struct {
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(t.Parameters(), &schema); err != nil {
		return fmt.Errorf("parse %s parameter schema: %w", t.Name(), err)
	}
	if len(schema.Required) == 0 {
		return nil
	}

	var provided map[string]json.RawMessage
	if len(args) > 0 {
		if err := json.Unmarshal(args, &provided); err != nil {
			return fmt.Errorf("parse %s arguments: %w", t.Name(), err)
		}
	}
	for _, key := range schema.Required {
		if _, ok := provided[key]; !ok {
			return fmt.Errorf("%s: missing required argument %q", t.Name(), key)
		}
	}
	return nil
}
