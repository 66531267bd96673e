package llm

import (
	"sort"
	"strings"
)

// ProtocolFamily identifies a backend's request/response wire shape.
type ProtocolFamily string

const (
	// FamilyChat is the chat-completions wire protocol: a messages array,
	// tools nested under a "function" key, deltas under choices[].delta.
	FamilyChat ProtocolFamily = "chat_completions"

	// FamilyResponses is the responses wire protocol: flattened input
	// items, top-level tool declarations, typed stream events.
	FamilyResponses ProtocolFamily = "responses"
)

// defaultFamilyPatterns routes known model name fragments to a protocol
// family. Longer patterns win, so "gpt-5-pro" routes to the responses
// family even though "gpt-5" alone routes to chat.
var defaultFamilyPatterns = map[string]ProtocolFamily{
	"codex":      FamilyResponses,
	"gpt-5-pro":  FamilyResponses,
	"gpt-5.1-pro": FamilyResponses,
	"gpt-5.2-pro": FamilyResponses,
	"gpt-5":      FamilyChat,
	"gpt-4":      FamilyChat,
	"gpt-3.5":    FamilyChat,
	"o1-":        FamilyChat,
	"o3-":        FamilyChat,
}

type familyRule struct {
	pattern string
	family  ProtocolFamily
}

// Registry maps model identifiers to protocol families. It is built once,
// is immutable afterwards, and resolution is a pure function: the same
// identifier always resolves to the same family for the lifetime of the
// registry. There is no process-wide mutable table.
type Registry struct {
	rules    []familyRule
	disabled map[ProtocolFamily]bool
}

// NewRegistry builds a registry from the default pattern table plus
// caller-supplied overrides (override patterns shadow defaults of the same
// pattern). Families listed in disabled cause Resolve to fail for models
// that route to them.
func NewRegistry(overrides map[string]ProtocolFamily, disabled ...ProtocolFamily) *Registry {
	merged := make(map[string]ProtocolFamily, len(defaultFamilyPatterns)+len(overrides))
	for p, f := range defaultFamilyPatterns {
		merged[p] = f
	}
	for p, f := range overrides {
		merged[strings.ToLower(p)] = f
	}

	rules := make([]familyRule, 0, len(merged))
	for p, f := range merged {
		rules = append(rules, familyRule{pattern: p, family: f})
	}
	// Longest pattern first so the most specific rule wins.
	sort.Slice(rules, func(i, j int) bool {
		if len(rules[i].pattern) != len(rules[j].pattern) {
			return len(rules[i].pattern) > len(rules[j].pattern)
		}
		return rules[i].pattern < rules[j].pattern
	})

	dis := make(map[ProtocolFamily]bool, len(disabled))
	for _, f := range disabled {
		dis[f] = true
	}
	return &Registry{rules: rules, disabled: dis}
}

// Resolve maps a model identifier to its protocol family. Matching is
// case-insensitive substring, longest pattern first. Unknown identifiers
// fall back to FamilyChat rather than failing: new model names appear
// faster than any table can be updated. The only failure mode is a model
// routing to an explicitly disabled family.
func (r *Registry) Resolve(model string) (ProtocolFamily, error) {
	family := FamilyChat
	lower := strings.ToLower(model)
	for _, rule := range r.rules {
		if strings.Contains(lower, rule.pattern) {
			family = rule.family
			break
		}
	}
	if r.disabled[family] {
		return "", &UnsupportedModelError{Model: model, Family: family}
	}
	return family, nil
}
