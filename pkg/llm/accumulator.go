package llm

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

type callState int

const (
	callAbsent callState = iota
	callOpening
	callAccumulating
	callClosed
)

// partialCall is the in-progress buffer for one stream index.
type partialCall struct {
	state callState
	id    string
	name  string
	args  strings.Builder
	done  *ToolCall // set at closure when the arguments parsed
}

// Accumulator reassembles fragmented tool calls from stream deltas. It is
// owned by exactly one in-flight streaming invocation and is either
// finalized into ToolCall values when the stream ends or discarded on
// cancellation; it is not safe for concurrent use and does not need to be.
//
// Per index the lifecycle is absent -> opening -> accumulating -> closed.
// ID and name are immutable once set; argument fragments are concatenated
// verbatim in arrival order (the backend streams the characters of one
// JSON document, so this is string concatenation, never a JSON merge).
// Buffers are independent per index: fragments for different indices may
// interleave arbitrarily on the wire without cross-contamination.
type Accumulator struct {
	calls map[int]*partialCall
	errs  []*MalformedToolCallError
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{calls: make(map[int]*partialCall)}
}

// Apply folds one delta into the per-index state. Fragments arriving for
// an already-closed index are dropped.
func (a *Accumulator) Apply(d *ToolCallDelta) {
	if d == nil {
		return
	}
	p, ok := a.calls[d.Index]
	if !ok {
		p = &partialCall{state: callOpening}
		a.calls[d.Index] = p
	}
	if p.state == callClosed {
		return
	}
	if p.id == "" && d.ID != "" {
		p.id = d.ID
	}
	if p.name == "" && d.Name != "" {
		p.name = d.Name
	}
	if d.Arguments != "" {
		// A closing delta may carry the full argument document; use it
		// only when no fragments were streamed beforehand, otherwise the
		// fragments are authoritative.
		if !d.Done || p.args.Len() == 0 {
			p.args.WriteString(d.Arguments)
			p.state = callAccumulating
		}
	}
	if d.Done {
		a.closeIndex(d.Index, p)
	}
}

// closeIndex parses the accumulated argument buffer. A parse failure drops
// the call and records a MalformedToolCallError for the index instead of
// failing the stream.
func (a *Accumulator) closeIndex(index int, p *partialCall) {
	p.state = callClosed

	raw := p.args.String()
	if raw == "" {
		// Argument-less calls are legal; the backend may omit fragments
		// entirely for a zero-parameter function.
		raw = "{}"
	}
	if p.name == "" {
		a.errs = append(a.errs, &MalformedToolCallError{
			Index: index,
			Raw:   raw,
			Err:   fmt.Errorf("tool call closed without a function name"),
		})
		return
	}
	if !json.Valid([]byte(raw)) {
		a.errs = append(a.errs, &MalformedToolCallError{
			Index: index,
			Name:  p.name,
			Raw:   raw,
			Err:   fmt.Errorf("unbalanced or truncated JSON"),
		})
		return
	}
	p.done = &ToolCall{ID: p.id, Name: p.name, Arguments: json.RawMessage(raw)}
}

// Finish closes every index that is still open and returns the completed
// calls ordered by ascending stream index (never by fragment arrival
// order), together with the per-index errors for calls that were dropped.
func (a *Accumulator) Finish() ([]ToolCall, []*MalformedToolCallError) {
	indices := make([]int, 0, len(a.calls))
	for i := range a.calls {
		indices = append(indices, i)
	}
	sort.Ints(indices)

	var calls []ToolCall
	for _, i := range indices {
		p := a.calls[i]
		if p.state != callClosed {
			a.closeIndex(i, p)
		}
		if p.done != nil {
			calls = append(calls, *p.done)
		}
	}

	sort.Slice(a.errs, func(i, j int) bool { return a.errs[i].Index < a.errs[j].Index })
	return calls, a.errs
}
