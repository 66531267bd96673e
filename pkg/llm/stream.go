package llm

import (
	"encoding/json"
	"io"
	"strings"
)

// Event is one element of a streaming invocation's result sequence:
// either an incremental text fragment or, exactly once as the last
// element, the complete final Response.
type Event struct {
	Content string
	Final   *Response
}

// EventStream is the caller-facing view of one streaming invocation.
// Recv returns events until the final one, then io.EOF. Close cancels
// consumption: the transport is released and accumulated state is
// discarded without ever producing a final Response.
type EventStream interface {
	Recv() (Event, error)
	Close() error
}

// Stream drives one streaming invocation: it pulls raw chunks off the
// ChunkStream in strict arrival order, parses each with the adapter, and
// folds tool-call fragments into its Accumulator. All state here belongs
// to this single invocation and is dropped when the stream finishes or is
// closed.
type Stream struct {
	adapter Adapter
	chunks  ChunkStream
	acc     *Accumulator

	text     strings.Builder
	id       string
	usage    Usage
	hasUsage bool
	final    json.RawMessage

	done bool
	err  error
}

func newStream(adapter Adapter, chunks ChunkStream) *Stream {
	return &Stream{adapter: adapter, chunks: chunks, acc: NewAccumulator()}
}

// Recv returns the next event. Chunks yielding neither text nor a final
// result (tool-call fragments, usage trailers) are consumed silently.
// On a transport or protocol error the stream terminates without a final
// Response: an aborted stream never returns a result object at all.
func (s *Stream) Recv() (Event, error) {
	if s.err != nil {
		return Event{}, s.err
	}
	if s.done {
		return Event{}, io.EOF
	}

	for {
		raw, err := s.chunks.Next()
		if err == io.EOF {
			return s.finish()
		}
		if err != nil {
			return Event{}, s.fail(err)
		}

		delta, err := s.adapter.ParseStreamDelta(raw)
		if err != nil {
			return Event{}, s.fail(err)
		}

		if delta.ID != "" {
			s.id = delta.ID
		}
		if delta.Usage != nil {
			s.usage = *delta.Usage
			s.hasUsage = true
		}
		if delta.ToolCall != nil {
			s.acc.Apply(delta.ToolCall)
		}
		if delta.Final != nil {
			s.final = delta.Final
		}
		if delta.Done {
			// In-band end-of-stream signal; release the connection now
			// rather than waiting for EOF.
			return s.finish()
		}
		if delta.Content != "" {
			s.text.WriteString(delta.Content)
			return Event{Content: delta.Content}, nil
		}
	}
}

// finish closes every still-open tool call, assembles the single complete
// Response, and emits it as the terminal event.
func (s *Stream) finish() (Event, error) {
	s.done = true
	s.chunks.Close()

	calls, toolErrs := s.acc.Finish()
	resp := &Response{
		Text:       s.text.String(),
		ToolCalls:  calls,
		ID:         s.id,
		Usage:      s.usage,
		Raw:        s.final,
		ToolErrors: toolErrs,
	}

	// Protocols that attach the complete payload to their end-of-stream
	// event can backfill anything the deltas did not carry.
	if s.final != nil {
		if fr, err := s.adapter.ParseResponse(s.final); err == nil {
			if resp.Text == "" {
				resp.Text = fr.Text
			}
			if resp.ID == "" {
				resp.ID = fr.ID
			}
			if !s.hasUsage {
				resp.Usage = fr.Usage
			}
		}
	}
	return Event{Final: resp}, nil
}

func (s *Stream) fail(err error) error {
	s.err = err
	s.done = true
	s.chunks.Close()
	return err
}

// Close abandons the stream. Safe to call concurrently with nothing and
// repeatedly; after Close, Recv reports io.EOF without a final Response.
func (s *Stream) Close() error {
	s.done = true
	return s.chunks.Close()
}
