package llm

import (
	"encoding/json"
	"io"
	"testing"
)

// fakeChunks replays canned chunks and records whether it was released.
type fakeChunks struct {
	chunks []string
	pos    int
	closed bool
}

func (f *fakeChunks) Next() (json.RawMessage, error) {
	if f.closed || f.pos >= len(f.chunks) {
		return nil, io.EOF
	}
	c := f.chunks[f.pos]
	f.pos++
	return json.RawMessage(c), nil
}

func (f *fakeChunks) Close() error {
	f.closed = true
	return nil
}

func drain(t *testing.T, s *Stream) (string, *Response) {
	t.Helper()
	var text string
	for {
		ev, err := s.Recv()
		if err == io.EOF {
			t.Fatal("stream ended without a final response")
		}
		if err != nil {
			t.Fatal(err)
		}
		text += ev.Content
		if ev.Final != nil {
			return text, ev.Final
		}
	}
}

func TestStreamInterleavedToolCallOrdering(t *testing.T) {
	// Fragments for index 1 arrive first; the final sequence must be
	// [index0, index1] regardless.
	chunks := &fakeChunks{chunks: []string{
		`{"choices":[{"delta":{"tool_calls":[{"index":1,"id":"b","function":{"name":"second","arguments":"{\"k\":"}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"a","function":{"name":"first","arguments":"{}"}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":1,"function":{"arguments":"2}"}}]}}]}`,
	}}
	s := newStream(chatAdapterForTest(""), chunks)

	_, final := drain(t, s)
	if len(final.ToolCalls) != 2 {
		t.Fatalf("tool calls = %+v", final.ToolCalls)
	}
	if final.ToolCalls[0].Name != "first" || final.ToolCalls[1].Name != "second" {
		t.Errorf("order = %q, %q", final.ToolCalls[0].Name, final.ToolCalls[1].Name)
	}
	if !chunks.closed {
		t.Error("chunk stream not released after finish")
	}
}

func TestStreamMalformedToolCallRecovered(t *testing.T) {
	chunks := &fakeChunks{chunks: []string{
		`{"choices":[{"delta":{"content":"text survives"}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"bad","function":{"name":"broken","arguments":"{\"x\""}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":1,"id":"ok","function":{"name":"fine","arguments":"{}"}}]}}]}`,
	}}
	s := newStream(chatAdapterForTest(""), chunks)

	text, final := drain(t, s)
	if text != "text survives" {
		t.Errorf("text = %q", text)
	}
	if len(final.ToolCalls) != 1 || final.ToolCalls[0].Name != "fine" {
		t.Fatalf("tool calls = %+v", final.ToolCalls)
	}
	if len(final.ToolErrors) != 1 || final.ToolErrors[0].Index != 0 {
		t.Fatalf("tool errors = %+v", final.ToolErrors)
	}
}

func TestStreamCloseDiscardsState(t *testing.T) {
	chunks := &fakeChunks{chunks: []string{
		`{"choices":[{"delta":{"content":"a"}}]}`,
		`{"choices":[{"delta":{"content":"b"}}]}`,
	}}
	s := newStream(chatAdapterForTest(""), chunks)

	if _, err := s.Recv(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if !chunks.closed {
		t.Error("underlying chunk stream not released on Close")
	}
	if _, err := s.Recv(); err != io.EOF {
		t.Fatalf("Recv after Close = %v, want io.EOF", err)
	}
}
