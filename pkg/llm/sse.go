package llm

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
)

// sseMaxLineBytes bounds a single event line. Argument fragments are tiny,
// but a response.completed event embeds the whole final payload.
const sseMaxLineBytes = 1 << 20

// sseStream reads server-sent events off an HTTP response body and yields
// each "data:" payload as one raw chunk. It is single-pass: once Next
// returns an error the stream is spent. Close always releases the body, so
// an early Close from a cancelling consumer frees the connection.
type sseStream struct {
	body       io.ReadCloser
	scanner    *bufio.Scanner
	terminator string
	closed     bool
}

// newSSEStream wraps body. If terminator is non-empty, a data payload equal
// to it (the chat protocol's "[DONE]") ends the stream.
func newSSEStream(resp *http.Response, terminator string) *sseStream {
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), sseMaxLineBytes)
	return &sseStream{body: resp.Body, scanner: sc, terminator: terminator}
}

func (s *sseStream) Next() (json.RawMessage, error) {
	if s.closed {
		return nil, io.EOF
	}
	for s.scanner.Scan() {
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 || line[0] == ':' {
			continue
		}
		data, ok := bytes.CutPrefix(line, []byte("data:"))
		if !ok {
			// "event:" and other SSE fields carry no payload we need; the
			// responses protocol repeats the event type inside the data.
			continue
		}
		data = bytes.TrimSpace(data)
		if s.terminator != "" && string(data) == s.terminator {
			s.Close()
			return nil, io.EOF
		}
		// Copy out: the scanner reuses its buffer on the next call.
		chunk := make(json.RawMessage, len(data))
		copy(chunk, data)
		return chunk, nil
	}
	if err := s.scanner.Err(); err != nil {
		s.Close()
		return nil, &TransportError{Op: "read stream", Err: err}
	}
	s.Close()
	return nil, io.EOF
}

func (s *sseStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}
