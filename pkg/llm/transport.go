package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxErrorBodyBytes = 2048

// postJSON issues one POST and returns the response. Non-2xx statuses are
// surfaced as TransportError with the status and a body excerpt; the body
// is consumed and closed on that path. On success the caller owns the body.
func postJSON(ctx context.Context, client *http.Client, url, apiKey string, body json.RawMessage, stream bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Op: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "send request", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		resp.Body.Close()
		return nil, &TransportError{
			Op:         "send request",
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(excerpt)),
		}
	}
	return resp, nil
}

// readAll drains and closes a non-streaming response body.
func readAll(resp *http.Response) (json.RawMessage, error) {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: "read response", Err: err}
	}
	return json.RawMessage(data), nil
}

// setStream rewrites the marshaled params with the protocol's stream flag.
// BuildParams stays pure and transport-agnostic; only the execute step
// knows whether the caller wants a stream.
func setStream(params json.RawMessage, extra map[string]any) (json.RawMessage, error) {
	var m map[string]any
	if err := json.Unmarshal(params, &m); err != nil {
		return nil, fmt.Errorf("params are not a JSON object: %w", err)
	}
	for k, v := range extra {
		m[k] = v
	}
	return json.Marshal(m)
}
