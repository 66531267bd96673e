package llm

import (
	"errors"
	"fmt"
)

var errInvalidJSON = errors.New("arguments are not a valid JSON document")

// UnsupportedModelError reports that the model registry resolved a model to
// a protocol family the configuration has explicitly disabled. It is fatal
// to the invocation. An unknown model name alone never produces this error;
// the registry falls back to a best-effort family instead.
type UnsupportedModelError struct {
	Model  string
	Family ProtocolFamily
}

func (e *UnsupportedModelError) Error() string {
	return fmt.Sprintf("model %q resolves to disabled protocol family %q", e.Model, e.Family)
}

// TransportError reports a network or HTTP-level failure talking to the
// backend. The gateway never retries internally; callers own retry policy
// and may use StatusCode to classify.
type TransportError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: backend returned status %d: %s", e.Op, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Retryable reports whether the failure is plausibly transient. Pure
// network errors and 5xx/429 statuses are; other HTTP statuses (auth,
// validation) are not.
func (e *TransportError) Retryable() bool {
	if e.StatusCode == 0 {
		return true
	}
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// ProtocolError reports a backend payload the parser cannot interpret.
// A ProtocolError mid-stream terminates the stream early: everything
// accumulated up to that point is discarded and no final Response is
// produced, since completeness can no longer be guaranteed.
type ProtocolError struct {
	Family ProtocolFamily
	Msg    string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s protocol: %s: %v", e.Family, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s protocol: %s", e.Family, e.Msg)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// MalformedToolCallError records a single tool call whose accumulated
// arguments failed to parse as JSON at closure. It is recovered, not
// fatal: the call is dropped from Response.ToolCalls and the error is
// recorded on Response.ToolErrors, keyed by stream index.
type MalformedToolCallError struct {
	Index int
	Name  string
	Raw   string
	Err   error
}

func (e *MalformedToolCallError) Error() string {
	return fmt.Sprintf("tool call %d (%s): arguments are not valid JSON: %v", e.Index, e.Name, e.Err)
}

func (e *MalformedToolCallError) Unwrap() error { return e.Err }
