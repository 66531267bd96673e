package llm

import "context"

// Provider is the backend-agnostic interface the agent runtime programs
// against. *Client satisfies it; tests substitute doubles.
type Provider interface {
	// Complete sends one invocation and blocks for the full response.
	Complete(ctx context.Context, messages []Message, tools []Tool) (*Response, error)

	// Stream sends one invocation and returns the incremental event
	// sequence, terminated by a single final Response.
	Stream(ctx context.Context, messages []Message, tools []Tool) (EventStream, error)
}

var _ Provider = (*Client)(nil)
