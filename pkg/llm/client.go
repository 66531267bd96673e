package llm

import (
	"context"
	"net/http"
)

// Config is the immutable construction-time configuration for a Client.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string

	// Mode forces a protocol family: "chat", "responses", or "" / "auto"
	// to detect from the model name.
	Mode string

	// Families adds model-pattern -> family overrides on top of the
	// built-in detection table.
	Families map[string]ProtocolFamily

	// Disabled lists families this client refuses to use. A model that
	// resolves to a disabled family fails with UnsupportedModelError.
	Disabled []ProtocolFamily

	Temperature *float64
	TopP        *float64
	MaxTokens   int

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// Client is the gateway entry point. The protocol family and its adapter
// are resolved once at construction from the registry; invocations share
// no mutable state, so one Client may serve any number of concurrent
// calls, streaming or not.
type Client struct {
	model   string
	family  ProtocolFamily
	adapter Adapter
	opts    Options
}

// New builds a Client for cfg.Model. Family resolution order: explicit
// Mode, then registry pattern detection, then the chat default.
func New(cfg Config) (*Client, error) {
	registry := NewRegistry(cfg.Families, cfg.Disabled...)

	var family ProtocolFamily
	switch cfg.Mode {
	case "responses":
		family = FamilyResponses
	case "chat", "chat_completion", "completion":
		family = FamilyChat
	default:
		f, err := registry.Resolve(cfg.Model)
		if err != nil {
			return nil, err
		}
		family = f
	}
	for _, d := range cfg.Disabled {
		if d == family {
			return nil, &UnsupportedModelError{Model: cfg.Model, Family: family}
		}
	}

	var adapter Adapter
	switch family {
	case FamilyResponses:
		adapter = NewResponsesAdapter(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.HTTPClient)
	default:
		adapter = NewChatAdapter(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.HTTPClient)
	}

	return &Client{
		model:   cfg.Model,
		family:  family,
		adapter: adapter,
		opts: Options{
			Temperature: cfg.Temperature,
			TopP:        cfg.TopP,
			MaxTokens:   cfg.MaxTokens,
		},
	}, nil
}

// Family returns the protocol family this client resolved at construction.
func (c *Client) Family() ProtocolFamily { return c.family }

// Complete performs one non-streaming invocation and returns the complete
// uniform response.
func (c *Client) Complete(ctx context.Context, messages []Message, tools []Tool) (*Response, error) {
	params, err := c.adapter.BuildParams(Request{Messages: messages, Tools: tools, Options: c.opts})
	if err != nil {
		return nil, err
	}
	raw, err := c.adapter.ExecuteSync(ctx, params)
	if err != nil {
		return nil, err
	}
	return c.adapter.ParseResponse(raw)
}

// Stream performs one streaming invocation. The returned stream yields
// text fragments as they arrive and exactly one terminal event carrying
// the complete Response. Closing the stream early cancels the invocation,
// releases the transport, and discards any partially accumulated state;
// no partial result is ever surfaced.
func (c *Client) Stream(ctx context.Context, messages []Message, tools []Tool) (EventStream, error) {
	params, err := c.adapter.BuildParams(Request{Messages: messages, Tools: tools, Options: c.opts})
	if err != nil {
		return nil, err
	}
	chunks, err := c.adapter.Execute(ctx, params)
	if err != nil {
		return nil, err
	}
	return newStream(c.adapter, chunks), nil
}
