package llm

import (
	"context"
	"encoding/json"
)

// ChunkStream is a lazy, single-pass, non-restartable sequence of raw
// backend chunks produced by a streaming call. Next returns io.EOF when
// the backend signals end of stream. Close releases the underlying
// connection and is safe to call at any point, including before the stream
// is drained; an early Close is how a consumer cancels.
type ChunkStream interface {
	Next() (json.RawMessage, error)
	Close() error
}

// Adapter is the per-protocol-family capability set. One concrete variant
// exists per family; the client selects a variant once per invocation via
// the model registry, never at runtime per chunk.
//
// BuildParams and ParseResponse/ParseStreamDelta are pure: no I/O, no
// state carried between calls. Aggregation across chunks is the
// Accumulator's job, keeping ParseStreamDelta trivially testable
// chunk-by-chunk. Execute and ExecuteSync perform no hidden retries so
// that retry policy stays with the caller.
type Adapter interface {
	Family() ProtocolFamily

	// BuildParams translates a backend-agnostic Request into the family's
	// marshaled request body.
	BuildParams(req Request) (json.RawMessage, error)

	// ExecuteSync issues a blocking, non-streaming call and returns the
	// raw response payload.
	ExecuteSync(ctx context.Context, params json.RawMessage) (json.RawMessage, error)

	// Execute issues a streaming call and returns the raw chunk sequence.
	Execute(ctx context.Context, params json.RawMessage) (ChunkStream, error)

	// ParseResponse turns a raw non-streaming payload into a Response.
	ParseResponse(raw json.RawMessage) (*Response, error)

	// ParseStreamDelta turns one raw chunk into its parsed Delta: at most
	// one text fragment and at most one tool-call fragment.
	ParseStreamDelta(chunk json.RawMessage) (Delta, error)
}
