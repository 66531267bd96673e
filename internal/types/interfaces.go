// internal/types/interfaces.go
package types

import (
	"context"
	"encoding/json"
)

// SessionStore maps channel session keys to durable sessions.
type SessionStore interface {
	// ResolveOrCreate returns the session for key, creating it with the
	// given agent name when none exists.
	ResolveOrCreate(ctx context.Context, key SessionKey, agent string) (SessionID, error)
	Get(ctx context.Context, id SessionID) (*SessionIndex, error)
	List(ctx context.Context) ([]*SessionIndex, error)
	Update(ctx context.Context, session *SessionIndex) error
}

// EventStore is the append-only transcript for each session.
type EventStore interface {
	// Append assigns the event the next sequence number and persists it.
	Append(ctx context.Context, event *Event) error
	// Tail returns the last limit events in ascending sequence order.
	Tail(ctx context.Context, sessionID SessionID, limit int) ([]*Event, error)
	Count(ctx context.Context, sessionID SessionID) (int64, error)
}

// ArtifactStore holds oversized tool output out of the transcript.
type ArtifactStore interface {
	Put(ctx context.Context, sessionID SessionID, runID RunID, tool string, data any) (ArtifactID, error)
	Get(ctx context.Context, id ArtifactID) (json.RawMessage, error)
	GetMeta(ctx context.Context, id ArtifactID) (*ArtifactMeta, error)
	// Excerpt returns a window of the artifact centered on the first
	// occurrence of query, sized to roughly maxTokens.
	Excerpt(ctx context.Context, id ArtifactID, query string, maxTokens int) (string, error)
}
