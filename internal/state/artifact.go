// internal/state/artifact.go
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/user/agentd/internal/types"
)

// artifactFile is the on-disk format, {"meta": ..., "data": ...} per file.
type artifactFile struct {
	Meta *types.ArtifactMeta `json:"meta"`
	Data json.RawMessage     `json:"data"`
}

// ArtifactStore keeps oversized tool outputs out of the transcript. Each
// artifact is one JSON file at sessions/<sessionID>/artifacts/<id>.json;
// the transcript carries only the artifact ID and an excerpt.
type ArtifactStore struct {
	root string
}

// NewArtifactStore creates an ArtifactStore rooted at the given directory.
func NewArtifactStore(root string) *ArtifactStore {
	return &ArtifactStore{root: root}
}

func (a *ArtifactStore) artifactsDir(sessionID types.SessionID) string {
	return filepath.Join(a.root, "sessions", string(sessionID), "artifacts")
}

func (a *ArtifactStore) artifactPath(sessionID types.SessionID, artifactID types.ArtifactID) string {
	return filepath.Join(a.artifactsDir(sessionID), string(artifactID)+".json")
}

// findArtifact locates an artifact file by ID across all sessions.
func (a *ArtifactStore) findArtifact(id types.ArtifactID) (string, error) {
	pattern := filepath.Join(a.root, "sessions", "*", "artifacts", string(id)+".json")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", fmt.Errorf("glob artifact: %w", err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("artifact not found: %s", id)
	}
	return matches[0], nil
}

func (a *ArtifactStore) read(id types.ArtifactID) (*artifactFile, error) {
	path, err := a.findArtifact(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact file: %w", err)
	}
	var af artifactFile
	if err := json.Unmarshal(data, &af); err != nil {
		return nil, fmt.Errorf("unmarshal artifact: %w", err)
	}
	return &af, nil
}

// Put stores an artifact and returns its ID.
func (a *ArtifactStore) Put(_ context.Context, sessionID types.SessionID, runID types.RunID, tool string, data any) (types.ArtifactID, error) {
	rawData, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal artifact data: %w", err)
	}

	id := types.NewArtifactID()
	af := &artifactFile{
		Meta: &types.ArtifactMeta{
			ID:        id,
			SessionID: sessionID,
			RunID:     runID,
			Tool:      tool,
			CreatedAt: time.Now(),
			SizeBytes: int64(len(rawData)),
		},
		Data: rawData,
	}

	content, err := json.MarshalIndent(af, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal artifact: %w", err)
	}

	if err := os.MkdirAll(a.artifactsDir(sessionID), 0o755); err != nil {
		return "", fmt.Errorf("create artifacts dir: %w", err)
	}

	target := a.artifactPath(sessionID, id)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return "", fmt.Errorf("write temp artifact: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("rename temp artifact: %w", err)
	}
	return id, nil
}

// Get returns the raw data for the given artifact.
func (a *ArtifactStore) Get(_ context.Context, id types.ArtifactID) (json.RawMessage, error) {
	af, err := a.read(id)
	if err != nil {
		return nil, err
	}
	return af.Data, nil
}

// GetMeta returns the metadata for the given artifact.
func (a *ArtifactStore) GetMeta(_ context.Context, id types.ArtifactID) (*types.ArtifactMeta, error) {
	af, err := a.read(id)
	if err != nil {
		return nil, err
	}
	return af.Meta, nil
}

// Excerpt returns a truncated view of the artifact data, centered on the
// query substring when it matches. maxTokens is converted to a character
// budget at roughly four characters per token.
func (a *ArtifactStore) Excerpt(_ context.Context, id types.ArtifactID, query string, maxTokens int) (string, error) {
	af, err := a.read(id)
	if err != nil {
		return "", err
	}

	raw := string(af.Data)
	maxChars := maxTokens * 4
	if maxChars <= 0 || maxChars > len(raw) {
		maxChars = len(raw)
	}

	if query != "" {
		if idx := strings.Index(strings.ToLower(raw), strings.ToLower(query)); idx >= 0 {
			start := idx - maxChars/2
			if start < 0 {
				start = 0
			}
			end := start + maxChars
			if end > len(raw) {
				end = len(raw)
			}
			return raw[start:end], nil
		}
	}
	return raw[:maxChars], nil
}
