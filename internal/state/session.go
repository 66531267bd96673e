// internal/state/session.go
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/user/agentd/internal/types"
)

// SessionStore maps session keys to sessions, persisted as a single JSON
// index at sessions/sessions.json with per-session directories alongside.
// The index is loaded once and kept in memory; every mutation writes
// through to disk atomically.
type SessionStore struct {
	root  string
	mu    sync.RWMutex
	index map[types.SessionKey]*types.SessionIndex
}

// NewSessionStore creates a SessionStore rooted at the given directory.
func NewSessionStore(root string) *SessionStore {
	return &SessionStore{root: root}
}

func (s *SessionStore) indexPath() string {
	return filepath.Join(s.root, "sessions", "sessions.json")
}

func (s *SessionStore) sessionDir(id types.SessionID) string {
	return filepath.Join(s.root, "sessions", string(id))
}

// ensureLoaded populates the in-memory index from disk on first use.
// Caller must hold the write lock.
func (s *SessionStore) ensureLoaded() error {
	if s.index != nil {
		return nil
	}
	s.index = make(map[types.SessionKey]*types.SessionIndex)

	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read session index: %w", err)
	}

	var sessions []*types.SessionIndex
	if err := json.Unmarshal(data, &sessions); err != nil {
		return fmt.Errorf("unmarshal session index: %w", err)
	}
	for _, sess := range sessions {
		s.index[sess.SessionKey] = sess
	}
	return nil
}

// flush writes the in-memory index to disk. Caller must hold the write lock.
func (s *SessionStore) flush() error {
	sessions := make([]*types.SessionIndex, 0, len(s.index))
	for _, sess := range s.index {
		sessions = append(sessions, sess)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})

	data, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session index: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.indexPath()), 0o755); err != nil {
		return fmt.Errorf("create sessions dir: %w", err)
	}

	tmp := s.indexPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp index: %w", err)
	}
	if err := os.Rename(tmp, s.indexPath()); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp index: %w", err)
	}
	return nil
}

// ResolveOrCreate returns the SessionID for the given key, creating a new
// session if no session with that key exists yet.
func (s *SessionStore) ResolveOrCreate(_ context.Context, key types.SessionKey, agent string) (types.SessionID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return "", err
	}
	if existing, ok := s.index[key]; ok {
		return existing.SessionID, nil
	}

	now := time.Now()
	id := types.NewSessionID()
	s.index[key] = &types.SessionIndex{
		SessionID:  id,
		SessionKey: key,
		Agent:      agent,
		Status:     "active",
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.flush(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.sessionDir(id), 0o755); err != nil {
		return "", fmt.Errorf("create session dir: %w", err)
	}
	return id, nil
}

// Get returns the session with the given ID.
func (s *SessionStore) Get(_ context.Context, id types.SessionID) (*types.SessionIndex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	for _, sess := range s.index {
		if sess.SessionID == id {
			return sess, nil
		}
	}
	return nil, fmt.Errorf("session not found: %s", id)
}

// List returns all sessions ordered by creation time.
func (s *SessionStore) List(_ context.Context) ([]*types.SessionIndex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	sessions := make([]*types.SessionIndex, 0, len(s.index))
	for _, sess := range s.index {
		sessions = append(sessions, sess)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	return sessions, nil
}

// Update persists changes to the given session, bumping UpdatedAt.
func (s *SessionStore) Update(_ context.Context, session *types.SessionIndex) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return err
	}
	if _, ok := s.index[session.SessionKey]; !ok {
		return fmt.Errorf("session not found: %s", session.SessionKey)
	}
	session.UpdatedAt = time.Now()
	s.index[session.SessionKey] = session
	return s.flush()
}
