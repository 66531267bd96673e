// internal/state/event.go
package state

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/user/agentd/internal/types"
)

// EventStore is an append-only transcript, one JSONL file per session at
// sessions/<sessionID>/events.jsonl. Sequence numbers are assigned on
// append; the counter is recovered by scanning the file once per session
// and cached afterwards.
type EventStore struct {
	root  string
	mu    sync.Mutex
	locks map[types.SessionID]*sync.Mutex
	seqs  map[types.SessionID]int64
}

// NewEventStore creates an EventStore rooted at the given directory.
func NewEventStore(root string) *EventStore {
	return &EventStore{
		root:  root,
		locks: make(map[types.SessionID]*sync.Mutex),
		seqs:  make(map[types.SessionID]int64),
	}
}

func (e *EventStore) getLock(sessionID types.SessionID) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	if lock, ok := e.locks[sessionID]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	e.locks[sessionID] = lock
	return lock
}

func (e *EventStore) eventsPath(sessionID types.SessionID) string {
	return filepath.Join(e.root, "sessions", string(sessionID), "events.jsonl")
}

// seq returns the cached event count for a session, scanning the file on
// first use. Caller must hold the session lock.
func (e *EventStore) seq(sessionID types.SessionID) (int64, error) {
	e.mu.Lock()
	n, ok := e.seqs[sessionID]
	e.mu.Unlock()
	if ok {
		return n, nil
	}

	f, err := os.Open(e.eventsPath(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			n = 0
		} else {
			return 0, fmt.Errorf("open events file: %w", err)
		}
	} else {
		defer f.Close()
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			n++
		}
		if err := scanner.Err(); err != nil {
			return 0, fmt.Errorf("scan events file: %w", err)
		}
	}

	e.mu.Lock()
	e.seqs[sessionID] = n
	e.mu.Unlock()
	return n, nil
}

func (e *EventStore) setSeq(sessionID types.SessionID, n int64) {
	e.mu.Lock()
	e.seqs[sessionID] = n
	e.mu.Unlock()
}

// Append adds an event to the session transcript, assigning the next
// sequence number.
func (e *EventStore) Append(_ context.Context, event *types.Event) error {
	lock := e.getLock(event.SessionID)
	lock.Lock()
	defer lock.Unlock()

	dir := filepath.Dir(e.eventsPath(event.SessionID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	existing, err := e.seq(event.SessionID)
	if err != nil {
		return err
	}
	event.Seq = existing + 1

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	f, err := os.OpenFile(e.eventsPath(event.SessionID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open events file: %w", err)
	}
	defer f.Close()

	data = append(data, '\n')
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	e.setSeq(event.SessionID, event.Seq)
	return nil
}

// Tail returns the last N events for the given session.
func (e *EventStore) Tail(_ context.Context, sessionID types.SessionID, limit int) ([]*types.Event, error) {
	lock := e.getLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	f, err := os.Open(e.eventsPath(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open events file: %w", err)
	}
	defer f.Close()

	var events []*types.Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var event types.Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			return nil, fmt.Errorf("unmarshal event: %w", err)
		}
		events = append(events, &event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan events file: %w", err)
	}

	if len(events) > limit {
		events = events[len(events)-limit:]
	}
	return events, nil
}

// Count returns the number of events recorded for the given session.
func (e *EventStore) Count(_ context.Context, sessionID types.SessionID) (int64, error) {
	lock := e.getLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	return e.seq(sessionID)
}
