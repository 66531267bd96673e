// internal/state/task.go
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Task is a named prompt that can be fired on a cron schedule or by a
// webhook. SessionKey decides which session the run lands in.
type Task struct {
	Name       string    `json:"name"`
	Prompt     string    `json:"prompt"`
	Schedule   string    `json:"schedule,omitempty"`
	SessionKey string    `json:"session_key"`
	Enabled    bool      `json:"enabled"`
	CreatedAt  time.Time `json:"created_at"`
}

// TaskStore is a JSON-file-backed store for tasks, keyed by name.
type TaskStore struct {
	path string
	mu   sync.RWMutex
}

// NewTaskStore creates a file-backed TaskStore at the given file path.
func NewTaskStore(path string) *TaskStore {
	return &TaskStore{path: path}
}

// Path returns the file path used by this store.
func (s *TaskStore) Path() string {
	return s.path
}

// List returns all tasks sorted by name.
func (s *TaskStore) List() ([]*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]*Task, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, task)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Get finds a task by name.
func (s *TaskStore) Get(name string) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks, err := s.load()
	if err != nil {
		return nil, err
	}
	task, ok := tasks[name]
	if !ok {
		return nil, fmt.Errorf("task not found: %s", name)
	}
	return task, nil
}

// Add stores a task. Names are unique.
func (s *TaskStore) Add(task *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, err := s.load()
	if err != nil {
		return err
	}
	if _, exists := tasks[task.Name]; exists {
		return fmt.Errorf("task already exists: %s", task.Name)
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	tasks[task.Name] = task
	return s.save(tasks)
}

// Remove deletes a task by name.
func (s *TaskStore) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := tasks[name]; !ok {
		return fmt.Errorf("task not found: %s", name)
	}
	delete(tasks, name)
	return s.save(tasks)
}

// SetEnabled toggles the enabled flag for a task.
func (s *TaskStore) SetEnabled(name string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, err := s.load()
	if err != nil {
		return err
	}
	task, ok := tasks[name]
	if !ok {
		return fmt.Errorf("task not found: %s", name)
	}
	task.Enabled = enabled
	return s.save(tasks)
}

func (s *TaskStore) load() (map[string]*Task, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]*Task), nil
		}
		return nil, fmt.Errorf("read tasks file: %w", err)
	}

	tasks := make(map[string]*Task)
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, fmt.Errorf("unmarshal tasks: %w", err)
	}
	return tasks, nil
}

func (s *TaskStore) save(tasks map[string]*Task) error {
	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal tasks: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create tasks dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp tasks file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp tasks file: %w", err)
	}
	return nil
}
