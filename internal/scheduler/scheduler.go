// internal/scheduler/scheduler.go

// Package scheduler fires stored tasks on their cron schedules.
package scheduler

import (
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/user/agentd/internal/state"
)

// Handler is invoked each time a scheduled task fires.
type Handler func(task *state.Task)

// cronParser accepts standard 5-field expressions, an optional seconds
// field, and descriptors like @daily.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Scheduler registers enabled tasks from the task store as cron entries.
type Scheduler struct {
	store   *state.TaskStore
	handler Handler
	cron    *cron.Cron
}

// New creates a Scheduler backed by the given task store.
func New(store *state.TaskStore, handler Handler) *Scheduler {
	return &Scheduler{
		store:   store,
		handler: handler,
		cron:    cron.New(cron.WithParser(cronParser)),
	}
}

// Start loads tasks from the store, registers the enabled ones that carry
// a schedule, and starts the ticker. Webhook-only tasks (no schedule) are
// skipped; they fire via HTTP instead.
func (s *Scheduler) Start() error {
	tasks, err := s.store.List()
	if err != nil {
		return err
	}

	for _, task := range tasks {
		if task.Schedule == "" || !task.Enabled {
			continue
		}
		task := task
		_, err := s.cron.AddFunc(task.Schedule, func() {
			slog.Info("task fired", "name", task.Name, "session_key", task.SessionKey)
			s.handler(task)
		})
		if err != nil {
			slog.Error("invalid cron schedule", "name", task.Name, "schedule", task.Schedule, "error", err)
			continue
		}
		slog.Info("scheduled task", "name", task.Name, "schedule", task.Schedule)
	}

	s.cron.Start()
	return nil
}

// Reload rebuilds the cron entries from the store.
func (s *Scheduler) Reload() error {
	s.cron.Stop()
	s.cron = cron.New(cron.WithParser(cronParser))
	return s.Start()
}

// Stop stops the cron ticker.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}
