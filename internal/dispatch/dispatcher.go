// Package dispatch turns inbound events into queued runs. Sessions are
// resolved (or created) from the event's session key; each run is pushed
// onto the session's FIFO lane and executed under a retry policy.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/user/agentd/internal/types"
)

// Processor executes one run, typically a full agent turn.
type Processor func(ctx context.Context, run *Run) error

type Dispatcher struct {
	sessions types.SessionStore
	queue    *Queue
	retry    *RetryPolicy
}

// New creates a Dispatcher with the given concurrency limit. A zero or
// negative limit falls back to 2.
func New(sessions types.SessionStore, maxConcurrent int64) *Dispatcher {
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	return &Dispatcher{
		sessions: sessions,
		queue:    NewQueue(maxConcurrent),
		retry:    DefaultRetryPolicy(),
	}
}

// SetProcessor installs the per-run processor. Each attempt of the retry
// policy invokes it afresh.
func (d *Dispatcher) SetProcessor(fn Processor) {
	d.queue.SetProcessor(func(ctx context.Context, run *Run) error {
		return d.retry.Execute(ctx, func() error {
			run.Attempts++
			return fn(ctx, run)
		})
	})
}

// SetRetryPolicy replaces the default retry policy.
func (d *Dispatcher) SetRetryPolicy(p *RetryPolicy) {
	d.retry = p
}

// Start makes the dispatcher ready to accept runs.
func (d *Dispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Stop drains the queue and waits for in-flight runs.
func (d *Dispatcher) Stop() {
	d.queue.Stop()
}

// WaitIdle blocks until no runs are in flight or the timeout expires.
func (d *Dispatcher) WaitIdle(timeout time.Duration) bool {
	return d.queue.WaitIdle(timeout)
}

// RunOption configures optional behavior on a Run.
type RunOption func(*Run)

// WithOnComplete sets a callback invoked with the final response text.
func WithOnComplete(fn func(string)) RunOption {
	return func(r *Run) { r.OnComplete = fn }
}

// HandleInbound resolves or creates a session for the event and enqueues
// a run for it.
func (d *Dispatcher) HandleInbound(ctx context.Context, event *types.InboundEvent, opts ...RunOption) error {
	sessionID, err := d.sessions.ResolveOrCreate(ctx, event.SessionKey, "default")
	if err != nil {
		return fmt.Errorf("resolve session: %w", err)
	}
	run := NewRun(sessionID, event)
	for _, opt := range opts {
		opt(run)
	}
	return d.queue.Enqueue(run)
}
