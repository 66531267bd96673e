package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/user/agentd/internal/types"
)

const laneBuffer = 100

// Queue gives each session its own FIFO lane so runs within a session
// execute in order, while a weighted semaphore caps how many runs execute
// at once across all sessions.
type Queue struct {
	lanes     map[types.SessionID]chan *Run
	semaphore *semaphore.Weighted
	processor func(context.Context, *Run) error
	active    atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewQueue creates a Queue allowing up to maxConcurrent simultaneous runs.
func NewQueue(maxConcurrent int64) *Queue {
	return &Queue{
		lanes:     make(map[types.SessionID]chan *Run),
		semaphore: semaphore.NewWeighted(maxConcurrent),
	}
}

// SetProcessor sets the function invoked for each dequeued Run. Must be
// called before Start.
func (q *Queue) SetProcessor(fn func(context.Context, *Run) error) {
	q.processor = fn
}

// Start initialises the queue's context. Must be called before Enqueue.
func (q *Queue) Start(ctx context.Context) {
	q.ctx, q.cancel = context.WithCancel(ctx)
}

// Stop cancels the queue context, closes all lanes, and waits for in-flight
// processors to finish.
func (q *Queue) Stop() {
	if q.cancel != nil {
		q.cancel()
	}
	q.mu.Lock()
	for _, lane := range q.lanes {
		close(lane)
	}
	q.lanes = make(map[types.SessionID]chan *Run)
	q.mu.Unlock()
	q.wg.Wait()
}

// Enqueue adds a Run to its session's lane, creating the lane and its
// goroutine on first use. Fails when the lane buffer is full.
func (q *Queue) Enqueue(run *Run) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	lane, exists := q.lanes[run.SessionID]
	if !exists {
		lane = make(chan *Run, laneBuffer)
		q.lanes[run.SessionID] = lane
		q.wg.Add(1)
		go q.processLane(lane)
	}

	select {
	case lane <- run:
		return nil
	default:
		return fmt.Errorf("queue full for session %s", run.SessionID)
	}
}

// processLane drains one session lane, acquiring a semaphore slot before
// running the processor synchronously. FIFO within the lane is strict.
func (q *Queue) processLane(lane chan *Run) {
	defer q.wg.Done()
	for {
		select {
		case run, ok := <-lane:
			if !ok {
				return
			}
			if err := q.semaphore.Acquire(q.ctx, 1); err != nil {
				return
			}
			q.process(run)
			q.semaphore.Release(1)
		case <-q.ctx.Done():
			return
		}
	}
}

func (q *Queue) process(run *Run) {
	if q.processor == nil {
		return
	}
	q.active.Add(1)
	defer q.active.Add(-1)

	now := time.Now()
	run.Status = RunStatusRunning
	run.StartedAt = &now
	run.Ctx = q.ctx

	err := q.processor(q.ctx, run)
	ended := time.Now()
	run.EndedAt = &ended
	if err != nil {
		run.Status = RunStatusFailed
		run.Error = err
		slog.Error("run failed",
			"run_id", string(run.ID),
			"session_id", string(run.SessionID),
			"error", err)
		if run.OnComplete != nil {
			run.OnComplete("Sorry, something went wrong processing your message.")
		}
		return
	}
	run.Status = RunStatusComplete
}

// WaitIdle blocks until no runs are actively processing or the timeout
// expires. Returns true if idle.
func (q *Queue) WaitIdle(timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if q.active.Load() == 0 {
			return true
		}
		select {
		case <-deadline:
			return false
		case <-time.After(100 * time.Millisecond):
		}
	}
}
