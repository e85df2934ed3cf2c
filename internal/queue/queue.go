// Package queue is the bounded in-process priority queue feeding the
// transcoding workers. Higher-plan tasks run first; within a priority
// tier, submission order is preserved.
package queue

import (
	"container/heap"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/wapuda/virex/internal/config"
	"github.com/wapuda/virex/internal/domain"
	"github.com/wapuda/virex/internal/metrics"
)

type Outcome string

const (
	OutcomeDone      Outcome = "done"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

// RetryableError marks a failure worth another attempt (ffmpeg exited
// non-zero without producing output). Anything else fails immediately.
type RetryableError struct{ Err error }

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

func Retryable(err error) bool {
	var r *RetryableError
	return errors.As(err, &r)
}

const (
	statePending = iota
	stateRunning
)

// Task is one unit of work. Run does the transcoding; OnFinish is invoked
// exactly once with the final outcome, regardless of retries.
type Task struct {
	ID        string
	UserID    int64
	ChatID    int64
	MessageID int
	Priority  int
	Submitted time.Time

	Run      func(ctx context.Context) error
	OnFinish func(outcome Outcome, err error)

	index     int
	state     int
	cancelled bool
	cancelRun context.CancelFunc
}

type Queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending taskHeap
	byUser  map[int64]*Task
	closed  bool
	wg      sync.WaitGroup

	capacity       int
	attemptTimeout time.Duration
	maxAttempts    int
	backoff        time.Duration

	now     func() time.Time
	met     *metrics.Metrics
	log     zerolog.Logger
	baseCtx context.Context
	stop    context.CancelFunc
}

func New(capacity, workers int, attemptTimeout time.Duration, met *metrics.Metrics, log zerolog.Logger) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		byUser:         make(map[int64]*Task),
		capacity:       capacity,
		attemptTimeout: attemptTimeout,
		maxAttempts:    config.MaxRetries,
		backoff:        config.RetryBackoff,
		now:            time.Now,
		met:            met,
		log:            log,
		baseCtx:        ctx,
		stop:           cancel,
	}
	q.cond = sync.NewCond(&q.mu)
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	return q
}

// Len is the number of tasks waiting (running tasks excluded).
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Submit enqueues the task. It fails synchronously when the queue is at
// capacity or the user already has a task in flight.
func (q *Queue) Submit(t *Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return errors.New("queue closed")
	}
	if _, busy := q.byUser[t.UserID]; busy {
		return domain.ErrAlreadyQueued
	}
	if len(q.pending) >= q.capacity {
		return domain.ErrQueueFull
	}
	if t.ID == "" {
		t.ID = newULID()
	}
	t.Submitted = q.now()
	t.state = statePending
	heap.Push(&q.pending, t)
	q.byUser[t.UserID] = t
	if q.met != nil {
		q.met.QueueDepth.Set(float64(len(q.pending)))
	}
	q.cond.Signal()
	return nil
}

// Position returns the 1-based place of the user's queued task, or 0 if
// the user has nothing waiting.
func (q *Queue) Position(userID int64) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.byUser[userID]
	if !ok || t.state != statePending {
		return 0
	}
	pos := 1
	for _, other := range q.pending {
		if other != t && before(other, t) {
			pos++
		}
	}
	return pos
}

// Busy reports whether the user has a task queued or running.
func (q *Queue) Busy(userID int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.byUser[userID]
	return ok
}

// Cancel aborts the user's task. A queued task is dropped from the heap;
// a running one has its context cancelled, which kills the ffmpeg process.
func (q *Queue) Cancel(userID int64) bool {
	q.mu.Lock()
	t, ok := q.byUser[userID]
	if !ok {
		q.mu.Unlock()
		return false
	}
	if t.state == statePending {
		heap.Remove(&q.pending, t.index)
		delete(q.byUser, userID)
		if q.met != nil {
			q.met.QueueDepth.Set(float64(len(q.pending)))
		}
		q.mu.Unlock()
		q.finish(t, OutcomeCancelled, nil)
		return true
	}
	t.cancelled = true
	if t.cancelRun != nil {
		t.cancelRun()
	}
	q.mu.Unlock()
	return true
}

// Close stops accepting work and waits for the workers to drain.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
	q.stop()
	q.wg.Wait()
}

func (q *Queue) worker(n int) {
	defer q.wg.Done()
	log := q.log.With().Int("worker", n).Logger()
	for {
		q.mu.Lock()
		for len(q.pending) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.pending) == 0 && q.closed {
			q.mu.Unlock()
			return
		}
		t := heap.Pop(&q.pending).(*Task)
		t.state = stateRunning
		if q.met != nil {
			q.met.QueueDepth.Set(float64(len(q.pending)))
			q.met.RunningTasks.Inc()
		}
		q.mu.Unlock()

		outcome, err := q.runAttempts(t, log)

		q.mu.Lock()
		delete(q.byUser, t.UserID)
		if q.met != nil {
			q.met.RunningTasks.Dec()
		}
		q.mu.Unlock()
		q.finish(t, outcome, err)
	}
}

// runAttempts executes the task with retries. Only retryable failures get
// another attempt, with exponential backoff between them.
func (q *Queue) runAttempts(t *Task, log zerolog.Logger) (Outcome, error) {
	var err error
	for attempt := 1; attempt <= q.maxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(q.baseCtx, q.attemptTimeout)
		q.mu.Lock()
		if t.cancelled {
			q.mu.Unlock()
			cancel()
			return OutcomeCancelled, nil
		}
		t.cancelRun = cancel
		q.mu.Unlock()

		start := q.now()
		err = t.Run(ctx)
		cancel()
		if q.met != nil {
			q.met.TaskDuration.Observe(q.now().Sub(start).Seconds())
		}

		q.mu.Lock()
		cancelled := t.cancelled
		t.cancelRun = nil
		q.mu.Unlock()
		if cancelled {
			return OutcomeCancelled, nil
		}
		if err == nil {
			return OutcomeDone, nil
		}
		if !Retryable(err) || attempt == q.maxAttempts {
			return OutcomeFailed, err
		}

		delay := q.backoff * (1 << (attempt - 1))
		log.Warn().Err(err).Str("task_id", t.ID).Int("attempt", attempt).
			Dur("backoff", delay).Msg("attempt failed, retrying")
		select {
		case <-q.baseCtx.Done():
			return OutcomeFailed, err
		case <-time.After(delay):
		}
	}
	return OutcomeFailed, err
}

// finish reports the outcome exactly once.
func (q *Queue) finish(t *Task, outcome Outcome, err error) {
	if q.met != nil {
		q.met.TasksTotal.WithLabelValues(string(outcome)).Inc()
	}
	if t.OnFinish != nil {
		t.OnFinish(outcome, err)
	}
}

// taskHeap orders by priority descending, then submission time ascending.
type taskHeap []*Task

func before(a, b *Task) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.Submitted.Before(b.Submitted)
}

func (h taskHeap) Len() int           { return len(h) }
func (h taskHeap) Less(i, j int) bool { return before(h[i], h[j]) }
func (h taskHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *taskHeap) Push(x any)        { t := x.(*Task); t.index = len(*h); *h = append(*h, t) }
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

func newULID() string { return ulid.Make().String() }
