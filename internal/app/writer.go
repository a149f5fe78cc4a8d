package app

import (
	"context"
	"sync"
)

// writeJob is one queued remote write. A job with a nil run is a barrier
// used by Flush.
type writeJob struct {
	op     string
	taskID string
	run    func(context.Context) error
	// onError and onSuccess report the outcome of run. They are called
	// without the session lock held.
	onError   func(error)
	onSuccess func()
	done      chan struct{}
}

// writeQueue is an unbounded FIFO drained by one writer goroutine. Pushing
// never blocks so mutations can enqueue while holding the session lock.
type writeQueue struct {
	mu     sync.Mutex
	jobs   []writeJob
	signal chan struct{}
	closed bool
}

func newWriteQueue() *writeQueue {
	return &writeQueue{signal: make(chan struct{}, 1)}
}

// push appends job and reports false once the queue is closed.
func (q *writeQueue) push(job writeJob) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.jobs = append(q.jobs, job)
	q.mu.Unlock()
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// next blocks for the next job. It returns false when the queue is closed and
// drained, or ctx ends.
func (q *writeQueue) next(ctx context.Context) (writeJob, bool) {
	for {
		q.mu.Lock()
		if len(q.jobs) > 0 {
			job := q.jobs[0]
			q.jobs[0] = writeJob{}
			q.jobs = q.jobs[1:]
			q.mu.Unlock()
			return job, true
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return writeJob{}, false
		}
		select {
		case <-q.signal:
		case <-ctx.Done():
			return writeJob{}, false
		}
	}
}

// close stops accepting jobs. Queued jobs still drain.
func (q *writeQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// runWriter drains the queue until it is closed.
func (s *Session) runWriter(ctx context.Context) error {
	for {
		job, ok := s.queue.next(ctx)
		if !ok {
			return nil
		}
		s.runJob(ctx, job)
	}
}

func (s *Session) runJob(ctx context.Context, job writeJob) {
	if job.done != nil {
		defer close(job.done)
	}
	if job.run == nil {
		return
	}
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	err := job.run(callCtx)
	cancel()
	if err == nil {
		s.logger.Debug("remote write ok", "op", job.op, "task_id", job.taskID)
		if job.onSuccess != nil {
			job.onSuccess()
		}
		return
	}
	if job.onError != nil {
		job.onError(err)
	}
}

// enqueue queues a remote write. Callers may hold s.mu.
func (s *Session) enqueue(job writeJob) {
	if !s.queue.push(job) {
		s.logger.Warn("remote write dropped after close", "op", job.op, "task_id", job.taskID)
	}
}

// Flush waits until every remote write queued before the call has run.
func (s *Session) Flush(ctx context.Context) error {
	done := make(chan struct{})
	if !s.queue.push(writeJob{op: "flush", done: done}) {
		return ErrClosed
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
