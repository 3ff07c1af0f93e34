// Package queue schedules classification jobs with bounded concurrency.
package queue

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/kalambet/cvsift/internal/manifest"
)

// DefaultMaxConcurrency is the worker ceiling. Jobs are I/O-bound (LLM
// calls), so slots are about request fan-out, not CPU parallelism.
const DefaultMaxConcurrency = 3

// DefaultMaxAttempts bounds error-edge resets per filename within one
// process lifetime; the next reset becomes a terminal failed label.
const DefaultMaxAttempts = 3

// Job is one unit of classification work. Condition is snapshotted at
// enqueue time; an in-flight job is never retargeted to a newer condition.
type Job struct {
	Filename     string
	AbsolutePath string
	RelativePath string
	Condition    string
}

// ProcessFunc runs one admitted job and returns its terminal label.
// Returning an error takes the error edge (reset to pending, bounded).
type ProcessFunc func(ctx context.Context, job Job) (manifest.Status, error)

// Options tunes a Queue.
type Options struct {
	MaxConcurrency int
	MaxAttempts    int
	// OnTransition observes every label transition the queue records.
	OnTransition func(job Job, label manifest.Status)
}

// Queue admits jobs FIFO up to a fixed concurrency ceiling and drains
// continuously. Admission requires the manifest label to be pending or
// in_progress and the filename not already queued or running in-process;
// that is the primary idempotency guarantee against duplicate processing.
type Queue struct {
	store   manifest.Store
	process ProcessFunc
	opts    Options
	sem     *semaphore.Weighted
	logger  *slog.Logger

	mu       sync.Mutex
	backlog  []Job
	inflight map[string]struct{}
	attempts map[string]int

	wake   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Queue. Zero option values pick the defaults.
func New(store manifest.Store, process ProcessFunc, opts Options) *Queue {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = DefaultMaxConcurrency
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	return &Queue{
		store:    store,
		process:  process,
		opts:     opts,
		sem:      semaphore.NewWeighted(int64(opts.MaxConcurrency)),
		logger:   slog.Default(),
		inflight: make(map[string]struct{}),
		attempts: make(map[string]int),
		wake:     make(chan struct{}, 1),
	}
}

// Start launches the dispatcher. It returns immediately.
func (q *Queue) Start(ctx context.Context) {
	q.ctx, q.cancel = context.WithCancel(ctx)
	q.wg.Add(1)
	go q.dispatch()
}

// Shutdown stops admission and waits for running jobs to settle.
func (q *Queue) Shutdown() {
	if q.cancel != nil {
		q.cancel()
	}
	q.wg.Wait()
}

// Enqueue offers a job for admission and reports whether it was accepted.
// Files with a terminal label and files already in flight are refused.
func (q *Queue) Enqueue(job Job) bool {
	all, err := q.store.ReadAll()
	if err != nil {
		q.logger.Error("reading manifest for admission", "file", job.Filename, "error", err)
		return false
	}
	label, ok := all[job.Filename]
	if !ok || (label != manifest.StatusPending && label != manifest.StatusInProgress) {
		return false
	}

	q.mu.Lock()
	if _, busy := q.inflight[job.Filename]; busy {
		q.mu.Unlock()
		return false
	}
	q.inflight[job.Filename] = struct{}{}
	q.backlog = append(q.backlog, job)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

// InFlight reports how many jobs are queued or running.
func (q *Queue) InFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.inflight)
}

func (q *Queue) dispatch() {
	defer q.wg.Done()
	for {
		job, ok := q.pop()
		if !ok {
			select {
			case <-q.ctx.Done():
				return
			case <-q.wake:
				continue
			}
		}
		if err := q.sem.Acquire(q.ctx, 1); err != nil {
			return
		}
		q.wg.Add(1)
		go func(job Job) {
			defer q.wg.Done()
			defer q.sem.Release(1)
			q.run(job)
		}(job)
	}
}

func (q *Queue) pop() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.backlog) == 0 {
		return Job{}, false
	}
	job := q.backlog[0]
	q.backlog = q.backlog[1:]
	return job, true
}

func (q *Queue) run(job Job) {
	defer func() {
		q.mu.Lock()
		delete(q.inflight, job.Filename)
		q.mu.Unlock()
	}()

	q.transition(job, manifest.StatusInProgress)

	label, err := q.process(q.ctx, job)
	if err != nil {
		q.mu.Lock()
		q.attempts[job.Filename]++
		n := q.attempts[job.Filename]
		q.mu.Unlock()

		if n >= q.opts.MaxAttempts {
			q.logger.Error("job failed permanently", "file", job.Filename, "attempts", n, "error", err)
			q.transition(job, manifest.StatusFailed)
			q.mu.Lock()
			delete(q.attempts, job.Filename)
			q.mu.Unlock()
			return
		}
		// Error edge: reset and rely on the reconciler to re-admit.
		q.logger.Warn("job failed, reset to pending", "file", job.Filename, "attempt", n, "error", err)
		q.transition(job, manifest.StatusPending)
		return
	}

	q.mu.Lock()
	delete(q.attempts, job.Filename)
	q.mu.Unlock()
	q.transition(job, label)
}

func (q *Queue) transition(job Job, label manifest.Status) {
	if err := q.store.Upsert(job.Filename, label); err != nil {
		q.logger.Error("recording label", "file", job.Filename, "label", label, "error", err)
		return
	}
	if q.opts.OnTransition != nil {
		q.opts.OnTransition(job, label)
	}
}
