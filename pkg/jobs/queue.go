package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrQueueClosed is returned by Enqueue outside the Start/Stop window.
var ErrQueueClosed = errors.New("queue is not running")

// Job is one unit of background work.
type Job struct {
	ID       string
	Type     string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Handler processes a job. A returned error is retried unless wrapped with Permanent.
type Handler func(context.Context, Job) error

// DropFunc observes a job the queue gave up on.
type DropFunc func(job Job, err error)

// Enqueuer is the producer side of a queue.
type Enqueuer interface {
	Enqueue(job Job) error
}

// QueueConfig sizes the worker pool. RetryDelay is the first backoff step and doubles per attempt
// up to MaxRetryDelay. JobTimeout bounds a single attempt when positive.
type QueueConfig struct {
	Workers       int
	BufferSize    int
	MaxRetries    int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
	JobTimeout    time.Duration
	OnDrop        DropFunc
	Logger        *zap.Logger
}

// Stats counts job outcomes since start.
type Stats struct {
	Processed int64
	Retried   int64
	Dropped   int64
}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Queue dispatches jobs to a fixed pool of goroutines with at-least-once retries.
// Jobs still buffered or waiting on a backoff timer when Stop is called are lost.
type Queue struct {
	name    string
	handler Handler
	cfg     QueueConfig
	log     *zap.Logger

	buf chan Job

	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	processed, retried, dropped atomic.Int64
}

// NewQueue builds a stopped queue.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.MaxRetryDelay < cfg.RetryDelay {
		cfg.MaxRetryDelay = cfg.RetryDelay * 32
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Queue{
		name:    name,
		handler: handler,
		cfg:     cfg,
		log:     log.With(zap.String("queue", name)),
		buf:     make(chan Job, cfg.BufferSize),
	}
}

// Start launches the workers. Calling it on a running queue does nothing.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ctx != nil {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	q.wg.Add(q.cfg.Workers)
	for i := 0; i < q.cfg.Workers; i++ {
		go q.run()
	}
	q.log.Info("queue started", zap.Int("workers", q.cfg.Workers))
}

// Stop cancels the workers and waits for in-flight attempts to return.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.ctx == nil || q.ctx.Err() != nil {
		q.mu.Unlock()
		return
	}
	q.cancel()
	q.mu.Unlock()
	q.wg.Wait()
	q.log.Info("queue stopped", zap.Int("pending", len(q.buf)), zap.Int64("processed", q.processed.Load()))
}

func (q *Queue) running() context.Context {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.ctx
}

// Enqueue adds a job, blocking while the buffer is full. Missing IDs are generated.
func (q *Queue) Enqueue(job Job) error {
	ctx := q.running()
	if ctx == nil || ctx.Err() != nil {
		return fmt.Errorf("%s: %w", q.name, ErrQueueClosed)
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}
	select {
	case q.buf <- job:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", q.name, ErrQueueClosed)
	}
}

// Stats returns a snapshot of the outcome counters.
func (q *Queue) Stats() Stats {
	return Stats{Processed: q.processed.Load(), Retried: q.retried.Load(), Dropped: q.dropped.Load()}
}

func (q *Queue) run() {
	defer q.wg.Done()
	ctx := q.running()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-q.buf:
			if err := q.attempt(ctx, job); err != nil {
				q.fail(ctx, job, err)
				continue
			}
			q.processed.Add(1)
		}
	}
}

func (q *Queue) attempt(ctx context.Context, job Job) error {
	if q.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.cfg.JobTimeout)
		defer cancel()
	}
	return q.handler(ctx, job)
}

func (q *Queue) backoff(attempt int) time.Duration {
	d := q.cfg.RetryDelay
	for i := 1; i < attempt && d < q.cfg.MaxRetryDelay; i++ {
		d *= 2
	}
	if d > q.cfg.MaxRetryDelay {
		d = q.cfg.MaxRetryDelay
	}
	return d
}

func (q *Queue) fail(ctx context.Context, job Job, err error) {
	log := q.log.With(zap.String("job_id", job.ID), zap.String("type", job.Type), zap.Int("attempt", job.Attempt+1), zap.Error(err))

	job.Attempt++
	if IsPermanent(err) || job.Attempt > q.cfg.MaxRetries {
		q.dropped.Add(1)
		log.Error("job dropped", zap.Bool("permanent", IsPermanent(err)))
		if q.cfg.OnDrop != nil {
			q.cfg.OnDrop(job, err)
		}
		return
	}

	q.retried.Add(1)
	delay := q.backoff(job.Attempt)
	log.Warn("job failed, retrying", zap.Duration("delay", delay))
	time.AfterFunc(delay, func() {
		if ctx.Err() != nil {
			return
		}
		if err := q.Enqueue(job); err != nil {
			log.Error("job requeue failed", zap.NamedError("requeue_error", err))
		}
	})
}
