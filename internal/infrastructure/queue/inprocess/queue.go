// Package inprocess runs queued jobs on goroutines inside the API process.
package inprocess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kirillkom/transcript-enrichment/internal/core/domain"
	"github.com/kirillkom/transcript-enrichment/internal/core/ports"
)

var errQueueClosed = errors.New("queue is closed")

type Options struct {
	// Concurrency caps jobs running at once. Zero means unbounded; excess
	// jobs wait for a slot without blocking Enqueue.
	Concurrency int
	Logger      *slog.Logger
	// OnAbandon is told about jobs the handler never finished: jobs still
	// waiting for a slot when Close cancels them, and jobs that panicked.
	OnAbandon func(job domain.Job, err error)
}

// Queue starts each job on its own goroutine under a queue-owned context,
// so jobs outlive the request that enqueued them.
type Queue struct {
	handler   ports.JobHandler
	logger    *slog.Logger
	slots     chan struct{}
	onAbandon func(domain.Job, error)

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func New(handler ports.JobHandler, opts Options) *Queue {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.OnAbandon == nil {
		opts.OnAbandon = func(domain.Job, error) {}
	}
	var slots chan struct{}
	if opts.Concurrency > 0 {
		slots = make(chan struct{}, opts.Concurrency)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		handler:   handler,
		logger:    opts.Logger,
		slots:     slots,
		onAbandon: opts.OnAbandon,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (q *Queue) Enqueue(_ context.Context, job domain.Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return domain.WrapError(domain.ErrTemporary, "inprocess enqueue", errQueueClosed)
	}

	q.wg.Add(1)
	go q.run(job)
	return nil
}

func (q *Queue) run(job domain.Job) {
	defer q.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("job_panic", "job_id", job.ID, "kind", string(job.Kind), "panic", fmt.Sprint(r))
			q.onAbandon(job, fmt.Errorf("job panicked: %v", r))
		}
	}()

	if q.slots != nil {
		select {
		case q.slots <- struct{}{}:
			defer func() { <-q.slots }()
		case <-q.ctx.Done():
		}
	}
	// A slot freed by a cancelled job must not start new work.
	if err := q.ctx.Err(); err != nil {
		q.logger.Warn("job_dropped", "job_id", job.ID, "kind", string(job.Kind), "reason", "queue closed before start")
		q.onAbandon(job, fmt.Errorf("queue closed before job start: %w", err))
		return
	}

	// Errors are already tracked and logged by the handler.
	_ = q.handler(q.ctx, job)
}

// Close stops intake and waits for running jobs until ctx is done, then
// cancels whatever is still in flight.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		<-done
		return fmt.Errorf("drain in-process queue: %w", ctx.Err())
	}
}
