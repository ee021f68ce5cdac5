package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/kirillkom/transcript-enrichment/internal/core/domain"
)

type queueFake struct {
	mu   sync.Mutex
	jobs []domain.Job
	err  error
}

func (f *queueFake) Enqueue(_ context.Context, job domain.Job) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *queueFake) enqueued() []domain.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Job(nil), f.jobs...)
}

type fixedRandom struct {
	value float64
}

// Uniform returns the configured value clamped into [min, max].
func (f fixedRandom) Uniform(min, max float64) float64 {
	switch {
	case f.value < min:
		return min
	case f.value > max:
		return max
	default:
		return f.value
	}
}

type delayRecorder struct {
	mu    sync.Mutex
	calls []time.Duration
	err   error
}

func (d *delayRecorder) Delay(_ context.Context, dur time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, dur)
	return d.err
}

type observerFake struct {
	mu       sync.Mutex
	started  int
	finished map[domain.JobStatus]int
}

func (o *observerFake) StartJob(domain.JobKind) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started++
}

func (o *observerFake) FinishJob(_ domain.JobKind, status domain.JobStatus, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.finished == nil {
		o.finished = make(map[domain.JobStatus]int)
	}
	o.finished[status]++
}

func (o *observerFake) ObserveQueueLag(domain.JobKind, time.Duration) {}
