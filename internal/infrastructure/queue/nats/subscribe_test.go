package nats

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	natstest "github.com/nats-io/nats-server/v2/test"

	"github.com/kirillkom/transcript-enrichment/internal/core/domain"
	"github.com/kirillkom/transcript-enrichment/internal/infrastructure/queue/inprocess"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	srv := natstest.RunRandClientPortServer()
	t.Cleanup(srv.Shutdown)

	q, err := NewWithOptions(srv.ClientURL(), "test.jobs", Options{DrainTimeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("NewWithOptions() error = %v", err)
	}
	t.Cleanup(q.Close)
	return q
}

func startSubscriber(t *testing.T, q *Queue, dispatch func(context.Context, domain.Job) error) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- q.Subscribe(ctx, dispatch)
	}()
	// Subscribe flushes its interest before blocking; give it a moment so
	// the first publish is not sent ahead of the subscription.
	deadline := time.Now().Add(2 * time.Second)
	for q.conn.NumSubscriptions() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscription never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := q.conn.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	return cancel, done
}

func testJob(i int) domain.Job {
	return domain.Job{
		ID:             fmt.Sprintf("j%d", i),
		Kind:           domain.JobEnrich,
		TenantID:       "acme",
		ConversationID: fmt.Sprintf("c%d", i),
		Text:           "hello",
		QueuedAt:       time.Now().UTC(),
	}
}

func TestEnqueueDeliversJobThroughSubject(t *testing.T) {
	q := newTestQueue(t)
	got := make(chan domain.Job, 1)
	cancel, done := startSubscriber(t, q, func(_ context.Context, job domain.Job) error {
		got <- job
		return nil
	})

	want := testJob(1)
	if err := q.Enqueue(context.Background(), want); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	select {
	case job := <-got:
		if job.ID != want.ID || job.TenantID != want.TenantID || job.Text != want.Text {
			t.Fatalf("unexpected job %+v", job)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("job was not delivered")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
}

func TestSubscribeRunsJobsConcurrentlyThroughPool(t *testing.T) {
	q := newTestQueue(t)

	var running, peak atomic.Int32
	const jobs = 5
	var wg sync.WaitGroup
	wg.Add(jobs)
	pool := inprocess.New(func(context.Context, domain.Job) error {
		defer wg.Done()
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(200 * time.Millisecond)
		running.Add(-1)
		return nil
	}, inprocess.Options{Concurrency: jobs})

	cancel, done := startSubscriber(t, q, pool.Enqueue)

	start := time.Now()
	for i := 0; i < jobs; i++ {
		if err := q.Enqueue(context.Background(), testJob(i)); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}
	wg.Wait()
	elapsed := time.Since(start)

	if peak.Load() < 2 {
		t.Fatalf("jobs ran one at a time (peak=%d)", peak.Load())
	}
	if elapsed > 800*time.Millisecond {
		t.Fatalf("%d jobs of 200ms took %s", jobs, elapsed)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if err := pool.Close(context.Background()); err != nil {
		t.Fatalf("pool Close() error = %v", err)
	}
}

func TestSubscribeDispatchesDeliveredJobsAfterCancel(t *testing.T) {
	q := newTestQueue(t)

	var mu sync.Mutex
	var dispatched []string
	cancel, done := startSubscriber(t, q, func(_ context.Context, job domain.Job) error {
		mu.Lock()
		dispatched = append(dispatched, job.ID)
		mu.Unlock()
		return nil
	})

	for i := 0; i < 3; i++ {
		if err := q.Enqueue(context.Background(), testJob(i)); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}
	if err := q.conn.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(dispatched) != 3 {
		t.Fatalf("dispatched %d of 3 jobs: %v", len(dispatched), dispatched)
	}
}
