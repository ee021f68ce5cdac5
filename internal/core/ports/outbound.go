package ports

import (
	"context"
	"time"

	"github.com/kirillkom/transcript-enrichment/internal/core/domain"
)

// ResultStore is the tenant-partitioned result storage.
type ResultStore interface {
	Get(tenantID, conversationID string) (domain.ResultRecord, bool)
	Put(tenantID, conversationID string, record domain.ResultRecord)
	// Update applies fn to the stored record under the partition lock.
	// It reports false and writes nothing when the record does not exist.
	Update(tenantID, conversationID string, fn func(*domain.ResultRecord)) bool
	ListAll() domain.StoreSnapshot
}

// JobHandler consumes a job taken off the queue.
type JobHandler func(ctx context.Context, job domain.Job) error

// JobQueue defers pipeline work until after the request returns.
type JobQueue interface {
	Enqueue(ctx context.Context, job domain.Job) error
}

// JobTracker records job state transitions per tenant and conversation.
type JobTracker interface {
	Queued(job domain.Job)
	Running(job domain.Job)
	Finished(job domain.Job, status domain.JobStatus, err error)
	Latest(tenantID, conversationID string) (domain.JobState, bool)
}

// RandomSource draws uniformly distributed values in [min, max].
type RandomSource interface {
	Uniform(min, max float64) float64
}

// Delay suspends for d or until ctx is done.
type Delay func(ctx context.Context, d time.Duration) error

// PipelineObserver receives pipeline lifecycle events for metrics.
type PipelineObserver interface {
	StartJob(kind domain.JobKind)
	FinishJob(kind domain.JobKind, status domain.JobStatus, duration time.Duration)
	ObserveQueueLag(kind domain.JobKind, lag time.Duration)
}
