package memstore

import (
	"sync"
	"time"

	"github.com/kirillkom/transcript-enrichment/internal/core/domain"
)

type jobKey struct {
	tenantID       string
	conversationID string
}

// JobTracker keeps the state of the most recent job per tenant and
// conversation. Transitions from an older job are ignored once a newer job
// for the same key has been queued.
type JobTracker struct {
	mu     sync.Mutex
	states map[jobKey]domain.JobState
	now    func() time.Time
}

func NewJobTracker() *JobTracker {
	return &JobTracker{
		states: make(map[jobKey]domain.JobState),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (t *JobTracker) Queued(job domain.Job) {
	t.mu.Lock()
	defer t.mu.Unlock()

	queuedAt := job.QueuedAt
	if queuedAt.IsZero() {
		queuedAt = t.now()
	}
	t.states[keyOf(job)] = domain.JobState{
		JobID:          job.ID,
		Kind:           job.Kind,
		ConversationID: job.ConversationID,
		Status:         domain.JobStatusQueued,
		QueuedAt:       queuedAt,
		UpdatedAt:      t.now(),
	}
}

func (t *JobTracker) Running(job domain.Job) {
	t.transition(job, domain.JobStatusRunning, nil)
}

func (t *JobTracker) Finished(job domain.Job, status domain.JobStatus, err error) {
	t.transition(job, status, err)
}

func (t *JobTracker) Latest(tenantID, conversationID string) (domain.JobState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.states[jobKey{tenantID: tenantID, conversationID: conversationID}]
	return state, ok
}

func (t *JobTracker) transition(job domain.Job, status domain.JobStatus, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := keyOf(job)
	state, ok := t.states[key]
	if !ok || state.JobID != job.ID {
		return
	}
	state.Status = status
	state.Error = ""
	if err != nil {
		state.Error = err.Error()
	}
	state.UpdatedAt = t.now()
	t.states[key] = state
}

func keyOf(job domain.Job) jobKey {
	return jobKey{tenantID: job.TenantID, conversationID: job.ConversationID}
}
