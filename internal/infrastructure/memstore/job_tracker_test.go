package memstore

import (
	"errors"
	"testing"

	"github.com/kirillkom/transcript-enrichment/internal/core/domain"
)

func TestJobTrackerTransitions(t *testing.T) {
	tracker := NewJobTracker()
	job := domain.Job{ID: "j1", Kind: domain.JobEnrich, TenantID: "acme", ConversationID: "c1"}

	tracker.Queued(job)
	state, ok := tracker.Latest("acme", "c1")
	if !ok || state.Status != domain.JobStatusQueued {
		t.Fatalf("expected queued state, got %+v (ok=%v)", state, ok)
	}

	tracker.Running(job)
	tracker.Finished(job, domain.JobStatusFailed, errors.New("boom"))
	state, _ = tracker.Latest("acme", "c1")
	if state.Status != domain.JobStatusFailed || state.Error != "boom" {
		t.Fatalf("expected failed state with error, got %+v", state)
	}

	if _, ok := tracker.Latest("other", "c1"); ok {
		t.Fatalf("job state leaked across tenants")
	}
}

func TestJobTrackerIgnoresSupersededJob(t *testing.T) {
	tracker := NewJobTracker()
	older := domain.Job{ID: "old", Kind: domain.JobEnrich, TenantID: "acme", ConversationID: "c1"}
	newer := domain.Job{ID: "new", Kind: domain.JobRescore, TenantID: "acme", ConversationID: "c1"}

	tracker.Queued(older)
	tracker.Queued(newer)
	tracker.Finished(older, domain.JobStatusCompleted, nil)

	state, _ := tracker.Latest("acme", "c1")
	if state.JobID != "new" || state.Status != domain.JobStatusQueued {
		t.Fatalf("older job overwrote newer state: %+v", state)
	}
}
