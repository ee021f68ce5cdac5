package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/transcript-enrichment/internal/core/domain"
	"github.com/kirillkom/transcript-enrichment/internal/infrastructure/memstore"
)

func TestIngestQueuesEnrichJob(t *testing.T) {
	queue := &queueFake{}
	tracker := memstore.NewJobTracker()
	uc := NewIngestTranscriptUseCase(queue, tracker)

	ack, err := uc.Ingest(context.Background(), "acme", domain.TranscriptPayload{ConversationID: "c1", Text: "hello"})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if ack.JobID != "c1" || ack.Status != "QUEUED" || ack.Message != "Ingest started" {
		t.Fatalf("unexpected ack: %+v", ack)
	}

	jobs := queue.enqueued()
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
	job := jobs[0]
	if job.Kind != domain.JobEnrich || job.TenantID != "acme" || job.Text != "hello" || job.ID == "" {
		t.Fatalf("unexpected job: %+v", job)
	}
	if state, ok := tracker.Latest("acme", "c1"); !ok || state.Status != domain.JobStatusQueued {
		t.Fatalf("expected queued job state, got %+v", state)
	}
}

func TestIngestRejectsMissingTenant(t *testing.T) {
	queue := &queueFake{}
	uc := NewIngestTranscriptUseCase(queue, memstore.NewJobTracker())

	_, err := uc.Ingest(context.Background(), "  ", domain.TranscriptPayload{ConversationID: "c1", Text: "hello"})
	if !domain.IsKind(err, domain.ErrMissingTenant) {
		t.Fatalf("expected ErrMissingTenant, got %v", err)
	}
	if len(queue.enqueued()) != 0 {
		t.Fatalf("nothing should be queued")
	}
}

func TestIngestRejectsInvalidTextBeforeQueueing(t *testing.T) {
	for name, text := range map[string]string{
		"whitespace": "   \n\t",
		"too long":   strings.Repeat("x", domain.MaxTextLength+1),
	} {
		t.Run(name, func(t *testing.T) {
			queue := &queueFake{}
			tracker := memstore.NewJobTracker()
			uc := NewIngestTranscriptUseCase(queue, tracker)

			_, err := uc.Ingest(context.Background(), "acme", domain.TranscriptPayload{ConversationID: "c1", Text: text})
			if !domain.IsKind(err, domain.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			if len(queue.enqueued()) != 0 {
				t.Fatalf("invalid payload must not be queued")
			}
			if _, ok := tracker.Latest("acme", "c1"); ok {
				t.Fatalf("invalid payload must not create job state")
			}
		})
	}
}

func TestIngestPropagatesQueueFailure(t *testing.T) {
	queueErr := domain.WrapError(domain.ErrTemporary, "enqueue", errors.New("queue closed"))
	tracker := memstore.NewJobTracker()
	uc := NewIngestTranscriptUseCase(&queueFake{err: queueErr}, tracker)

	_, err := uc.Ingest(context.Background(), "acme", domain.TranscriptPayload{ConversationID: "c1", Text: "hello"})
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
	state, ok := tracker.Latest("acme", "c1")
	if !ok || state.Status != domain.JobStatusFailed {
		t.Fatalf("expected failed job state, got %+v", state)
	}
}
