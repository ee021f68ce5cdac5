package usecase

import (
	"context"
	"testing"

	"github.com/kirillkom/transcript-enrichment/internal/core/domain"
	"github.com/kirillkom/transcript-enrichment/internal/infrastructure/memstore"
)

func TestRescoreUnknownConversationSchedulesNothing(t *testing.T) {
	store := memstore.NewTenantStore()
	queue := &queueFake{}
	uc := NewRescoreUseCase(store, queue, memstore.NewJobTracker())

	_, err := uc.Rescore(context.Background(), "acme", "missing")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(queue.enqueued()) != 0 {
		t.Fatalf("rescore of missing record must not queue work")
	}
}

func TestRescoreChecksOwningTenant(t *testing.T) {
	store := memstore.NewTenantStore()
	store.Put("acme", "c1", domain.ResultRecord{ConversationID: "c1", TenantID: "acme"})
	queue := &queueFake{}
	uc := NewRescoreUseCase(store, queue, memstore.NewJobTracker())

	if _, err := uc.Rescore(context.Background(), "other", "c1"); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign tenant, got %v", err)
	}

	ack, err := uc.Rescore(context.Background(), "acme", "c1")
	if err != nil {
		t.Fatalf("Rescore() error = %v", err)
	}
	if ack.JobID != "c1" || ack.Status != domain.StatusQueued {
		t.Fatalf("unexpected ack: %+v", ack)
	}
	jobs := queue.enqueued()
	if len(jobs) != 1 || jobs[0].Kind != domain.JobRescore {
		t.Fatalf("expected one rescore job, got %+v", jobs)
	}
}
