package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/transcript-enrichment/internal/core/domain"
	"github.com/kirillkom/transcript-enrichment/internal/core/ports"
)

type RescoreUseCase struct {
	store   ports.ResultStore
	queue   ports.JobQueue
	tracker ports.JobTracker
	now     func() time.Time
}

func NewRescoreUseCase(store ports.ResultStore, queue ports.JobQueue, tracker ports.JobTracker) *RescoreUseCase {
	return &RescoreUseCase{
		store:   store,
		queue:   queue,
		tracker: tracker,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Rescore fails fast when the tenant has no record for the conversation.
// The existence check and the pipeline run are not atomic; the pipeline
// re-checks and no-ops if the record is gone by then.
func (uc *RescoreUseCase) Rescore(ctx context.Context, tenantID, conversationID string) (*domain.QueuedAck, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	if _, ok := uc.store.Get(tenantID, conversationID); !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "rescore", fmt.Errorf("conversation_id=%s", conversationID))
	}

	job := domain.Job{
		ID:             uuid.NewString(),
		Kind:           domain.JobRescore,
		TenantID:       tenantID,
		ConversationID: conversationID,
		QueuedAt:       uc.now(),
	}
	if err := enqueue(ctx, uc.queue, uc.tracker, job); err != nil {
		return nil, err
	}

	return &domain.QueuedAck{
		Message: "Rescore started",
		JobID:   conversationID,
		Status:  domain.StatusQueued,
	}, nil
}
