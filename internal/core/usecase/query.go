package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/transcript-enrichment/internal/core/domain"
	"github.com/kirillkom/transcript-enrichment/internal/core/ports"
)

type QueryUseCase struct {
	store   ports.ResultStore
	tracker ports.JobTracker
}

func NewQueryUseCase(store ports.ResultStore, tracker ports.JobTracker) *QueryUseCase {
	return &QueryUseCase{
		store:   store,
		tracker: tracker,
	}
}

// GetResult never distinguishes "never submitted", "still processing" and
// "owned by another tenant".
func (uc *QueryUseCase) GetResult(_ context.Context, tenantID, conversationID string) (*domain.ResultRecord, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	rec, ok := uc.store.Get(tenantID, conversationID)
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get result", fmt.Errorf("conversation_id=%s", conversationID))
	}
	return &rec, nil
}

func (uc *QueryUseCase) GetJobState(_ context.Context, tenantID, conversationID string) (*domain.JobState, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	state, ok := uc.tracker.Latest(tenantID, conversationID)
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get job state", fmt.Errorf("conversation_id=%s", conversationID))
	}
	return &state, nil
}

func (uc *QueryUseCase) Snapshot(context.Context) domain.StoreSnapshot {
	return uc.store.ListAll()
}
