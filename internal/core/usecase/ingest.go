package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/transcript-enrichment/internal/core/domain"
	"github.com/kirillkom/transcript-enrichment/internal/core/ports"
)

type IngestTranscriptUseCase struct {
	queue   ports.JobQueue
	tracker ports.JobTracker
	now     func() time.Time
}

func NewIngestTranscriptUseCase(queue ports.JobQueue, tracker ports.JobTracker) *IngestTranscriptUseCase {
	return &IngestTranscriptUseCase{
		queue:   queue,
		tracker: tracker,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Ingest validates the payload and schedules enrichment. It never waits for
// the pipeline: the ack only means the job was handed to the queue.
func (uc *IngestTranscriptUseCase) Ingest(
	ctx context.Context,
	tenantID string,
	payload domain.TranscriptPayload,
) (*domain.QueuedAck, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	if err := domain.ValidateTranscript(payload); err != nil {
		return nil, err
	}

	job := domain.Job{
		ID:             uuid.NewString(),
		Kind:           domain.JobEnrich,
		TenantID:       tenantID,
		ConversationID: payload.ConversationID,
		Text:           payload.Text,
		QueuedAt:       uc.now(),
	}
	if err := enqueue(ctx, uc.queue, uc.tracker, job); err != nil {
		return nil, err
	}

	return &domain.QueuedAck{
		Message: "Ingest started",
		JobID:   payload.ConversationID,
		Status:  domain.StatusQueued,
	}, nil
}

func requireTenant(tenantID string) error {
	if strings.TrimSpace(tenantID) == "" {
		return domain.WrapError(domain.ErrMissingTenant, "require tenant", errors.New("tenant header is empty"))
	}
	return nil
}

func enqueue(ctx context.Context, queue ports.JobQueue, tracker ports.JobTracker, job domain.Job) error {
	tracker.Queued(job)
	if err := queue.Enqueue(ctx, job); err != nil {
		tracker.Finished(job, domain.JobStatusFailed, err)
		return fmt.Errorf("enqueue %s job: %w", job.Kind, err)
	}
	return nil
}
