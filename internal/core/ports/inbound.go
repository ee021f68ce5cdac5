package ports

import (
	"context"

	"github.com/kirillkom/transcript-enrichment/internal/core/domain"
)

// TranscriptIngestor is the inbound contract for transcript ingestion.
type TranscriptIngestor interface {
	Ingest(ctx context.Context, tenantID string, payload domain.TranscriptPayload) (*domain.QueuedAck, error)
}

// ResultReader is the tenant-scoped read model for enriched results.
type ResultReader interface {
	GetResult(ctx context.Context, tenantID, conversationID string) (*domain.ResultRecord, error)
}

// Rescorer schedules re-processing of an existing result.
type Rescorer interface {
	Rescore(ctx context.Context, tenantID, conversationID string) (*domain.QueuedAck, error)
}

// JobStateReader exposes the latest job state for a conversation.
type JobStateReader interface {
	GetJobState(ctx context.Context, tenantID, conversationID string) (*domain.JobState, error)
}

// StoreInspector dumps the whole store. It bypasses tenant isolation.
type StoreInspector interface {
	Snapshot(ctx context.Context) domain.StoreSnapshot
}

// JobProcessor runs queued pipeline work.
type JobProcessor interface {
	Process(ctx context.Context, job domain.Job) error
}
