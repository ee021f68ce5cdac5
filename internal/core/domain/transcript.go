package domain

import "time"

const (
	StatusCompleted = "COMPLETED"
	StatusQueued    = "QUEUED"
)

// TranscriptPayload is the ingestion input for a single conversation.
type TranscriptPayload struct {
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
}

// ResultRecord is the enriched result stored per tenant and conversation.
type ResultRecord struct {
	ConversationID string   `json:"conversation_id"`
	SentimentScore float64  `json:"sentiment_score"`
	Summary        string   `json:"summary"`
	Tags           []string `json:"tags"`
	Status         string   `json:"status"`
	TenantID       string   `json:"tenant_id"`
}

// Clone returns a copy that shares no mutable state with r.
func (r ResultRecord) Clone() ResultRecord {
	out := r
	if r.Tags != nil {
		out.Tags = append([]string(nil), r.Tags...)
	}
	return out
}

func (r ResultRecord) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// QueuedAck is returned to the caller before any pipeline work runs.
type QueuedAck struct {
	Message string `json:"message"`
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
}

// StoreSnapshot is the diagnostic dump of every tenant partition.
type StoreSnapshot struct {
	Database     map[string]map[string]ResultRecord `json:"database"`
	TenantCount  int                                `json:"tenant_count"`
	TotalRecords int                                `json:"total_records"`
}

type JobKind string

const (
	JobEnrich  JobKind = "enrich"
	JobRescore JobKind = "rescore"
)

// Job is a unit of deferred pipeline work.
type Job struct {
	ID             string    `json:"id"`
	Kind           JobKind   `json:"kind"`
	TenantID       string    `json:"tenant_id"`
	ConversationID string    `json:"conversation_id"`
	Text           string    `json:"text,omitempty"`
	QueuedAt       time.Time `json:"queued_at"`
}

type JobStatus string

const (
	JobStatusQueued    JobStatus = "QUEUED"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusSkipped   JobStatus = "SKIPPED"
	JobStatusFailed    JobStatus = "FAILED"
)

// JobState is the latest observed state of the most recent job for a conversation.
type JobState struct {
	JobID          string    `json:"job_id"`
	Kind           JobKind   `json:"kind"`
	ConversationID string    `json:"conversation_id"`
	Status         JobStatus `json:"status"`
	Error          string    `json:"error,omitempty"`
	QueuedAt       time.Time `json:"queued_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
