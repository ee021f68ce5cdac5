package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/transcript-enrichment/internal/core/domain"
	"github.com/kirillkom/transcript-enrichment/internal/core/ports"
)

const DefaultProcessingDelay = 3 * time.Second

type ProcessOptions struct {
	// ProcessingDelay is the simulated queue latency each pipeline waits
	// before touching the store. Zero means no wait.
	ProcessingDelay time.Duration
	Delay           ports.Delay
	Observer        ports.PipelineObserver
	Logger          *slog.Logger
}

type ProcessJobUseCase struct {
	store   ports.ResultStore
	tracker ports.JobTracker
	random  ports.RandomSource

	processingDelay time.Duration
	delay           ports.Delay
	observer        ports.PipelineObserver
	logger          *slog.Logger
}

func NewProcessJobUseCase(
	store ports.ResultStore,
	tracker ports.JobTracker,
	random ports.RandomSource,
	opts ProcessOptions,
) *ProcessJobUseCase {
	if opts.ProcessingDelay < 0 {
		opts.ProcessingDelay = 0
	}
	if opts.Delay == nil {
		opts.Delay = SleepContext
	}
	if opts.Observer == nil {
		opts.Observer = noopObserver{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &ProcessJobUseCase{
		store:           store,
		tracker:         tracker,
		random:          random,
		processingDelay: opts.ProcessingDelay,
		delay:           opts.Delay,
		observer:        opts.Observer,
		logger:          opts.Logger,
	}
}

// Process runs one job to completion. The returned error is for the
// transport to log; no request caller ever sees it.
func (uc *ProcessJobUseCase) Process(ctx context.Context, job domain.Job) error {
	start := time.Now()
	logger := uc.logger.With(
		"job_id", job.ID,
		"kind", string(job.Kind),
		"tenant_id", job.TenantID,
		"conversation_id", job.ConversationID,
	)

	if !job.QueuedAt.IsZero() {
		uc.observer.ObserveQueueLag(job.Kind, start.Sub(job.QueuedAt))
	}
	uc.observer.StartJob(job.Kind)
	uc.tracker.Running(job)
	logger.Debug("job_started")

	status, err := uc.run(ctx, job)

	uc.tracker.Finished(job, status, err)
	uc.observer.FinishJob(job.Kind, status, time.Since(start))

	durationMS := float64(time.Since(start).Microseconds()) / 1000.0
	switch status {
	case domain.JobStatusFailed:
		logger.Error("job_failed", "duration_ms", durationMS, "error", err)
	case domain.JobStatusSkipped:
		logger.Info("job_skipped", "duration_ms", durationMS, "reason", "record not found")
	default:
		logger.Info("job_completed", "duration_ms", durationMS)
	}
	return err
}

func (uc *ProcessJobUseCase) run(ctx context.Context, job domain.Job) (domain.JobStatus, error) {
	switch job.Kind {
	case domain.JobEnrich:
		if err := uc.enrich(ctx, job); err != nil {
			return domain.JobStatusFailed, err
		}
		return domain.JobStatusCompleted, nil
	case domain.JobRescore:
		found, err := uc.rescore(ctx, job)
		if err != nil {
			return domain.JobStatusFailed, err
		}
		if !found {
			return domain.JobStatusSkipped, nil
		}
		return domain.JobStatusCompleted, nil
	default:
		return domain.JobStatusFailed, domain.WrapError(domain.ErrValidation, "process job", fmt.Errorf("unknown job kind %q", job.Kind))
	}
}

func (uc *ProcessJobUseCase) enrich(ctx context.Context, job domain.Job) error {
	if err := uc.wait(ctx); err != nil {
		return err
	}

	payload := domain.TranscriptPayload{ConversationID: job.ConversationID, Text: job.Text}
	variance := uc.random.Uniform(domain.EnrichVarianceMin, domain.EnrichVarianceMax)
	record := domain.EnrichTranscript(job.TenantID, payload, variance)

	uc.store.Put(job.TenantID, job.ConversationID, record)
	return nil
}

// rescore reports false when no record exists by the time the delay elapses.
func (uc *ProcessJobUseCase) rescore(ctx context.Context, job domain.Job) (bool, error) {
	if err := uc.wait(ctx); err != nil {
		return false, err
	}

	found := uc.store.Update(job.TenantID, job.ConversationID, func(rec *domain.ResultRecord) {
		domain.Rescore(rec, uc.random.Uniform(domain.RescoreVarianceMin, domain.RescoreVarianceMax))
	})
	return found, nil
}

func (uc *ProcessJobUseCase) wait(ctx context.Context) error {
	if err := uc.delay(ctx, uc.processingDelay); err != nil {
		return fmt.Errorf("wait processing delay: %w", err)
	}
	return nil
}

// SleepContext waits for d, returning early with ctx.Err() on cancellation.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type noopObserver struct{}

func (noopObserver) StartJob(domain.JobKind)                                   {}
func (noopObserver) FinishJob(domain.JobKind, domain.JobStatus, time.Duration) {}
func (noopObserver) ObserveQueueLag(domain.JobKind, time.Duration)             {}
