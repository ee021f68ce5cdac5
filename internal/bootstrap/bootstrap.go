package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	httpadapter "github.com/kirillkom/transcript-enrichment/internal/adapters/http"
	"github.com/kirillkom/transcript-enrichment/internal/adapters/http/apispec"
	"github.com/kirillkom/transcript-enrichment/internal/config"
	"github.com/kirillkom/transcript-enrichment/internal/core/domain"
	"github.com/kirillkom/transcript-enrichment/internal/core/ports"
	"github.com/kirillkom/transcript-enrichment/internal/core/usecase"
	"github.com/kirillkom/transcript-enrichment/internal/infrastructure/memstore"
	"github.com/kirillkom/transcript-enrichment/internal/infrastructure/queue/inprocess"
	natsqueue "github.com/kirillkom/transcript-enrichment/internal/infrastructure/queue/nats"
	"github.com/kirillkom/transcript-enrichment/internal/infrastructure/random"
	"github.com/kirillkom/transcript-enrichment/internal/infrastructure/resilience"
	"github.com/kirillkom/transcript-enrichment/internal/observability/metrics"
)

type App struct {
	Config config.Config

	Store   *memstore.TenantStore
	Tracker *memstore.JobTracker
	Queue   ports.JobQueue

	IngestUC  *usecase.IngestTranscriptUseCase
	RescoreUC *usecase.RescoreUseCase
	QueryUC   *usecase.QueryUseCase
	ProcessUC *usecase.ProcessJobUseCase

	HTTPMetrics     *metrics.HTTPServerMetrics
	PipelineMetrics *metrics.PipelineMetrics

	closeFn func(ctx context.Context) error
}

// Options override infrastructure pieces, mostly for tests.
type Options struct {
	Logger *slog.Logger
	Random ports.RandomSource
	Delay  ports.Delay
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err := apispec.Load(ctx); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store := memstore.NewTenantStore()
	tracker := memstore.NewJobTracker()

	httpMetrics := metrics.NewHTTPServerMetrics(cfg.ServiceName)
	pipelineMetrics := metrics.NewPipelineMetrics(cfg.ServiceName)
	pipelineMetrics.WatchStore(store.Counts)

	rnd := opts.Random
	if rnd == nil {
		rnd = newRandomSource(cfg.RandomSeed)
	}

	processUC := usecase.NewProcessJobUseCase(store, tracker, rnd, usecase.ProcessOptions{
		ProcessingDelay: cfg.PipelineDelay(),
		Delay:           opts.Delay,
		Observer:        pipelineMetrics,
		Logger:          logger,
	})
	handler := withTimeout(processUC, cfg.PipelineTimeout())

	app := &App{
		Config:          cfg,
		Store:           store,
		Tracker:         tracker,
		ProcessUC:       processUC,
		HTTPMetrics:     httpMetrics,
		PipelineMetrics: pipelineMetrics,
	}

	// Jobs always run on the in-process pool; NATS only carries them.
	pool := inprocess.New(handler, inprocess.Options{
		Concurrency: cfg.WorkerConcurrency,
		Logger:      logger,
		OnAbandon:   markFailed(tracker),
	})

	switch cfg.QueueBackend {
	case config.QueueBackendNATS:
		if err := app.wireNATS(ctx, cfg, pool, logger); err != nil {
			_ = pool.Close(ctx)
			return nil, err
		}
	default:
		app.Queue = pool
		app.closeFn = pool.Close
	}

	app.IngestUC = usecase.NewIngestTranscriptUseCase(app.Queue, tracker)
	app.RescoreUC = usecase.NewRescoreUseCase(store, app.Queue, tracker)
	app.QueryUC = usecase.NewQueryUseCase(store, tracker)

	return app, nil
}

func (a *App) wireNATS(ctx context.Context, cfg config.Config, pool *inprocess.Queue, logger *slog.Logger) error {
	executor := resilience.NewExecutor(resilienceConfig(cfg))
	queue, err := natsqueue.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, natsqueue.Options{
		ResilienceExecutor: executor,
		Logger:             logger,
	})
	if err != nil {
		return fmt.Errorf("init message queue: %w", err)
	}

	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan error, 1)
	go func() {
		done <- queue.Subscribe(subCtx, dispatchTo(pool, a.Tracker))
	}()

	a.Queue = queue
	a.closeFn = func(closeCtx context.Context) error {
		// Stop delivery first so every delivered job reaches the pool
		// before the pool stops accepting work.
		cancel()
		var subErr error
		select {
		case subErr = <-done:
		case <-closeCtx.Done():
			subErr = fmt.Errorf("drain nats subscription: %w", closeCtx.Err())
		}
		poolErr := pool.Close(closeCtx)
		queue.Close()
		return errors.Join(subErr, poolErr)
	}
	return nil
}

// dispatchTo hands delivered jobs to the pool, recording jobs the pool
// refuses as failed so they do not sit in QUEUED forever.
func dispatchTo(pool ports.JobQueue, tracker ports.JobTracker) ports.JobHandler {
	return func(ctx context.Context, job domain.Job) error {
		if err := pool.Enqueue(ctx, job); err != nil {
			tracker.Finished(job, domain.JobStatusFailed, err)
			return err
		}
		return nil
	}
}

func markFailed(tracker ports.JobTracker) func(domain.Job, error) {
	return func(job domain.Job, err error) {
		tracker.Finished(job, domain.JobStatusFailed, err)
	}
}

// Handler builds the HTTP surface over the app's use cases.
func (a *App) Handler() http.Handler {
	router := httpadapter.NewRouter(a.Config, httpadapter.Services{
		Ingestor:  a.IngestUC,
		Results:   a.QueryUC,
		Rescorer:  a.RescoreUC,
		Jobs:      a.QueryUC,
		Inspector: a.QueryUC,
	})
	router.WithMetrics(a.HTTPMetrics, metrics.Handler(a.HTTPMetrics.Registry(), a.PipelineMetrics.Registry()))
	return router.Handler()
}

// Close stops intake and waits for queued jobs until ctx is done.
func (a *App) Close(ctx context.Context) error {
	if a.closeFn == nil {
		return nil
	}
	return a.closeFn(ctx)
}

// withTimeout bounds every job so a stuck pipeline cannot hold a worker slot
// past the configured limit.
func withTimeout(processor ports.JobProcessor, timeout time.Duration) ports.JobHandler {
	if timeout <= 0 {
		return processor.Process
	}
	return func(ctx context.Context, job domain.Job) error {
		jobCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return processor.Process(jobCtx, job)
	}
}

func newRandomSource(seed int) ports.RandomSource {
	if seed == 0 {
		return random.New()
	}
	return random.NewSeeded(uint64(seed))
}

func resilienceConfig(cfg config.Config) resilience.Config {
	return resilience.Config{
		RetryMaxAttempts:    cfg.RetryMaxAttempts,
		RetryInitialBackoff: time.Duration(cfg.RetryInitialBackoffMS) * time.Millisecond,
		RetryMaxBackoff:     time.Duration(cfg.RetryMaxBackoffMS) * time.Millisecond,

		BreakerEnabled:      cfg.BreakerEnabled,
		BreakerMinRequests:  uint32(max(cfg.BreakerMinRequests, 0)),
		BreakerFailureRatio: cfg.BreakerFailureRatio,
		BreakerOpenTimeout:  time.Duration(cfg.BreakerOpenTimeoutSeconds) * time.Second,
	}
}
