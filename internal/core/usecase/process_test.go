package usecase

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/kirillkom/transcript-enrichment/internal/core/domain"
	"github.com/kirillkom/transcript-enrichment/internal/infrastructure/memstore"
)

type processFixture struct {
	store    *memstore.TenantStore
	tracker  *memstore.JobTracker
	delay    *delayRecorder
	observer *observerFake
	uc       *ProcessJobUseCase
}

func newProcessFixture(variance float64) *processFixture {
	f := &processFixture{
		store:    memstore.NewTenantStore(),
		tracker:  memstore.NewJobTracker(),
		delay:    &delayRecorder{},
		observer: &observerFake{},
	}
	f.uc = NewProcessJobUseCase(f.store, f.tracker, fixedRandom{value: variance}, ProcessOptions{
		ProcessingDelay: DefaultProcessingDelay,
		Delay:           f.delay.Delay,
		Observer:        f.observer,
	})
	return f
}

func (f *processFixture) run(t *testing.T, job domain.Job) error {
	t.Helper()
	f.tracker.Queued(job)
	return f.uc.Process(context.Background(), job)
}

func enrichJob(id, tenantID, conversationID, text string) domain.Job {
	return domain.Job{ID: id, Kind: domain.JobEnrich, TenantID: tenantID, ConversationID: conversationID, Text: text, QueuedAt: time.Now()}
}

func rescoreJob(id, tenantID, conversationID string) domain.Job {
	return domain.Job{ID: id, Kind: domain.JobRescore, TenantID: tenantID, ConversationID: conversationID, QueuedAt: time.Now()}
}

func TestProcessEnrichWritesFinanceRecord(t *testing.T) {
	f := newProcessFixture(0.05)

	if err := f.run(t, enrichJob("j1", "acme", "c1", "I need help with my money")); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	rec, ok := f.store.Get("acme", "c1")
	if !ok {
		t.Fatalf("expected record to be written")
	}
	if !reflect.DeepEqual(rec.Tags, []string{"finance", "risk"}) {
		t.Fatalf("unexpected tags: %v", rec.Tags)
	}
	if rec.SentimentScore < 0.7 || rec.SentimentScore > 0.9 {
		t.Fatalf("score out of range: %v", rec.SentimentScore)
	}
	if _, ok := f.store.Get("other", "c1"); ok {
		t.Fatalf("record visible to another tenant")
	}
	if len(f.delay.calls) != 1 || f.delay.calls[0] != DefaultProcessingDelay {
		t.Fatalf("expected one processing delay, got %v", f.delay.calls)
	}
	if state, _ := f.tracker.Latest("acme", "c1"); state.Status != domain.JobStatusCompleted {
		t.Fatalf("expected completed job state, got %+v", state)
	}
	if f.observer.started != 1 || f.observer.finished[domain.JobStatusCompleted] != 1 {
		t.Fatalf("unexpected observer counts: %+v", f.observer)
	}
}

func TestProcessEnrichOverwritesPreviousRecord(t *testing.T) {
	f := newProcessFixture(0)
	_ = f.run(t, enrichJob("j1", "acme", "c1", "money"))
	_ = f.run(t, enrichJob("j2", "acme", "c1", "plain"))

	rec, _ := f.store.Get("acme", "c1")
	if !reflect.DeepEqual(rec.Tags, []string{"general"}) {
		t.Fatalf("expected second enrichment to overwrite, got %v", rec.Tags)
	}
}

func TestProcessRescoreAddsReviewTagOnce(t *testing.T) {
	f := newProcessFixture(-0.5)
	_ = f.run(t, enrichJob("j1", "acme", "c1", "hello"))

	for i, id := range []string{"r1", "r2", "r3"} {
		if err := f.run(t, rescoreJob(id, "acme", "c1")); err != nil {
			t.Fatalf("rescore %d error = %v", i, err)
		}
	}

	rec, _ := f.store.Get("acme", "c1")
	if rec.SentimentScore != 0 {
		t.Fatalf("expected score clamped to 0, got %v", rec.SentimentScore)
	}
	if !reflect.DeepEqual(rec.Tags, []string{"general", domain.TagReviewRequired}) {
		t.Fatalf("expected review tag exactly once, got %v", rec.Tags)
	}
	if rec.Summary != "Processed text length 5." || rec.TenantID != "acme" {
		t.Fatalf("rescore changed identity fields: %+v", rec)
	}
}

func TestProcessRescoreBeforeEnrichIsSkipped(t *testing.T) {
	f := newProcessFixture(0)

	if err := f.run(t, rescoreJob("r1", "acme", "c1")); err != nil {
		t.Fatalf("skipped rescore must not error, got %v", err)
	}
	if _, ok := f.store.Get("acme", "c1"); ok {
		t.Fatalf("skipped rescore must not create a record")
	}
	if state, _ := f.tracker.Latest("acme", "c1"); state.Status != domain.JobStatusSkipped {
		t.Fatalf("expected skipped job state, got %+v", state)
	}
}

func TestProcessDelayFailureMarksJobFailed(t *testing.T) {
	f := newProcessFixture(0)
	f.delay.err = context.Canceled

	err := f.run(t, enrichJob("j1", "acme", "c1", "hello"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, ok := f.store.Get("acme", "c1"); ok {
		t.Fatalf("failed job must not write a record")
	}
	state, _ := f.tracker.Latest("acme", "c1")
	if state.Status != domain.JobStatusFailed || state.Error == "" {
		t.Fatalf("expected failed job state with error, got %+v", state)
	}
}

func TestProcessUnknownKindFails(t *testing.T) {
	f := newProcessFixture(0)
	err := f.run(t, domain.Job{ID: "x", Kind: "bogus", TenantID: "acme", ConversationID: "c1"})
	if !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestSleepContextReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := SleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if err := SleepContext(context.Background(), 0); err != nil {
		t.Fatalf("zero delay should return nil, got %v", err)
	}
}
