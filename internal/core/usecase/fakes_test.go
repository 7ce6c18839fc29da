package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kirillkom/medical-intake/internal/core/domain"
)

type catalogStoreFake struct {
	mu        sync.Mutex
	entries   []domain.CatalogEntry
	listErr   error
	insertErr error
	listCalls int
}

func (f *catalogStoreFake) List(context.Context) ([]domain.CatalogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]domain.CatalogEntry, len(f.entries))
	copy(out, f.entries)
	return out, nil
}

func (f *catalogStoreFake) InsertMissing(_ context.Context, labels []string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	inserted := []string{}
	for _, label := range labels {
		exists := false
		for _, e := range f.entries {
			if e.Label == label {
				exists = true
				break
			}
		}
		if exists {
			continue
		}
		f.entries = append(f.entries, domain.CatalogEntry{ID: int64(len(f.entries) + 1), Label: label})
		inserted = append(inserted, label)
	}
	return inserted, nil
}

type appointmentFake struct {
	existing map[int64]bool
	err      error
}

func (f *appointmentFake) Exists(_ context.Context, id int64) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.existing[id], nil
}

type recordStoreFake struct {
	mu        sync.Mutex
	created   []*domain.StructuredRecord
	createErr error
	byID      map[int64]*domain.StructuredRecord
	listed    []domain.StructuredRecord
	lastLimit int
}

func (f *recordStoreFake) Create(_ context.Context, rec *domain.StructuredRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	rec.ID = int64(len(f.created) + 1)
	f.created = append(f.created, rec)
	return nil
}

func (f *recordStoreFake) GetByID(_ context.Context, id int64) (*domain.StructuredRecord, error) {
	rec, ok := f.byID[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get record", errors.New("missing"))
	}
	copyRec := *rec
	return &copyRec, nil
}

func (f *recordStoreFake) ListByUser(_ context.Context, _ int64, limit int) ([]domain.StructuredRecord, error) {
	f.lastLimit = limit
	return f.listed, nil
}

// textFake serves as summarizer, translator and diagnosis generator.
type textFake struct {
	out   string
	err   error
	block bool
	mu    sync.Mutex
	calls int
}

func (f *textFake) call(ctx context.Context) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.err != nil {
		return "", f.err
	}
	return f.out, nil
}

func (f *textFake) Summarize(ctx context.Context, _ string) (string, error) { return f.call(ctx) }
func (f *textFake) Translate(ctx context.Context, _ string) (string, error) { return f.call(ctx) }
func (f *textFake) GenerateDiagnosis(ctx context.Context, _ string) (string, error) {
	return f.call(ctx)
}

func (f *textFake) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type entitiesFake struct {
	entities []domain.Entity
	err      error
}

func (f *entitiesFake) ExtractEntities(context.Context, string) ([]domain.Entity, error) {
	return f.entities, f.err
}

type keywordsFake struct {
	keywords []domain.Keyword
	err      error
}

func (f *keywordsFake) ExtractKeywords(context.Context, string) ([]domain.Keyword, error) {
	return f.keywords, f.err
}

type sentimentFake struct {
	sentiment domain.Sentiment
	err       error
}

func (f *sentimentFake) ScoreSentiment(context.Context, string) (domain.Sentiment, error) {
	return f.sentiment, f.err
}

type embedderFake struct {
	vectors map[string][]float32
	err     error
	block   bool
}

func (f *embedderFake) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if vec, ok := f.vectors[text]; ok {
			out[i] = vec
		} else {
			out[i] = []float32{0, 0}
		}
	}
	return out, nil
}

func (f *embedderFake) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	if vec, ok := f.vectors[text]; ok {
		return vec, nil
	}
	return []float32{0, 0}, nil
}

type observerFake struct {
	mu        sync.Mutex
	degraded  map[string]int
	decisions []domain.DecisionMethod
}

func newObserverFake() *observerFake {
	return &observerFake{degraded: map[string]int{}}
}

func (f *observerFake) ObserveAnnotation(name string, degraded bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if degraded {
		f.degraded[name]++
	}
}

func (f *observerFake) ObserveDecision(method domain.DecisionMethod) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decisions = append(f.decisions, method)
}

type queueFake struct {
	published []domain.IntakeJob
	err       error
}

func (f *queueFake) PublishIntakeJob(_ context.Context, job domain.IntakeJob) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, job)
	return nil
}

func (f *queueFake) SubscribeIntakeJobs(context.Context, func(context.Context, domain.IntakeJob) error) error {
	return nil
}

type processorFake struct {
	requests []domain.IntakeRequest
	err      error
}

func (f *processorFake) Process(_ context.Context, req domain.IntakeRequest) (*domain.StructuredRecord, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.StructuredRecord{ID: 1}, nil
}

func fixedClock() func() time.Time {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return func() time.Time { return ts }
}
