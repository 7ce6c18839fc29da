package ports

import (
	"context"

	"github.com/kirillkom/medical-intake/internal/core/domain"
)

// CatalogStore persists and reads diagnosis catalog entries.
type CatalogStore interface {
	List(ctx context.Context) ([]domain.CatalogEntry, error)
	InsertMissing(ctx context.Context, labels []string) ([]string, error)
}

// AppointmentReader checks appointment references.
type AppointmentReader interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// RecordStore persists clinical records atomically.
type RecordStore interface {
	Create(ctx context.Context, rec *domain.StructuredRecord) error
	GetByID(ctx context.Context, id int64) (*domain.StructuredRecord, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]domain.StructuredRecord, error)
}

// JobQueue publishes/consumes asynchronous intake jobs.
type JobQueue interface {
	PublishIntakeJob(ctx context.Context, job domain.IntakeJob) error
	SubscribeIntakeJobs(ctx context.Context, handler func(context.Context, domain.IntakeJob) error) error
}

type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

type EntityExtractor interface {
	ExtractEntities(ctx context.Context, text string) ([]domain.Entity, error)
}

type SentimentScorer interface {
	ScoreSentiment(ctx context.Context, text string) (domain.Sentiment, error)
}

type KeywordExtractor interface {
	ExtractKeywords(ctx context.Context, text string) ([]domain.Keyword, error)
}

// DiagnosisGenerator proposes a free-text diagnosis phrase for patient text.
type DiagnosisGenerator interface {
	GenerateDiagnosis(ctx context.Context, text string) (string, error)
}

// Embedder builds vectors for catalog labels and generated diagnosis text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// TextExtractor extracts plain text from an uploaded document.
type TextExtractor interface {
	Extract(ctx context.Context, mimeType string, data []byte) (string, error)
}

// IntakeObserver receives pipeline outcomes for instrumentation.
type IntakeObserver interface {
	ObserveAnnotation(name string, degraded bool)
	ObserveDecision(method domain.DecisionMethod)
}
