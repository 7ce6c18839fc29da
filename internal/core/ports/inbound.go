package ports

import (
	"context"

	"github.com/kirillkom/medical-intake/internal/core/domain"
)

// IntakeProcessor is the inbound contract for the text-to-diagnosis pipeline.
type IntakeProcessor interface {
	Process(ctx context.Context, req domain.IntakeRequest) (*domain.StructuredRecord, error)
}

// IntakeEnqueuer queues intake requests for the worker.
type IntakeEnqueuer interface {
	Enqueue(ctx context.Context, req domain.IntakeRequest) (*domain.IntakeJob, error)
}

// RecordReader is the inbound read model for persisted clinical records.
type RecordReader interface {
	GetForUser(ctx context.Context, userID, recordID int64) (*domain.StructuredRecord, error)
	ListForUser(ctx context.Context, userID int64, limit int) ([]domain.StructuredRecord, error)
}

// CatalogService lists and seeds the diagnosis catalog.
type CatalogService interface {
	Entries(ctx context.Context) ([]domain.CatalogEntry, error)
	Seed(ctx context.Context, labels []string) (domain.SeedResult, error)
}
