package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/medical-intake/internal/core/domain"
	"github.com/kirillkom/medical-intake/internal/core/ports"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

type RecordsUseCase struct {
	records ports.RecordStore
}

func NewRecordsUseCase(records ports.RecordStore) *RecordsUseCase {
	return &RecordsUseCase{records: records}
}

// GetForUser returns a record only to its owner; other users get ErrNotFound.
func (uc *RecordsUseCase) GetForUser(ctx context.Context, userID, recordID int64) (*domain.StructuredRecord, error) {
	rec, err := uc.records.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if rec.UserID != userID {
		return nil, domain.WrapError(domain.ErrNotFound, "get record", fmt.Errorf("record %d", recordID))
	}
	return rec, nil
}

func (uc *RecordsUseCase) ListForUser(ctx context.Context, userID int64, limit int) ([]domain.StructuredRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	records, err := uc.records.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	if records == nil {
		records = []domain.StructuredRecord{}
	}
	return records, nil
}
