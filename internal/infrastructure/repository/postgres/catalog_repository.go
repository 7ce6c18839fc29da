package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kirillkom/medical-intake/internal/core/domain"
)

// catalogLockKey serializes concurrent seeds so "insert if missing" stays idempotent
// without a unique constraint on the label column.
const catalogLockKey int64 = 2024051002

type CatalogRepository struct {
	db *sql.DB
}

func NewCatalogRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) List(ctx context.Context) ([]domain.CatalogEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, diagnosticos, created_at
FROM diagnosticos
ORDER BY id ASC
`)
	if err != nil {
		return nil, fmt.Errorf("list diagnosticos: %w", err)
	}
	defer rows.Close()

	out := make([]domain.CatalogEntry, 0)
	for rows.Next() {
		var entry domain.CatalogEntry
		if err := rows.Scan(&entry.ID, &entry.Label, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan diagnostico: %w", err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate diagnosticos: %w", err)
	}
	return out, nil
}

// InsertMissing inserts every label without an exact match and returns the inserted
// labels in input order.
func (r *CatalogRepository) InsertMissing(ctx context.Context, labels []string) ([]string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin seed tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, catalogLockKey); err != nil {
		return nil, fmt.Errorf("acquire seed lock: %w", err)
	}

	inserted := make([]string, 0, len(labels))
	for _, label := range labels {
		res, err := tx.ExecContext(ctx, `
INSERT INTO diagnosticos (diagnosticos)
SELECT $1
WHERE NOT EXISTS (SELECT 1 FROM diagnosticos WHERE diagnosticos = $1)
`, label)
		if err != nil {
			return nil, fmt.Errorf("insert diagnostico %q: %w", label, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("insert diagnostico rows affected: %w", err)
		}
		if affected > 0 {
			inserted = append(inserted, label)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit seed tx: %w", err)
	}
	return inserted, nil
}
