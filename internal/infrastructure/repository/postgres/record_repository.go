package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kirillkom/medical-intake/internal/core/domain"
)

type RecordRepository struct {
	db *sql.DB
}

func NewRecordRepository(db *sql.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

const recordColumns = `id, request_id, texto_original, resumen, traduccion, entidades, palabras_claves,
	sentimiento, sentimiento_score, diagnosticos_id, diagnostico_label, diagnostico_confianza,
	diagnostico_metodo, cita_id, user_id, degradado, created_at`

// Create inserts the record in one transaction and fills in the store-assigned id
// and timestamp.
func (r *RecordRepository) Create(ctx context.Context, rec *domain.StructuredRecord) error {
	entitiesJSON, err := json.Marshal(nonNilEntities(rec.Entities))
	if err != nil {
		return fmt.Errorf("marshal entidades: %w", err)
	}
	keywordsJSON, err := json.Marshal(nonNilKeywords(rec.Keywords))
	if err != nil {
		return fmt.Errorf("marshal palabras_claves: %w", err)
	}
	degradedJSON, err := json.Marshal(nonNilStrings(rec.Degraded))
	if err != nil {
		return fmt.Errorf("marshal degradado: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin historial tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	row := tx.QueryRowContext(ctx, `
INSERT INTO historial (
	request_id, texto_original, resumen, traduccion, entidades, palabras_claves,
	sentimiento, sentimiento_score, diagnosticos_id, diagnostico_label, diagnostico_confianza,
	diagnostico_metodo, cita_id, user_id, degradado, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
RETURNING id, created_at
`,
		rec.RequestID, rec.OriginalText, rec.Summary, rec.Translation, entitiesJSON, keywordsJSON,
		string(rec.Sentiment.Polarity), rec.Sentiment.Score, rec.Decision.DiagnosisID, rec.Decision.Label,
		rec.Decision.Confidence, string(rec.Decision.Method), rec.AppointmentID, rec.UserID, degradedJSON,
		rec.CreatedAt,
	)
	if err := row.Scan(&rec.ID, &rec.CreatedAt); err != nil {
		return fmt.Errorf("insert historial: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit historial tx: %w", err)
	}
	return nil
}

func (r *RecordRepository) GetByID(ctx context.Context, id int64) (*domain.StructuredRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+recordColumns+`
FROM historial
WHERE id = $1
`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get historial", fmt.Errorf("id %d", id))
		}
		return nil, err
	}
	return &rec, nil
}

func (r *RecordRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]domain.StructuredRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+recordColumns+`
FROM historial
WHERE user_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2
`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list historial: %w", err)
	}
	defer rows.Close()

	out := make([]domain.StructuredRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate historial: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (domain.StructuredRecord, error) {
	var rec domain.StructuredRecord
	var entitiesRaw, keywordsRaw, degradedRaw []byte
	var polarity, method string
	var diagnosisID, citaID sql.NullInt64

	err := row.Scan(
		&rec.ID, &rec.RequestID, &rec.OriginalText, &rec.Summary, &rec.Translation, &entitiesRaw, &keywordsRaw,
		&polarity, &rec.Sentiment.Score, &diagnosisID, &rec.Decision.Label, &rec.Decision.Confidence,
		&method, &citaID, &rec.UserID, &degradedRaw, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("scan historial: %w", err)
	}

	if err := json.Unmarshal(entitiesRaw, &rec.Entities); err != nil {
		return rec, fmt.Errorf("unmarshal entidades: %w", err)
	}
	if err := json.Unmarshal(keywordsRaw, &rec.Keywords); err != nil {
		return rec, fmt.Errorf("unmarshal palabras_claves: %w", err)
	}
	if err := json.Unmarshal(degradedRaw, &rec.Degraded); err != nil {
		return rec, fmt.Errorf("unmarshal degradado: %w", err)
	}
	rec.Sentiment.Polarity = domain.Polarity(polarity)
	rec.Decision.Method = domain.DecisionMethod(method)
	if diagnosisID.Valid {
		id := diagnosisID.Int64
		rec.Decision.DiagnosisID = &id
	}
	if citaID.Valid {
		id := citaID.Int64
		rec.AppointmentID = &id
	}
	return rec, nil
}

func nonNilEntities(in []domain.Entity) []domain.Entity {
	if in == nil {
		return []domain.Entity{}
	}
	return in
}

func nonNilKeywords(in []domain.Keyword) []domain.Keyword {
	if in == nil {
		return []domain.Keyword{}
	}
	return in
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
