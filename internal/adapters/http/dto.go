package httpadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/medical-intake/internal/core/domain"
)

type intakeRequest struct {
	TextoOriginal string          `json:"texto_original"`
	CitaID        *int64          `json:"cita_id"`
	Diagnostico   json.RawMessage `json:"diagnostico"`
}

func (req intakeRequest) toDomain(userID int64, requestID string) (domain.IntakeRequest, error) {
	hint, err := decodeHint(req.Diagnostico)
	if err != nil {
		return domain.IntakeRequest{}, err
	}
	return domain.IntakeRequest{
		RawText:       req.TextoOriginal,
		AppointmentID: req.CitaID,
		Hint:          hint,
		UserID:        userID,
		RequestID:     requestID,
	}, nil
}

// decodeHint turns the "diagnostico" union into a tagged hint. JSON integers become
// ById, JSON strings become ByLabel even when they look numeric.
func decodeHint(raw json.RawMessage) (*domain.DiagnosisHint, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	if raw[0] == '"' {
		var label string
		if err := json.Unmarshal(raw, &label); err != nil {
			return nil, invalidInput("decode diagnostico", err)
		}
		if strings.TrimSpace(label) == "" {
			return nil, nil
		}
		return domain.NewHintByLabel(label), nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var number json.Number
	if err := dec.Decode(&number); err != nil {
		return nil, invalidInput("decode diagnostico", errors.New("diagnostico must be a string or an integer"))
	}
	id, err := number.Int64()
	if err != nil {
		return nil, invalidInput("decode diagnostico", fmt.Errorf("diagnostico %s is not an integer id", number))
	}
	return domain.NewHintByID(id), nil
}

func invalidInput(op string, err error) error {
	return domain.WrapError(domain.ErrInvalidInput, op, err)
}

type diagnosisResponse struct {
	Label      string                `json:"label"`
	Confidence float64               `json:"confidence"`
	Method     domain.DecisionMethod `json:"method"`
}

type recordResponse struct {
	ID             int64               `json:"id"`
	RequestID      string              `json:"request_id"`
	TextoOriginal  string              `json:"texto_original"`
	Resumen        string              `json:"resumen"`
	Traduccion     string              `json:"traduccion"`
	Entidades      map[string][]string `json:"entidades"`
	PalabrasClaves []domain.Keyword    `json:"palabras_claves"`
	Sentimiento    domain.Sentiment    `json:"sentimiento"`
	DiagnosticosID *int64              `json:"diagnosticos_id"`
	Diagnostico    diagnosisResponse   `json:"diagnostico"`
	CitaID         *int64              `json:"cita_id"`
	UserID         int64               `json:"user_id"`
	Degradado      []string            `json:"degradado"`
	CreatedAt      time.Time           `json:"created_at"`
}

func toRecordResponse(rec *domain.StructuredRecord) recordResponse {
	keywords := rec.Keywords
	if keywords == nil {
		keywords = []domain.Keyword{}
	}
	degraded := rec.Degraded
	if degraded == nil {
		degraded = []string{}
	}
	return recordResponse{
		ID:             rec.ID,
		RequestID:      rec.RequestID,
		TextoOriginal:  rec.OriginalText,
		Resumen:        rec.Summary,
		Traduccion:     rec.Translation,
		Entidades:      domain.GroupEntities(rec.Entities),
		PalabrasClaves: keywords,
		Sentimiento:    rec.Sentiment,
		DiagnosticosID: rec.Decision.DiagnosisID,
		Diagnostico: diagnosisResponse{
			Label:      rec.Decision.Label,
			Confidence: rec.Decision.Confidence,
			Method:     rec.Decision.Method,
		},
		CitaID:    rec.AppointmentID,
		UserID:    rec.UserID,
		Degradado: degraded,
		CreatedAt: rec.CreatedAt,
	}
}

type jobResponse struct {
	JobID      string    `json:"job_id"`
	Status     string    `json:"status"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

type seedRequest struct {
	Diagnosticos []string `json:"diagnosticos"`
}
