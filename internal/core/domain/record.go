package domain

import "time"

type Polarity string

const (
	PolarityPositive Polarity = "positive"
	PolarityNegative Polarity = "negative"
	PolarityNeutral  Polarity = "neutral"
)

type Sentiment struct {
	Polarity Polarity `json:"polarity"`
	Score    float64  `json:"score"`
}

func NeutralSentiment() Sentiment {
	return Sentiment{Polarity: PolarityNeutral}
}

type Entity struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

type Keyword struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// Annotation names, used for degraded-path reporting and metrics labels.
const (
	AnnotationSummary     = "summary"
	AnnotationTranslation = "translation"
	AnnotationEntities    = "entities"
	AnnotationKeywords    = "keywords"
	AnnotationSentiment   = "sentiment"
	AnnotationDiagnosis   = "diagnosis_generation"
	AnnotationSemantic    = "semantic_match"
)

type IntakeRequest struct {
	RawText       string
	AppointmentID *int64
	Hint          *DiagnosisHint
	UserID        int64
	RequestID     string
}

// StructuredRecord is the persisted outcome of one pipeline run (a historial row).
type StructuredRecord struct {
	ID            int64
	RequestID     string
	OriginalText  string
	Summary       string
	Translation   string
	Entities      []Entity
	Keywords      []Keyword
	Sentiment     Sentiment
	Decision      Decision
	AppointmentID *int64
	UserID        int64
	Degraded      []string
	CreatedAt     time.Time
}

// GroupEntities groups entity texts by label, keeping first-seen order inside each group.
func GroupEntities(entities []Entity) map[string][]string {
	out := make(map[string][]string)
	for _, e := range entities {
		out[e.Label] = append(out[e.Label], e.Text)
	}
	return out
}
