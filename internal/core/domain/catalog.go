package domain

import "time"

// CatalogEntry is one recognized diagnosis label.
type CatalogEntry struct {
	ID        int64     `json:"id"`
	Label     string    `json:"diagnostico"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

type HintKind int

const (
	HintByID HintKind = iota + 1
	HintByLabel
)

// DiagnosisHint is a caller-supplied diagnosis reference, either by catalog id or by exact label.
type DiagnosisHint struct {
	Kind  HintKind
	ID    int64
	Label string
}

func NewHintByID(id int64) *DiagnosisHint {
	return &DiagnosisHint{Kind: HintByID, ID: id}
}

func NewHintByLabel(label string) *DiagnosisHint {
	return &DiagnosisHint{Kind: HintByLabel, Label: label}
}

// SeedResult reports which labels a catalog seed actually inserted.
type SeedResult struct {
	Inserted []string `json:"inserted"`
	Count    int      `json:"count"`
}
