package domain

// DecisionMethod names how a Decision was reached. The resolver only ever produces
// LEXICAL, SEMANTIC, FALLBACK or NONE.
type DecisionMethod string

const (
	MethodLexical  DecisionMethod = "LEXICAL"
	MethodSemantic DecisionMethod = "SEMANTIC"
	MethodFallback DecisionMethod = "FALLBACK"
	MethodNone     DecisionMethod = "NONE"
	// MethodHint marks a diagnosis supplied by the caller. It is stored in
	// diagnostico_metodo like the others, so readers of historial must accept it.
	MethodHint DecisionMethod = "HINT"
)

// UndeterminedLabel is the decision label when no catalog entry could be selected.
const UndeterminedLabel = "undetermined"

// Decision is the diagnosis chosen for a record. Method is HINT with confidence 1
// when the caller named a valid catalog entry; the resolver was not consulted then.
type Decision struct {
	DiagnosisID *int64         `json:"diagnosticos_id"`
	Label       string         `json:"label"`
	Confidence  float64        `json:"confidence"`
	Method      DecisionMethod `json:"method"`
}

func UndeterminedDecision() Decision {
	return Decision{Label: UndeterminedLabel, Method: MethodNone}
}

type MatchCandidate struct {
	CatalogID    int64
	Label        string
	OverlapCount int
	OverlapRatio float64
}

type SemanticHit struct {
	Entry      CatalogEntry
	Similarity float64
}
