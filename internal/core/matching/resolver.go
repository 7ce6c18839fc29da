package matching

import (
	"context"
	"strings"

	"github.com/kirillkom/medical-intake/internal/core/domain"
	"github.com/kirillkom/medical-intake/internal/core/textnorm"
)

const DefaultFallbackMarker = "sin diagnóstico"

type ResolverConfig struct {
	SemanticThreshold float64
	FallbackMarker    string
}

func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{SemanticThreshold: 0.45, FallbackMarker: DefaultFallbackMarker}
}

// Resolution is the resolver outcome. SemanticErr is set when the semantic step
// was skipped because the embedder failed; the decision is still valid.
type Resolution struct {
	Decision    domain.Decision
	Hits        []domain.SemanticHit
	Candidates  []domain.MatchCandidate
	SemanticErr error
}

// Resolver picks one diagnosis: semantic match, then lexical match, then the
// fallback entry, then undetermined.
type Resolver struct {
	matcher *EvidenceMatcher
	ranker  *SemanticRanker
	cfg     ResolverConfig
	marker  string
}

func NewResolver(matcher *EvidenceMatcher, ranker *SemanticRanker, cfg ResolverConfig) *Resolver {
	if strings.TrimSpace(cfg.FallbackMarker) == "" {
		cfg.FallbackMarker = DefaultFallbackMarker
	}
	return &Resolver{
		matcher: matcher,
		ranker:  ranker,
		cfg:     cfg,
		marker:  textnorm.Fold(strings.TrimSpace(cfg.FallbackMarker)),
	}
}

// Resolve returns an error only for ErrResolution failures. An empty generated
// text skips the semantic step.
func (r *Resolver) Resolve(
	ctx context.Context,
	evidence textnorm.TokenSet,
	generated string,
	catalog []domain.CatalogEntry,
) (Resolution, error) {
	var out Resolution
	if len(catalog) == 0 {
		out.Decision = domain.UndeterminedDecision()
		return out, nil
	}

	if strings.TrimSpace(generated) != "" && r.ranker != nil {
		hits, err := r.ranker.Rank(ctx, generated, catalog)
		switch {
		case domain.IsKind(err, domain.ErrResolution):
			return Resolution{}, err
		case err != nil:
			out.SemanticErr = err
		case len(hits) > 0:
			out.Hits = hits
			top := hits[0]
			if top.Similarity >= r.cfg.SemanticThreshold {
				out.Decision = decisionFor(top.Entry.ID, top.Entry.Label, top.Similarity, domain.MethodSemantic)
				return out, nil
			}
		}
	}

	out.Candidates = r.matcher.Rank(evidence, catalog)
	if len(out.Candidates) > 0 {
		top := out.Candidates[0]
		out.Decision = decisionFor(top.CatalogID, top.Label, top.OverlapRatio, domain.MethodLexical)
		return out, nil
	}

	if entry, ok := r.FallbackEntry(catalog); ok {
		out.Decision = decisionFor(entry.ID, entry.Label, 0, domain.MethodFallback)
		return out, nil
	}

	out.Decision = domain.UndeterminedDecision()
	return out, nil
}

// FallbackEntry returns the first catalog entry whose label contains the
// "no diagnosis" marker, ignoring case and accents.
func (r *Resolver) FallbackEntry(catalog []domain.CatalogEntry) (domain.CatalogEntry, bool) {
	for _, entry := range catalog {
		if strings.Contains(textnorm.Fold(entry.Label), r.marker) {
			return entry, true
		}
	}
	return domain.CatalogEntry{}, false
}

func decisionFor(id int64, label string, confidence float64, method domain.DecisionMethod) domain.Decision {
	return domain.Decision{
		DiagnosisID: &id,
		Label:       label,
		Confidence:  confidence,
		Method:      method,
	}
}
