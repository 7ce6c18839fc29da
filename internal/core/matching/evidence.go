// Package matching maps patient evidence onto the diagnosis catalog.
package matching

import (
	"sort"

	"github.com/kirillkom/medical-intake/internal/core/domain"
	"github.com/kirillkom/medical-intake/internal/core/textnorm"
)

type EvidenceConfig struct {
	MinMatches int
	MinRatio   float64
}

func DefaultEvidenceConfig() EvidenceConfig {
	return EvidenceConfig{MinMatches: 1, MinRatio: 0.2}
}

// EvidenceMatcher ranks catalog entries by token overlap with the evidence set.
type EvidenceMatcher struct {
	normalizer *textnorm.Normalizer
	cfg        EvidenceConfig
}

func NewEvidenceMatcher(normalizer *textnorm.Normalizer, cfg EvidenceConfig) *EvidenceMatcher {
	if cfg.MinMatches < 1 {
		cfg.MinMatches = 1
	}
	if cfg.MinRatio < 0 {
		cfg.MinRatio = 0
	}
	return &EvidenceMatcher{normalizer: normalizer, cfg: cfg}
}

// Rank returns accepted candidates ordered by overlap count then overlap ratio,
// catalog order breaking remaining ties.
func (m *EvidenceMatcher) Rank(evidence textnorm.TokenSet, catalog []domain.CatalogEntry) []domain.MatchCandidate {
	if len(evidence) == 0 || len(catalog) == 0 {
		return nil
	}

	candidates := make([]domain.MatchCandidate, 0, len(catalog))
	for _, entry := range catalog {
		entryTokens := m.normalizer.Normalize(entry.Label)
		overlap := 0
		for token := range entryTokens {
			if evidence.Has(token) {
				overlap++
			}
		}
		ratio := 0.0
		if len(entryTokens) > 0 {
			ratio = float64(overlap) / float64(len(entryTokens))
		}
		if overlap < m.cfg.MinMatches || ratio < m.cfg.MinRatio {
			continue
		}
		candidates = append(candidates, domain.MatchCandidate{
			CatalogID:    entry.ID,
			Label:        entry.Label,
			OverlapCount: overlap,
			OverlapRatio: ratio,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].OverlapCount != candidates[j].OverlapCount {
			return candidates[i].OverlapCount > candidates[j].OverlapCount
		}
		return candidates[i].OverlapRatio > candidates[j].OverlapRatio
	})
	return candidates
}
