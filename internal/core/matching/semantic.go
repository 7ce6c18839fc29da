package matching

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/kirillkom/medical-intake/internal/core/domain"
	"github.com/kirillkom/medical-intake/internal/core/ports"
)

// SemanticRanker orders catalog entries by embedding similarity to a text.
type SemanticRanker struct {
	embedder ports.Embedder
}

func NewSemanticRanker(embedder ports.Embedder) *SemanticRanker {
	return &SemanticRanker{embedder: embedder}
}

// Rank embeds text and every catalog label and returns hits by descending cosine
// similarity. Embedder failures are returned as-is; inconsistent vectors are
// reported as ErrResolution.
func (r *SemanticRanker) Rank(ctx context.Context, text string, catalog []domain.CatalogEntry) ([]domain.SemanticHit, error) {
	if len(catalog) == 0 {
		return nil, nil
	}

	query, err := r.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	labels := make([]string, len(catalog))
	for i, entry := range catalog {
		labels[i] = entry.Label
	}
	vectors, err := r.embedder.Embed(ctx, labels)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(catalog) {
		return nil, domain.WrapError(domain.ErrResolution, "semantic rank",
			fmt.Errorf("embedder returned %d vectors for %d labels", len(vectors), len(catalog)))
	}

	hits := make([]domain.SemanticHit, 0, len(catalog))
	for i, entry := range catalog {
		if len(vectors[i]) != len(query) {
			return nil, domain.WrapError(domain.ErrResolution, "semantic rank",
				fmt.Errorf("vector dimension mismatch for %q: %d != %d", entry.Label, len(vectors[i]), len(query)))
		}
		hits = append(hits, domain.SemanticHit{Entry: entry, Similarity: Cosine(query, vectors[i])})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})
	return hits, nil
}

// Cosine returns the cosine similarity of two equal-length vectors, 0 when either is zero.
func Cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		af, bf := float64(a[i]), float64(b[i])
		dot += af * bf
		na += af * af
		nb += bf * bf
	}
	if na == 0 || nb == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if sim > 1 {
		return 1
	}
	if sim < -1 {
		return -1
	}
	return sim
}
