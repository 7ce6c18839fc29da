// Package embedcache memoizes embeddings so catalog labels are embedded once per process.
package embedcache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/kirillkom/medical-intake/internal/core/ports"
)

const defaultMaxEntries = 4096

type Embedder struct {
	next       ports.Embedder
	model      string
	maxEntries int

	mu sync.RWMutex
	m  map[string][]float32
}

// New wraps next. model is part of the key so a model switch never reuses vectors.
func New(next ports.Embedder, model string, maxEntries int) *Embedder {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &Embedder{
		next:       next,
		model:      model,
		maxEntries: maxEntries,
		m:          make(map[string][]float32),
	}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int
	for i, text := range texts {
		if vec, ok := e.get(cacheKey(text, e.model)); ok {
			out[i] = vec
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	vectors, err := e.next.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missing) {
		return nil, fmt.Errorf("embed cache: got %d vectors for %d texts", len(vectors), len(missing))
	}
	for j, vec := range vectors {
		out[missingIdx[j]] = vec
		e.put(cacheKey(missing[j], e.model), vec)
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *Embedder) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.m)
}

func (e *Embedder) get(key string) ([]float32, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.m[key]
	return v, ok
}

func (e *Embedder) put(key string, v []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	// Full cache starts over; the working set is the catalog plus recent queries.
	if len(e.m) >= e.maxEntries {
		e.m = make(map[string][]float32)
	}
	e.m[key] = v
}

func cacheKey(text, model string) string {
	h := sha1.Sum([]byte(text + "|" + model))
	return hex.EncodeToString(h[:])
}
