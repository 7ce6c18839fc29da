// Package textnorm turns free text into bags of significant tokens.
package textnorm

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

//go:embed stopwords_es.yaml
var spanishStopwordsYAML []byte

// TokenSet is a set of accent-folded, lowercased tokens.
type TokenSet map[string]struct{}

func (s TokenSet) Has(token string) bool {
	_, ok := s[token]
	return ok
}

// Normalizer tokenizes text and drops stop words. It is immutable after construction
// and safe for concurrent use.
type Normalizer struct {
	stopwords map[string]struct{}
}

func New(stopwords []string) *Normalizer {
	stops := make(map[string]struct{}, len(stopwords))
	for _, w := range stopwords {
		w = fold(strings.ToLower(strings.TrimSpace(w)))
		if w != "" {
			stops[w] = struct{}{}
		}
	}
	return &Normalizer{stopwords: stops}
}

// NewSpanish builds a normalizer with the embedded Spanish stop-word list.
func NewSpanish() *Normalizer {
	terms, err := parseStoplist(spanishStopwordsYAML)
	if err != nil {
		panic(fmt.Sprintf("textnorm: embedded stoplist: %v", err))
	}
	return New(terms)
}

// Load builds a normalizer from a YAML stoplist file ({terms: [...]}); an empty path
// selects the embedded Spanish list.
func Load(path string) (*Normalizer, error) {
	if strings.TrimSpace(path) == "" {
		return NewSpanish(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stoplist: %w", err)
	}
	terms, err := parseStoplist(data)
	if err != nil {
		return nil, err
	}
	return New(terms), nil
}

func parseStoplist(data []byte) ([]string, error) {
	var file struct {
		Terms []string `yaml:"terms"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse stoplist yaml: %w", err)
	}
	return file.Terms, nil
}

// Tokens returns significant lowercase tokens in text order, repeats included.
// Accents are preserved.
func (n *Normalizer) Tokens(text string) []string {
	if text == "" {
		return nil
	}
	words := strings.FieldsFunc(norm.NFC.String(text), isSeparator)
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(w)
		if n.IsStopword(w) {
			continue
		}
		out = append(out, w)
	}
	return out
}

// Normalize returns the evidence token set of text.
func (n *Normalizer) Normalize(text string) TokenSet {
	tokens := n.Tokens(text)
	out := make(TokenSet, len(tokens))
	for _, t := range tokens {
		out[fold(t)] = struct{}{}
	}
	return out
}

func (n *Normalizer) IsStopword(token string) bool {
	_, ok := n.stopwords[fold(token)]
	return ok
}

// Fold lowercases s and strips combining accents, the same key space Normalize uses.
func Fold(s string) string {
	return fold(strings.ToLower(s))
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsNumber(r) && !unicode.Is(unicode.Mn, r)
}

func fold(s string) string {
	// transform chains carry state, build one per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
