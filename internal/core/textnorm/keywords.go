package textnorm

import (
	"context"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/medical-intake/internal/core/domain"
)

// KeywordExtractor ranks the most frequent significant tokens of a text.
type KeywordExtractor struct {
	normalizer *Normalizer
	topN       int
}

func NewKeywordExtractor(normalizer *Normalizer, topN int) *KeywordExtractor {
	if topN <= 0 {
		topN = 5
	}
	return &KeywordExtractor{normalizer: normalizer, topN: topN}
}

func (k *KeywordExtractor) ExtractKeywords(_ context.Context, text string) ([]domain.Keyword, error) {
	return TopKeywords(k.normalizer.Tokens(text), k.topN), nil
}

// TopKeywords counts tokens and returns the n most frequent; equal counts keep
// first-occurrence order.
func TopKeywords(tokens []string, n int) []domain.Keyword {
	if len(tokens) == 0 || n <= 0 {
		return []domain.Keyword{}
	}
	counts := make(map[string]int, len(tokens))
	order := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, seen := counts[t]; !seen {
			order = append(order, t)
		}
		counts[t]++
	}

	out := make([]domain.Keyword, 0, len(order))
	for _, t := range order {
		out = append(out, domain.Keyword{Term: t, Count: counts[t]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// FirstSentence returns the first sentence of text capped at maxRunes, the summary
// used when no summarizer answer is available.
func FirstSentence(text string, maxRunes int) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	end := len(text)
	for i, r := range text {
		if r == '\n' {
			end = i
			break
		}
		if r == '.' || r == '!' || r == '?' {
			next := i + utf8.RuneLen(r)
			if next >= len(text) || text[next] == ' ' || text[next] == '\n' {
				end = next
				break
			}
		}
	}
	sentence := strings.TrimSpace(text[:end])
	if sentence == "" {
		sentence = text
	}
	if maxRunes > 0 && utf8.RuneCountInString(sentence) > maxRunes {
		sentence = string([]rune(sentence)[:maxRunes])
	}
	return sentence
}
