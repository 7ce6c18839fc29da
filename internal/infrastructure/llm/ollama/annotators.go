package ollama

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/medical-intake/internal/core/domain"
)

type Summarizer struct {
	client *Client
}

func NewSummarizer(client *Client) *Summarizer {
	return &Summarizer{client: client}
}

func (s *Summarizer) Summarize(ctx context.Context, text string) (string, error) {
	out, err := s.client.generateText(ctx, buildSummaryPrompt(text))
	if err != nil {
		return "", unavailable("summarize", err)
	}
	return strings.Trim(out, "\"“” "), nil
}

type Translator struct {
	client     *Client
	targetLang string
}

func NewTranslator(client *Client, targetLang string) *Translator {
	if strings.TrimSpace(targetLang) == "" {
		targetLang = "en"
	}
	return &Translator{client: client, targetLang: targetLang}
}

func (t *Translator) Translate(ctx context.Context, text string) (string, error) {
	out, err := t.client.generateText(ctx, buildTranslationPrompt(text, t.targetLang))
	if err != nil {
		return "", unavailable("translate", err)
	}
	return out, nil
}

var entityLabels = map[string]struct{}{
	"SYMPTOM":    {},
	"ANATOMY":    {},
	"DURATION":   {},
	"MEDICATION": {},
	"CONDITION":  {},
	"OTHER":      {},
}

type EntityExtractor struct {
	client *Client
}

func NewEntityExtractor(client *Client) *EntityExtractor {
	return &EntityExtractor{client: client}
}

// ExtractEntities keeps only entities whose text occurs in the source; unknown labels
// collapse to OTHER.
func (e *EntityExtractor) ExtractEntities(ctx context.Context, text string) ([]domain.Entity, error) {
	var result struct {
		Entities []struct {
			Text  string `json:"text"`
			Label string `json:"label"`
		} `json:"entities"`
	}
	if err := e.client.generateJSON(ctx, buildEntitiesPrompt(text), &result); err != nil {
		return nil, unavailable("extract entities", err)
	}

	lowered := strings.ToLower(text)
	out := make([]domain.Entity, 0, len(result.Entities))
	for _, ent := range result.Entities {
		entText := strings.TrimSpace(ent.Text)
		if entText == "" || !strings.Contains(lowered, strings.ToLower(entText)) {
			continue
		}
		label := strings.ToUpper(strings.TrimSpace(ent.Label))
		if _, ok := entityLabels[label]; !ok {
			label = "OTHER"
		}
		out = append(out, domain.Entity{Label: label, Text: entText})
	}
	return out, nil
}

type SentimentScorer struct {
	client *Client
}

func NewSentimentScorer(client *Client) *SentimentScorer {
	return &SentimentScorer{client: client}
}

func (s *SentimentScorer) ScoreSentiment(ctx context.Context, text string) (domain.Sentiment, error) {
	var result struct {
		Label string  `json:"label"`
		Score float64 `json:"score"`
	}
	if err := s.client.generateJSON(ctx, buildSentimentPrompt(text), &result); err != nil {
		return domain.Sentiment{}, unavailable("score sentiment", err)
	}
	polarity, err := polarityFromLabel(result.Label)
	if err != nil {
		return domain.Sentiment{}, unavailable("score sentiment", err)
	}
	score := result.Score
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return domain.Sentiment{Polarity: polarity, Score: score}, nil
}

func polarityFromLabel(label string) (domain.Polarity, error) {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "POS", "POSITIVE", "POSITIVO":
		return domain.PolarityPositive, nil
	case "NEG", "NEGATIVE", "NEGATIVO":
		return domain.PolarityNegative, nil
	case "NEU", "NEUTRAL", "NEUTRO":
		return domain.PolarityNeutral, nil
	default:
		return "", fmt.Errorf("unknown sentiment label %q", label)
	}
}

type DiagnosisGenerator struct {
	client *Client
}

func NewDiagnosisGenerator(client *Client) *DiagnosisGenerator {
	return &DiagnosisGenerator{client: client}
}

// GenerateDiagnosis returns a short diagnosis phrase, or "" when the model has none.
func (g *DiagnosisGenerator) GenerateDiagnosis(ctx context.Context, text string) (string, error) {
	var result struct {
		Diagnosis string `json:"diagnosis"`
	}
	if err := g.client.generateJSON(ctx, buildDiagnosisPrompt(text), &result); err != nil {
		return "", unavailable("generate diagnosis", err)
	}
	return strings.TrimSpace(result.Diagnosis), nil
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := e.client.embed(ctx, texts)
	if err != nil {
		return nil, unavailable("embed", err)
	}
	if len(vectors) != len(texts) {
		return nil, unavailable("embed", fmt.Errorf("got %d embeddings for %d inputs", len(vectors), len(texts)))
	}
	return vectors, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}
