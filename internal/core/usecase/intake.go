package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/medical-intake/internal/core/domain"
	"github.com/kirillkom/medical-intake/internal/core/matching"
	"github.com/kirillkom/medical-intake/internal/core/ports"
	"github.com/kirillkom/medical-intake/internal/core/textnorm"
)

const (
	summaryFallbackRunes     = 100
	defaultAnnotationTimeout = 30 * time.Second
)

// Annotators groups the annotation capabilities used by the intake pipeline.
// Any of them may be nil; a missing capability degrades like a failing one.
type Annotators struct {
	Summarizer ports.Summarizer
	Translator ports.Translator
	Entities   ports.EntityExtractor
	Sentiment  ports.SentimentScorer
	Keywords   ports.KeywordExtractor
	Generator  ports.DiagnosisGenerator
}

// Outcome is the result of one annotation call: a value or the failure that
// prevented it.
type Outcome[T any] struct {
	Value T
	Err   error
}

// OrDefault returns the value, or def when the call failed.
func (o Outcome[T]) OrDefault(def T) T {
	if o.Err != nil {
		return def
	}
	return o.Value
}

func (o Outcome[T]) Failed() bool {
	return o.Err != nil
}

var errCapabilityMissing = errors.New("capability not configured")

type IntakeUseCase struct {
	catalog           *CatalogUseCase
	appointments      ports.AppointmentReader
	records           ports.RecordStore
	normalizer        *textnorm.Normalizer
	resolver          *matching.Resolver
	annotators        Annotators
	observer          ports.IntakeObserver
	annotationTimeout time.Duration
	now               func() time.Time
}

type IntakeOption func(*IntakeUseCase)

func WithIntakeObserver(observer ports.IntakeObserver) IntakeOption {
	return func(uc *IntakeUseCase) {
		if observer != nil {
			uc.observer = observer
		}
	}
}

func WithAnnotationTimeout(timeout time.Duration) IntakeOption {
	return func(uc *IntakeUseCase) {
		if timeout > 0 {
			uc.annotationTimeout = timeout
		}
	}
}

func WithClock(now func() time.Time) IntakeOption {
	return func(uc *IntakeUseCase) {
		if now != nil {
			uc.now = now
		}
	}
}

func NewIntakeUseCase(
	catalog *CatalogUseCase,
	appointments ports.AppointmentReader,
	records ports.RecordStore,
	normalizer *textnorm.Normalizer,
	resolver *matching.Resolver,
	annotators Annotators,
	opts ...IntakeOption,
) *IntakeUseCase {
	uc := &IntakeUseCase{
		catalog:           catalog,
		appointments:      appointments,
		records:           records,
		normalizer:        normalizer,
		resolver:          resolver,
		annotators:        annotators,
		observer:          noopObserver{},
		annotationTimeout: defaultAnnotationTimeout,
		now:               func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Process runs the full text-to-diagnosis pipeline and persists the record.
// References are validated before any annotation work starts.
func (uc *IntakeUseCase) Process(ctx context.Context, req domain.IntakeRequest) (*domain.StructuredRecord, error) {
	text, hinted, err := uc.checkReferences(ctx, req)
	if err != nil {
		return nil, err
	}

	catalog, err := uc.catalog.Entries(ctx)
	if err != nil {
		return nil, err
	}

	ann := uc.annotate(ctx, text, hinted == nil)

	rec := &domain.StructuredRecord{
		RequestID:     req.RequestID,
		OriginalText:  text,
		Summary:       ann.summary.OrDefault(textnorm.FirstSentence(text, summaryFallbackRunes)),
		Translation:   ann.translation.OrDefault(text),
		Entities:      ann.entities.OrDefault([]domain.Entity{}),
		Keywords:      ann.keywords.OrDefault([]domain.Keyword{}),
		Sentiment:     ann.sentiment.OrDefault(domain.NeutralSentiment()),
		AppointmentID: req.AppointmentID,
		UserID:        req.UserID,
		Degraded:      ann.degraded(hinted == nil),
		CreatedAt:     uc.now(),
	}
	rec.Sentiment.Score = roundScore(rec.Sentiment.Score)

	if hinted != nil {
		id := hinted.ID
		rec.Decision = domain.Decision{DiagnosisID: &id, Label: hinted.Label, Confidence: 1, Method: domain.MethodHint}
	} else {
		evidence := uc.normalizer.Normalize(text)
		// The embedder is an annotation service and shares its deadline.
		resolveCtx, cancel := context.WithTimeout(ctx, uc.annotationTimeout)
		resolution, err := uc.resolver.Resolve(resolveCtx, evidence, ann.generated.OrDefault(""), catalog)
		cancel()
		if err != nil {
			return nil, domain.WrapError(domain.ErrResolution, "resolve diagnosis", err)
		}
		if resolution.SemanticErr != nil {
			rec.Degraded = append(rec.Degraded, domain.AnnotationSemantic)
			uc.observer.ObserveAnnotation(domain.AnnotationSemantic, true)
		}
		rec.Decision = resolution.Decision
	}
	uc.observer.ObserveDecision(rec.Decision.Method)

	if err := uc.records.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist record: %w", err)
	}
	return rec, nil
}

// ValidateReferences checks the text, cita_id and diagnosis hint of a request
// without running any annotation.
func (uc *IntakeUseCase) ValidateReferences(ctx context.Context, req domain.IntakeRequest) error {
	_, _, err := uc.checkReferences(ctx, req)
	return err
}

func (uc *IntakeUseCase) checkReferences(ctx context.Context, req domain.IntakeRequest) (string, *domain.CatalogEntry, error) {
	text := strings.TrimSpace(req.RawText)
	if text == "" {
		return "", nil, domain.WrapError(domain.ErrInvalidInput, "process intake", fmt.Errorf("texto_original is required"))
	}
	if err := uc.validateAppointment(ctx, req.AppointmentID); err != nil {
		return "", nil, err
	}
	if req.Hint == nil {
		return text, nil, nil
	}
	entry, err := uc.catalog.ResolveHint(ctx, *req.Hint)
	if err != nil {
		return "", nil, err
	}
	return text, &entry, nil
}

func (uc *IntakeUseCase) validateAppointment(ctx context.Context, appointmentID *int64) error {
	if appointmentID == nil {
		return nil
	}
	if uc.appointments == nil {
		return domain.WrapError(domain.ErrInvalidInput, "validate appointment", fmt.Errorf("appointments are not available"))
	}
	exists, err := uc.appointments.Exists(ctx, *appointmentID)
	if err != nil {
		return fmt.Errorf("check appointment: %w", err)
	}
	if !exists {
		return domain.WrapError(domain.ErrInvalidInput, "validate appointment",
			fmt.Errorf("cita_id %d does not exist", *appointmentID))
	}
	return nil
}

type annotations struct {
	summary     Outcome[string]
	translation Outcome[string]
	entities    Outcome[[]domain.Entity]
	keywords    Outcome[[]domain.Keyword]
	sentiment   Outcome[domain.Sentiment]
	generated   Outcome[string]
}

func (a annotations) degraded(withGenerator bool) []string {
	out := []string{}
	add := func(name string, failed bool) {
		if failed {
			out = append(out, name)
		}
	}
	add(domain.AnnotationSummary, a.summary.Failed())
	add(domain.AnnotationTranslation, a.translation.Failed())
	add(domain.AnnotationEntities, a.entities.Failed())
	add(domain.AnnotationKeywords, a.keywords.Failed())
	add(domain.AnnotationSentiment, a.sentiment.Failed())
	if withGenerator {
		add(domain.AnnotationDiagnosis, a.generated.Failed())
	}
	return out
}

// annotate fans out all annotation calls and waits for every one of them. Each call
// gets its own deadline; failures never cancel sibling calls.
func (uc *IntakeUseCase) annotate(ctx context.Context, text string, withGenerator bool) annotations {
	var out annotations
	var g errgroup.Group

	g.Go(func() error {
		out.summary = runAnnotation(ctx, uc, domain.AnnotationSummary, uc.annotators.Summarizer != nil,
			func(ctx context.Context) (string, error) {
				summary, err := uc.annotators.Summarizer.Summarize(ctx, text)
				if err == nil && strings.TrimSpace(summary) == "" {
					err = errors.New("empty summary")
				}
				return strings.TrimSpace(summary), err
			})
		return nil
	})
	g.Go(func() error {
		out.translation = runAnnotation(ctx, uc, domain.AnnotationTranslation, uc.annotators.Translator != nil,
			func(ctx context.Context) (string, error) {
				translated, err := uc.annotators.Translator.Translate(ctx, text)
				if err == nil && strings.TrimSpace(translated) == "" {
					err = errors.New("empty translation")
				}
				return strings.TrimSpace(translated), err
			})
		return nil
	})
	g.Go(func() error {
		out.entities = runAnnotation(ctx, uc, domain.AnnotationEntities, uc.annotators.Entities != nil,
			func(ctx context.Context) ([]domain.Entity, error) {
				entities, err := uc.annotators.Entities.ExtractEntities(ctx, text)
				if entities == nil {
					entities = []domain.Entity{}
				}
				return entities, err
			})
		return nil
	})
	g.Go(func() error {
		out.keywords = runAnnotation(ctx, uc, domain.AnnotationKeywords, uc.annotators.Keywords != nil,
			func(ctx context.Context) ([]domain.Keyword, error) {
				keywords, err := uc.annotators.Keywords.ExtractKeywords(ctx, text)
				if keywords == nil {
					keywords = []domain.Keyword{}
				}
				return keywords, err
			})
		return nil
	})
	g.Go(func() error {
		out.sentiment = runAnnotation(ctx, uc, domain.AnnotationSentiment, uc.annotators.Sentiment != nil,
			func(ctx context.Context) (domain.Sentiment, error) {
				return uc.annotators.Sentiment.ScoreSentiment(ctx, text)
			})
		return nil
	})
	if withGenerator {
		g.Go(func() error {
			out.generated = runAnnotation(ctx, uc, domain.AnnotationDiagnosis, uc.annotators.Generator != nil,
				func(ctx context.Context) (string, error) {
					generated, err := uc.annotators.Generator.GenerateDiagnosis(ctx, text)
					return strings.TrimSpace(generated), err
				})
			return nil
		})
	}

	_ = g.Wait()
	return out
}

func runAnnotation[T any](
	ctx context.Context,
	uc *IntakeUseCase,
	name string,
	available bool,
	call func(context.Context) (T, error),
) Outcome[T] {
	var out Outcome[T]
	if !available {
		out.Err = domain.WrapError(domain.ErrAnnotationUnavailable, name, errCapabilityMissing)
		uc.observer.ObserveAnnotation(name, true)
		return out
	}

	callCtx, cancel := context.WithTimeout(ctx, uc.annotationTimeout)
	defer cancel()
	out.Value, out.Err = call(callCtx)
	if out.Err != nil && !domain.IsKind(out.Err, domain.ErrAnnotationUnavailable) {
		out.Err = domain.WrapError(domain.ErrAnnotationUnavailable, name, out.Err)
	}
	uc.observer.ObserveAnnotation(name, out.Err != nil)
	return out
}

func roundScore(score float64) float64 {
	return math.Round(score*10000) / 10000
}

type noopObserver struct{}

func (noopObserver) ObserveAnnotation(string, bool)        {}
func (noopObserver) ObserveDecision(domain.DecisionMethod) {}
