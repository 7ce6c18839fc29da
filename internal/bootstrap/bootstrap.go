package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/medical-intake/internal/config"
	"github.com/kirillkom/medical-intake/internal/core/matching"
	"github.com/kirillkom/medical-intake/internal/core/ports"
	"github.com/kirillkom/medical-intake/internal/core/textnorm"
	"github.com/kirillkom/medical-intake/internal/core/usecase"
	"github.com/kirillkom/medical-intake/internal/infrastructure/embedcache"
	"github.com/kirillkom/medical-intake/internal/infrastructure/extractor"
	"github.com/kirillkom/medical-intake/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/medical-intake/internal/infrastructure/queue/nats"
	"github.com/kirillkom/medical-intake/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/medical-intake/internal/infrastructure/resilience"
	"github.com/kirillkom/medical-intake/internal/observability/metrics"
)

// Options selects the optional parts of the graph a process needs.
type Options struct {
	Service string
	// WithQueue connects to NATS for async intake.
	WithQueue bool
	// Registerer receives pipeline and resilience metrics; nil disables them.
	Registerer prometheus.Registerer
}

type App struct {
	Config config.Config

	DB        *sql.DB
	Queue     *nats.Queue
	Catalog   *usecase.CatalogUseCase
	Intake    *usecase.IntakeUseCase
	Records   *usecase.RecordsUseCase
	Enqueuer  ports.IntakeEnqueuer
	Extractor *extractor.Extractor

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	normalizer, err := textnorm.Load(cfg.StopwordsPath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("load stopwords: %w", err)
	}

	executor := resilience.NewExecutor(resilienceConfig(cfg))
	var observer *metrics.PipelineMetrics
	if opts.Registerer != nil {
		observer = metrics.NewPipelineMetrics(opts.Service, opts.Registerer)
		executor.WithObserver(observer)
	}

	ollamaClient := ollama.NewWithOptions(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.Options{
		HTTPTimeout:        cfg.OllamaHTTPTimeout,
		ResilienceExecutor: executor,
	})
	embedder := embedcache.New(ollama.NewEmbedder(ollamaClient), cfg.OllamaEmbedModel, cfg.EmbedCacheSize)

	matcher := matching.NewEvidenceMatcher(normalizer, matching.EvidenceConfig{
		MinMatches: cfg.LexicalMinMatches,
		MinRatio:   cfg.LexicalMinRatio,
	})
	resolver := matching.NewResolver(matcher, matching.NewSemanticRanker(embedder), matching.ResolverConfig{
		SemanticThreshold: cfg.SemanticThreshold,
		FallbackMarker:    cfg.FallbackMarker,
	})

	catalogUC := usecase.NewCatalogUseCase(postgres.NewCatalogRepository(db))
	recordRepo := postgres.NewRecordRepository(db)

	intakeOpts := []usecase.IntakeOption{usecase.WithAnnotationTimeout(cfg.AnnotationTimeout)}
	if observer != nil {
		intakeOpts = append(intakeOpts, usecase.WithIntakeObserver(observer))
	}
	intakeUC := usecase.NewIntakeUseCase(
		catalogUC,
		postgres.NewAppointmentRepository(db),
		recordRepo,
		normalizer,
		resolver,
		usecase.Annotators{
			Summarizer: ollama.NewSummarizer(ollamaClient),
			Translator: ollama.NewTranslator(ollamaClient, cfg.TranslationTargetLang),
			Entities:   ollama.NewEntityExtractor(ollamaClient),
			Sentiment:  ollama.NewSentimentScorer(ollamaClient),
			Keywords:   textnorm.NewKeywordExtractor(normalizer, cfg.KeywordsTopN),
			Generator:  ollama.NewDiagnosisGenerator(ollamaClient),
		},
		intakeOpts...,
	)

	app := &App{
		Config:    cfg,
		DB:        db,
		Catalog:   catalogUC,
		Intake:    intakeUC,
		Records:   usecase.NewRecordsUseCase(recordRepo),
		Extractor: extractor.New(),
	}

	if opts.WithQueue {
		queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: executor,
			ClientName:         "medical-intake-" + opts.Service,
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		app.Queue = queue
		app.Enqueuer = usecase.NewEnqueueIntakeUseCase(queue, intakeUC)
	}

	app.closeFn = func() {
		if app.Queue != nil {
			app.Queue.Close()
		}
		if err := db.Close(); err != nil {
			slog.Warn("close postgres", "error", err)
		}
	}
	return app, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func resilienceConfig(cfg config.Config) resilience.Config {
	return resilience.Config{
		RetryMaxAttempts:        cfg.RetryMaxAttempts,
		RetryInitialBackoff:     cfg.RetryInitialBackoff,
		RetryMaxBackoff:         cfg.RetryMaxBackoff,
		RetryMultiplier:         2,
		AttemptTimeout:          cfg.RetryAttemptTimeout,
		BreakerEnabled:          cfg.BreakerEnabled,
		BreakerMinRequests:      uint32(max(cfg.BreakerMinRequests, 0)),
		BreakerFailureRatio:     cfg.BreakerFailureRatio,
		BreakerOpenTimeout:      cfg.BreakerOpenTimeout,
		BreakerHalfOpenMaxCalls: uint32(max(cfg.BreakerHalfOpenMaxCalls, 0)),
	}
}
