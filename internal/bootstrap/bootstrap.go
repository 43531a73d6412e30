package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ridgelinehq/docpipe/internal/analysis"
	"github.com/ridgelinehq/docpipe/internal/autofill"
	"github.com/ridgelinehq/docpipe/internal/classify"
	"github.com/ridgelinehq/docpipe/internal/config"
	"github.com/ridgelinehq/docpipe/internal/core/ports"
	"github.com/ridgelinehq/docpipe/internal/core/usecase"
	"github.com/ridgelinehq/docpipe/internal/extraction"
	"github.com/ridgelinehq/docpipe/internal/infrastructure/llm/ollama"
	"github.com/ridgelinehq/docpipe/internal/infrastructure/ocr/visionapi"
	"github.com/ridgelinehq/docpipe/internal/infrastructure/queue/nats"
	"github.com/ridgelinehq/docpipe/internal/infrastructure/repository/postgres"
	"github.com/ridgelinehq/docpipe/internal/infrastructure/resilience"
	"github.com/ridgelinehq/docpipe/internal/infrastructure/storage/localfs"
	"github.com/ridgelinehq/docpipe/internal/observability/logging"
	"github.com/ridgelinehq/docpipe/internal/observability/metrics"
	"github.com/ridgelinehq/docpipe/internal/pipeline"
)

// App wires the full dependency graph once and exposes the ports the
// api and worker binaries consume.
type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue   ports.MessageQueue
	Repo    ports.DocumentRepository
	Storage ports.ObjectStorage

	IngestUC   ports.DocumentIngestor
	Pipeline   ports.PipelineService
	FormReader ports.FormReader

	HTTPMetrics     *metrics.HTTPServerMetrics
	PipelineMetrics *metrics.PipelineMetrics

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, service string) (*App, error) {
	logger := logging.NewJSONLogger(service, cfg.LogLevel)
	slog.SetDefault(logger)

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	docRepo := postgres.NewDocumentRepository(db)
	formRepo := postgres.NewFormRepository(db)
	logStore := postgres.NewProcessingLogStore(db)
	runStore := postgres.NewRunStateStore(db)
	for _, ensure := range []func(context.Context) error{
		docRepo.EnsureSchema, formRepo.EnsureSchema, logStore.EnsureSchema, runStore.EnsureSchema,
	} {
		if err := ensure(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ocrClient := visionapi.New(cfg.OCRBaseURL, cfg.OCRAPIKey, cfg.OCRFormAPIKey, executor, cfg.OCRRateRPS, cfg.OCRRateBurst)
	llmClient := ollama.New(cfg.OllamaURL, cfg.OllamaModel, executor)

	extractor := extraction.New(ocrClient, docRepo, logger)
	classifier, err := classify.New(llmClient, logger)
	if err != nil {
		queue.Close()
		_ = db.Close()
		return nil, fmt.Errorf("init classifier: %w", err)
	}
	analyzer := analysis.NewEngine(llmClient, docRepo, logger)
	resolver := autofill.NewResolver(formRepo, logger)

	pipelineMetrics := metrics.NewPipelineMetrics(service)
	orchestrator := pipeline.NewOrchestrator(pipeline.Config{
		Documents:    docRepo,
		Extractor:    extractor,
		Classifier:   classifier,
		Analyzer:     analyzer,
		Resolver:     resolver,
		Runs:         runStore,
		Log:          logStore,
		Storage:      storage,
		Metrics:      pipelineMetrics,
		Logger:       logger,
		Service:      service,
		GroupSize:    cfg.BatchGroupSize,
		StageTimeout: cfg.StageTimeout,
	})

	ingestUC := usecase.NewIngestDocumentUseCase(docRepo, storage, queue)

	return &App{
		Config: cfg,
		Logger: logger,

		Queue:   queue,
		Repo:    docRepo,
		Storage: storage,

		IngestUC:   ingestUC,
		Pipeline:   orchestrator,
		FormReader: formRepo,

		HTTPMetrics:     metrics.NewHTTPServerMetrics(service),
		PipelineMetrics: pipelineMetrics,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
