package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ridgelinehq/docpipe/internal/core/domain"
	"github.com/ridgelinehq/docpipe/internal/core/ports"
	"github.com/ridgelinehq/docpipe/internal/observability/metrics"
)

const defaultGroupSize = 3

// Stage confidence weights. Only stages that completed contribute; the
// weighted sum is renormalized over the weights of those stages.
const (
	weightOCR      = 0.4
	weightAnalysis = 0.4
	weightAutoFill = 0.2
)

const (
	progressStarted  = 5
	progressAnalysis = 40
	progressAutoFill = 75
)

type Config struct {
	Documents  ports.DocumentRepository
	Extractor  ports.TextExtractor
	Classifier ports.TypeClassifier
	Analyzer   ports.SemanticAnalyzer
	Resolver   ports.FormResolver
	Runs       ports.RunStateStore
	Log        ports.ProcessingLogStore
	Storage    ports.ObjectStorage
	Metrics    *metrics.PipelineMetrics
	Logger     *slog.Logger

	Service   string
	GroupSize int

	// StageTimeout bounds each stage's external calls. Zero disables
	// the per-stage deadline.
	StageTimeout time.Duration
}

// Orchestrator sequences ocr, analysis and autofill for one document
// and runs batches in bounded concurrent groups. It is the only
// component aware of all three stages.
type Orchestrator struct {
	docs       ports.DocumentRepository
	extractor  ports.TextExtractor
	classifier ports.TypeClassifier
	analyzer   ports.SemanticAnalyzer
	resolver   ports.FormResolver
	runs       ports.RunStateStore
	log        ports.ProcessingLogStore
	storage    ports.ObjectStorage
	metrics    *metrics.PipelineMetrics
	logger     *slog.Logger

	service      string
	groupSize    int
	stageTimeout time.Duration
	now          func() time.Time
}

func NewOrchestrator(cfg Config) *Orchestrator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.GroupSize <= 0 {
		cfg.GroupSize = defaultGroupSize
	}
	if cfg.Service == "" {
		cfg.Service = "pipeline"
	}
	return &Orchestrator{
		docs:         cfg.Documents,
		extractor:    cfg.Extractor,
		classifier:   cfg.Classifier,
		analyzer:     cfg.Analyzer,
		resolver:     cfg.Resolver,
		runs:         cfg.Runs,
		log:          cfg.Log,
		storage:      cfg.Storage,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
		service:      cfg.Service,
		groupSize:    cfg.GroupSize,
		stageTimeout: cfg.StageTimeout,
		now:          time.Now,
	}
}

func (o *Orchestrator) ProcessDocument(ctx context.Context, documentID string, data []byte, mimeType string, opts domain.RunOptions) (*domain.ProcessingResult, error) {
	doc, err := o.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrPipeline, "process document", err)
	}
	if mimeType != "" {
		doc.MimeType = mimeType
	}
	if opts.ClientID == "" {
		opts.ClientID = doc.ClientID
	}

	if err := o.docs.BeginProcessing(ctx, documentID); err != nil {
		return nil, domain.WrapError(domain.ErrPipeline, "process document", err)
	}

	started := o.now().UTC()
	o.metrics.StartDocument()
	o.putRunState(ctx, domain.RunState{
		DocumentID: documentID,
		Phase:      domain.RunRunning,
		Stage:      domain.StageOCR,
		Progress:   progressStarted,
		Message:    "processing started",
		StartedAt:  started,
		UpdatedAt:  started,
	})

	result := &domain.ProcessingResult{DocumentID: documentID, StartedAt: started}

	ocr := o.runOCR(ctx, doc, data, opts, result)
	ocrFailed := !opts.SkipOCR && ocr == nil

	o.advance(ctx, documentID, started, domain.StageAnalysis, progressAnalysis)
	analysis := o.runAnalysis(ctx, doc, ocr, opts, result)

	o.advance(ctx, documentID, started, domain.StageAutoFill, progressAutoFill)
	o.runAutoFill(ctx, doc, analysis, ocrFailed, opts, result)

	o.finish(ctx, doc, result, started, ocr != nil, analysis != nil)
	return result, nil
}

func (o *Orchestrator) runOCR(ctx context.Context, doc *domain.Document, data []byte, opts domain.RunOptions, result *domain.ProcessingResult) *domain.OCRResult {
	if opts.SkipOCR {
		o.recordStage(ctx, result, doc.ID, domain.StageOCR, domain.StageSkipped, 0, 0, "skipped by option", "")
		return nil
	}

	stageCtx, cancel := o.stageContext(ctx)
	defer cancel()

	start := o.now()
	ocr, err := o.extractor.Extract(stageCtx, doc, data)
	duration := o.now().Sub(start)
	if err != nil {
		result.Errors = append(result.Errors, domain.ProcessingError{
			Stage:     domain.StageOCR,
			Message:   err.Error(),
			Severity:  domain.SeverityCritical,
			Timestamp: o.now().UTC(),
		})
		o.recordStage(ctx, result, doc.ID, domain.StageOCR, domain.StageFailed, 0, duration, "text extraction failed", err.Error())
		return nil
	}

	o.recordStage(ctx, result, doc.ID, domain.StageOCR, domain.StageCompleted, ocr.Confidence, duration,
		fmt.Sprintf("extracted %d characters", len(ocr.Text)), "")
	o.classify(stageCtx, result, ocr)
	return ocr
}

// classify is a best-effort pass; the pipeline's outcome never depends
// on it.
func (o *Orchestrator) classify(ctx context.Context, result *domain.ProcessingResult, ocr *domain.OCRResult) {
	if o.classifier == nil {
		return
	}
	classification, err := o.classifier.Classify(ctx, ocr.Text)
	if err != nil {
		o.logger.Warn("classification_failed", "document_id", result.DocumentID, "error", err)
		return
	}
	result.Classification = classification
}

func (o *Orchestrator) runAnalysis(ctx context.Context, doc *domain.Document, ocr *domain.OCRResult, opts domain.RunOptions, result *domain.ProcessingResult) *domain.AnalysisResult {
	switch {
	case opts.SkipAnalysis:
		o.recordStage(ctx, result, doc.ID, domain.StageAnalysis, domain.StageSkipped, 0, 0, "skipped by option", "")
		return nil
	case ocr == nil:
		o.recordStage(ctx, result, doc.ID, domain.StageAnalysis, domain.StageSkipped, 0, 0, "no ocr result to analyze", "")
		return nil
	case o.runCancelled(ctx, doc.ID):
		o.recordStage(ctx, result, doc.ID, domain.StageAnalysis, domain.StageSkipped, 0, 0, "run cancelled", "")
		return nil
	}

	stageCtx, cancel := o.stageContext(ctx)
	defer cancel()

	start := o.now()
	analysis, err := o.analyzer.Analyze(stageCtx, doc, ocr)
	duration := o.now().Sub(start)
	if err != nil {
		result.Errors = append(result.Errors, domain.ProcessingError{
			Stage:     domain.StageAnalysis,
			Message:   err.Error(),
			Severity:  domain.SeverityHigh,
			Timestamp: o.now().UTC(),
		})
		o.recordStage(ctx, result, doc.ID, domain.StageAnalysis, domain.StageFailed, 0, duration, "semantic analysis failed", err.Error())
		return nil
	}

	detail := fmt.Sprintf("identified %s", analysis.DocumentType)
	if analysis.Degraded {
		detail = fmt.Sprintf("identified %s (degraded: %s)", analysis.DocumentType, strings.Join(analysis.DegradedSteps, ", "))
	}
	o.recordStage(ctx, result, doc.ID, domain.StageAnalysis, domain.StageCompleted, analysis.Confidence, duration, detail, "")
	return analysis
}

func (o *Orchestrator) runAutoFill(ctx context.Context, doc *domain.Document, analysis *domain.AnalysisResult, ocrFailed bool, opts domain.RunOptions, result *domain.ProcessingResult) {
	switch {
	case opts.SkipAutoFill:
		o.recordStage(ctx, result, doc.ID, domain.StageAutoFill, domain.StageSkipped, 0, 0, "skipped by option", "")
		return
	case ocrFailed:
		o.recordStage(ctx, result, doc.ID, domain.StageAutoFill, domain.StageSkipped, 0, 0, "no ocr result", "")
		return
	case o.runCancelled(ctx, doc.ID):
		o.recordStage(ctx, result, doc.ID, domain.StageAutoFill, domain.StageSkipped, 0, 0, "run cancelled", "")
		return
	case analysis == nil:
		result.Errors = append(result.Errors, domain.ProcessingError{
			Stage:     domain.StageAutoFill,
			Message:   "no analysis result available for form fill",
			Severity:  domain.SeverityHigh,
			Timestamp: o.now().UTC(),
		})
		o.recordStage(ctx, result, doc.ID, domain.StageAutoFill, domain.StageSkipped, 0, 0, "no analysis result", "")
		return
	case opts.ClientID == "":
		result.Errors = append(result.Errors, domain.ProcessingError{
			Stage:     domain.StageAutoFill,
			Message:   "document has no client id",
			Severity:  domain.SeverityMedium,
			Timestamp: o.now().UTC(),
		})
		o.recordStage(ctx, result, doc.ID, domain.StageAutoFill, domain.StageSkipped, 0, 0, "no client id", "")
		return
	}

	stageCtx, cancel := o.stageContext(ctx)
	defer cancel()

	start := o.now()
	fill, err := o.resolver.Fill(stageCtx, opts.ClientID, doc.ID, analysis, opts.TaxYear)
	duration := o.now().Sub(start)
	if err != nil {
		result.Errors = append(result.Errors, domain.ProcessingError{
			Stage:     domain.StageAutoFill,
			Message:   err.Error(),
			Severity:  domain.SeverityHigh,
			Timestamp: o.now().UTC(),
		})
		o.recordStage(ctx, result, doc.ID, domain.StageAutoFill, domain.StageFailed, 0, duration, "form fill failed", err.Error())
		return
	}

	if err := o.docs.SaveAutoFillResult(ctx, doc.ID, fill); err != nil {
		o.logger.Warn("autofill_result_save_failed", "document_id", doc.ID, "error", err)
	}
	o.metrics.AddConflicts(o.service, len(fill.Conflicts))
	o.recordStage(ctx, result, doc.ID, domain.StageAutoFill, domain.StageCompleted, fill.Confidence, duration, fill.Summary, "")
}

func (o *Orchestrator) finish(ctx context.Context, doc *domain.Document, result *domain.ProcessingResult, started time.Time, ocrPresent, analysisPresent bool) {
	result.Status = outcome(result.Errors, ocrPresent, analysisPresent)
	result.Confidence = weightedConfidence(result.Stages)
	result.Summary = summarize(result.Status, result.Stages)
	result.FinishedAt = o.now().UTC()

	docStatus := domain.StatusCompleted
	if result.Status == domain.OutcomeFailed {
		docStatus = domain.StatusFailed
	}
	if err := o.docs.UpdateStatus(ctx, doc.ID, docStatus, result.Summary); err != nil {
		o.logger.Warn("document_status_update_failed", "document_id", doc.ID, "error", err)
	}

	if !o.runCancelled(ctx, doc.ID) {
		phase := domain.RunCompleted
		if result.Status == domain.OutcomeFailed {
			phase = domain.RunFailed
		}
		o.putRunState(ctx, domain.RunState{
			DocumentID: doc.ID,
			Phase:      phase,
			Progress:   100,
			Message:    result.Summary,
			StartedAt:  started,
			UpdatedAt:  result.FinishedAt,
		})
	}

	o.metrics.FinishDocument(o.service, result.Status, result.FinishedAt.Sub(result.StartedAt))
	o.logger.Info("document_processed",
		"document_id", doc.ID,
		"status", result.Status,
		"confidence", result.Confidence,
		"errors", len(result.Errors),
	)
}

// outcome determines the run's overall status. A critical error always
// fails the run; success requires both ocr and analysis output.
func outcome(errs []domain.ProcessingError, ocrPresent, analysisPresent bool) domain.OverallStatus {
	hasCritical := false
	for _, e := range errs {
		if e.Severity == domain.SeverityCritical {
			hasCritical = true
			break
		}
	}
	switch {
	case hasCritical:
		return domain.OutcomeFailed
	case len(errs) > 0:
		return domain.OutcomePartial
	case ocrPresent && analysisPresent:
		return domain.OutcomeSuccess
	default:
		return domain.OutcomePartial
	}
}

func weightedConfidence(stages []domain.StageResult) float64 {
	var sum, weights float64
	for _, s := range stages {
		if s.State != domain.StageCompleted {
			continue
		}
		w := stageWeight(s.Stage)
		sum += s.Confidence * w
		weights += w
	}
	if weights == 0 {
		return 0
	}
	return sum / weights
}

func stageWeight(stage domain.Stage) float64 {
	switch stage {
	case domain.StageOCR:
		return weightOCR
	case domain.StageAnalysis:
		return weightAnalysis
	case domain.StageAutoFill:
		return weightAutoFill
	default:
		return 0
	}
}

func summarize(status domain.OverallStatus, stages []domain.StageResult) string {
	parts := make([]string, 0, len(stages))
	for _, s := range stages {
		switch {
		case s.State == domain.StageCompleted:
			parts = append(parts, fmt.Sprintf("%s %s (confidence %.2f)", s.Stage, s.State, s.Confidence))
		case s.Detail != "":
			parts = append(parts, fmt.Sprintf("%s %s (%s)", s.Stage, s.State, s.Detail))
		default:
			parts = append(parts, fmt.Sprintf("%s %s", s.Stage, s.State))
		}
	}
	return fmt.Sprintf("%s: %s", status, strings.Join(parts, "; "))
}

func (o *Orchestrator) recordStage(ctx context.Context, result *domain.ProcessingResult, documentID string, stage domain.Stage, state domain.StageState, confidence float64, duration time.Duration, detail, errMsg string) {
	result.Stages = append(result.Stages, domain.StageResult{
		Stage:      stage,
		State:      state,
		Confidence: confidence,
		Duration:   duration,
		Detail:     detail,
	})
	o.metrics.ObserveStage(o.service, stage, state, duration)

	if o.log == nil {
		return
	}
	entry := domain.ProcessingLogEntry{
		DocumentID: documentID,
		Stage:      stage,
		Status:     state,
		Confidence: confidence,
		Duration:   duration,
		Error:      errMsg,
		CreatedAt:  o.now().UTC(),
	}
	if err := o.log.Append(ctx, entry); err != nil {
		o.logger.Warn("processing_log_append_failed", "document_id", documentID, "stage", stage, "error", err)
	}
}

// advance writes the running checkpoint unless the run was cancelled
// in the meantime; the cancelled phase must not be clobbered.
func (o *Orchestrator) advance(ctx context.Context, documentID string, started time.Time, stage domain.Stage, progress int) {
	if o.runCancelled(ctx, documentID) {
		return
	}
	o.putRunState(ctx, domain.RunState{
		DocumentID: documentID,
		Phase:      domain.RunRunning,
		Stage:      stage,
		Progress:   progress,
		StartedAt:  started,
		UpdatedAt:  o.now().UTC(),
	})
}

func (o *Orchestrator) putRunState(ctx context.Context, state domain.RunState) {
	if o.runs == nil {
		return
	}
	if err := o.runs.Put(ctx, state); err != nil {
		o.logger.Warn("run_state_put_failed", "document_id", state.DocumentID, "error", err)
	}
}

func (o *Orchestrator) runCancelled(ctx context.Context, documentID string) bool {
	if o.runs == nil {
		return false
	}
	state, err := o.runs.Get(ctx, documentID)
	if err != nil || state == nil {
		return false
	}
	return state.Phase == domain.RunCancelled
}

func (o *Orchestrator) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.stageTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, o.stageTimeout)
}
