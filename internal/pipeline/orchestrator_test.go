package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/ridgelinehq/docpipe/internal/core/domain"
)

type docsFake struct {
	mu       sync.Mutex
	docs     map[string]*domain.Document
	beginErr error
	statuses map[string]domain.DocumentStatus
	messages map[string]string
	fills    map[string]*domain.AutoFillResult
}

func newDocsFake(docs ...*domain.Document) *docsFake {
	f := &docsFake{
		docs:     make(map[string]*domain.Document),
		statuses: make(map[string]domain.DocumentStatus),
		messages: make(map[string]string),
		fills:    make(map[string]*domain.AutoFillResult),
	}
	for _, d := range docs {
		f.docs[d.ID] = d
	}
	return f
}

func (f *docsFake) Create(_ context.Context, doc *domain.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[doc.ID] = doc
	return nil
}

func (f *docsFake) GetByID(_ context.Context, id string) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	copied := *doc
	return &copied, nil
}

func (f *docsFake) UpdateStatus(_ context.Context, id string, status domain.DocumentStatus, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = status
	f.messages[id] = message
	return nil
}

func (f *docsFake) SaveOCRResult(_ context.Context, id string, _ *domain.OCRResult) error {
	return nil
}

func (f *docsFake) SaveAnalysisResult(_ context.Context, id string, _ *domain.AnalysisResult) error {
	return nil
}

func (f *docsFake) SaveAutoFillResult(_ context.Context, id string, result *domain.AutoFillResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fills[id] = result
	return nil
}

func (f *docsFake) BeginProcessing(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.beginErr != nil {
		return f.beginErr
	}
	if _, ok := f.docs[id]; !ok {
		return domain.ErrDocumentNotFound
	}
	f.statuses[id] = domain.StatusProcessing
	return nil
}

func (f *docsFake) status(id string) domain.DocumentStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statuses[id]
}

type extractorFake struct {
	mu          sync.Mutex
	err         error
	failFor     map[string]bool
	result      *domain.OCRResult
	delay       time.Duration
	inFlight    int
	maxInFlight int
}

func (f *extractorFake) Extract(_ context.Context, doc *domain.Document, _ []byte) (*domain.OCRResult, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.failFor[doc.ID] {
		return nil, domain.WrapError(domain.ErrExtraction, "recognize document", errors.New("provider rejected input"))
	}
	if f.result != nil {
		return f.result, nil
	}
	return &domain.OCRResult{Text: "Wage and Tax Statement", Confidence: 0.9}, nil
}

type classifierFake struct{ err error }

func (f *classifierFake) Classify(_ context.Context, _ string) (*domain.Classification, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Classification{Type: domain.DocTypeW2, Confidence: 0.9}, nil
}

type analyzerFake struct {
	mu     sync.Mutex
	err    error
	result *domain.AnalysisResult
	fn     func(ctx context.Context, doc *domain.Document, ocr *domain.OCRResult) (*domain.AnalysisResult, error)
	calls  int
}

func (f *analyzerFake) Analyze(ctx context.Context, doc *domain.Document, ocr *domain.OCRResult) (*domain.AnalysisResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(ctx, doc, ocr)
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &domain.AnalysisResult{DocumentType: domain.DocTypeW2, Confidence: 0.8}, nil
}

type fillCall struct {
	clientID   string
	documentID string
	taxYear    int
}

type resolverFake struct {
	mu     sync.Mutex
	err    error
	result *domain.AutoFillResult
	calls  []fillCall
}

func (f *resolverFake) Fill(_ context.Context, clientID, documentID string, _ *domain.AnalysisResult, taxYear int) (*domain.AutoFillResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fillCall{clientID: clientID, documentID: documentID, taxYear: taxYear})
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &domain.AutoFillResult{Confidence: 0.7, Summary: "1 fields added, 0 updated across 1 forms"}, nil
}

type runsFake struct {
	mu     sync.Mutex
	states map[string]domain.RunState
}

func newRunsFake() *runsFake {
	return &runsFake{states: make(map[string]domain.RunState)}
}

func (f *runsFake) Put(_ context.Context, state domain.RunState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[state.DocumentID] = state
	return nil
}

func (f *runsFake) Get(_ context.Context, documentID string) (*domain.RunState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	state, ok := f.states[documentID]
	if !ok {
		return nil, nil
	}
	copied := state
	return &copied, nil
}

func (f *runsFake) MarkCancelled(_ context.Context, documentID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	state, ok := f.states[documentID]
	if !ok {
		return false, nil
	}
	if state.Phase != domain.RunQueued && state.Phase != domain.RunRunning {
		return false, nil
	}
	state.Phase = domain.RunCancelled
	f.states[documentID] = state
	return true, nil
}

type logFake struct {
	mu      sync.Mutex
	entries []domain.ProcessingLogEntry
}

func (f *logFake) Append(_ context.Context, entry domain.ProcessingLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return nil
}

type storageFake struct {
	mu      sync.Mutex
	objects map[string][]byte
	opened  []string
}

func newStorageFake() *storageFake {
	return &storageFake{objects: make(map[string][]byte)}
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	content, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = content
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	content, ok := f.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	f.opened = append(f.opened, key)
	return io.NopCloser(bytes.NewReader(content)), nil
}

type fixture struct {
	docs       *docsFake
	extractor  *extractorFake
	classifier *classifierFake
	analyzer   *analyzerFake
	resolver   *resolverFake
	runs       *runsFake
	log        *logFake
	storage    *storageFake
}

func testOrchestrator(docs ...*domain.Document) (*Orchestrator, *fixture) {
	fx := &fixture{
		docs:       newDocsFake(docs...),
		extractor:  &extractorFake{},
		classifier: &classifierFake{},
		analyzer:   &analyzerFake{},
		resolver:   &resolverFake{},
		runs:       newRunsFake(),
		log:        &logFake{},
		storage:    newStorageFake(),
	}
	o := NewOrchestrator(Config{
		Documents:  fx.docs,
		Extractor:  fx.extractor,
		Classifier: fx.classifier,
		Analyzer:   fx.analyzer,
		Resolver:   fx.resolver,
		Runs:       fx.runs,
		Log:        fx.log,
		Storage:    fx.storage,
	})
	return o, fx
}

func testDoc(id string) *domain.Document {
	return &domain.Document{
		ID:          id,
		ClientID:    "client-1",
		Filename:    id + ".pdf",
		MimeType:    "application/pdf",
		StoragePath: "documents/" + id,
		Status:      domain.StatusPending,
	}
}

func stageByName(t *testing.T, result *domain.ProcessingResult, stage domain.Stage) domain.StageResult {
	t.Helper()
	for _, s := range result.Stages {
		if s.Stage == stage {
			return s
		}
	}
	t.Fatalf("stage %s not present in result", stage)
	return domain.StageResult{}
}

func TestProcessDocumentFullRun(t *testing.T) {
	o, fx := testOrchestrator(testDoc("doc-1"))

	result, err := o.ProcessDocument(context.Background(), "doc-1", []byte("raw"), "application/pdf", domain.RunOptions{TaxYear: 2025})
	if err != nil {
		t.Fatalf("ProcessDocument() error = %v", err)
	}
	if result.Status != domain.OutcomeSuccess {
		t.Fatalf("expected success, got %s (%s)", result.Status, result.Summary)
	}
	for _, stage := range []domain.Stage{domain.StageOCR, domain.StageAnalysis, domain.StageAutoFill} {
		if s := stageByName(t, result, stage); s.State != domain.StageCompleted {
			t.Fatalf("stage %s: expected completed, got %s", stage, s.State)
		}
	}

	// 0.4*0.9 + 0.4*0.8 + 0.2*0.7 over full weight.
	if diff := result.Confidence - 0.82; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected weighted confidence 0.82, got %v", result.Confidence)
	}
	if result.Classification == nil || result.Classification.Type != domain.DocTypeW2 {
		t.Fatalf("expected best-effort classification on the result")
	}
	if fx.docs.status("doc-1") != domain.StatusCompleted {
		t.Fatalf("expected document completed, got %s", fx.docs.status("doc-1"))
	}
	if fx.docs.fills["doc-1"] == nil {
		t.Fatalf("expected autofill result persisted")
	}
	if len(fx.resolver.calls) != 1 || fx.resolver.calls[0].clientID != "client-1" || fx.resolver.calls[0].taxYear != 2025 {
		t.Fatalf("unexpected resolver calls: %+v", fx.resolver.calls)
	}
	if len(fx.log.entries) != 3 {
		t.Fatalf("expected one log entry per stage, got %d", len(fx.log.entries))
	}

	state, _ := fx.runs.Get(context.Background(), "doc-1")
	if state == nil || state.Phase != domain.RunCompleted || state.Progress != 100 {
		t.Fatalf("expected completed run state at 100%%, got %+v", state)
	}
}

func TestProcessDocumentOCRFailureIsCritical(t *testing.T) {
	o, fx := testOrchestrator(testDoc("doc-1"))
	fx.extractor.err = domain.WrapError(domain.ErrExtraction, "recognize document", errors.New("provider down"))

	result, err := o.ProcessDocument(context.Background(), "doc-1", []byte("raw"), "application/pdf", domain.RunOptions{})
	if err != nil {
		t.Fatalf("stage failure must not surface as an error: %v", err)
	}
	if result.Status != domain.OutcomeFailed {
		t.Fatalf("critical error must fail the run, got %s", result.Status)
	}
	if len(result.Errors) != 1 || result.Errors[0].Severity != domain.SeverityCritical || result.Errors[0].Stage != domain.StageOCR {
		t.Fatalf("expected a single critical ocr error, got %+v", result.Errors)
	}
	if s := stageByName(t, result, domain.StageAnalysis); s.State != domain.StageSkipped {
		t.Fatalf("analysis must be skipped for missing input, got %s", s.State)
	}
	if s := stageByName(t, result, domain.StageAutoFill); s.State != domain.StageSkipped {
		t.Fatalf("autofill must be skipped for missing input, got %s", s.State)
	}
	if fx.analyzer.calls != 0 || len(fx.resolver.calls) != 0 {
		t.Fatalf("downstream stages must not run after ocr failure")
	}
	if fx.docs.status("doc-1") != domain.StatusFailed {
		t.Fatalf("expected document failed, got %s", fx.docs.status("doc-1"))
	}

	state, _ := fx.runs.Get(context.Background(), "doc-1")
	if state == nil || state.Phase != domain.RunFailed {
		t.Fatalf("expected failed run state, got %+v", state)
	}
}

func TestProcessDocumentAnalysisFailureIsPartial(t *testing.T) {
	o, fx := testOrchestrator(testDoc("doc-1"))
	fx.analyzer.err = domain.WrapError(domain.ErrAnalysis, "analyze document", errors.New("llm timeout"))

	result, err := o.ProcessDocument(context.Background(), "doc-1", []byte("raw"), "application/pdf", domain.RunOptions{})
	if err != nil {
		t.Fatalf("ProcessDocument() error = %v", err)
	}
	if result.Status != domain.OutcomePartial {
		t.Fatalf("analysis failure must yield partial, got %s", result.Status)
	}

	var analysisErr *domain.ProcessingError
	for i := range result.Errors {
		if result.Errors[i].Stage == domain.StageAnalysis {
			analysisErr = &result.Errors[i]
		}
	}
	if analysisErr == nil || analysisErr.Severity != domain.SeverityHigh {
		t.Fatalf("expected high-severity analysis error, got %+v", result.Errors)
	}

	// Partial outcomes stay user-visible as completed documents.
	if fx.docs.status("doc-1") != domain.StatusCompleted {
		t.Fatalf("expected document completed, got %s", fx.docs.status("doc-1"))
	}
	if s := stageByName(t, result, domain.StageAutoFill); s.State != domain.StageSkipped {
		t.Fatalf("autofill must be skipped without analysis, got %s", s.State)
	}
}

func TestProcessDocumentMissingClientIDSkipsAutoFill(t *testing.T) {
	doc := testDoc("doc-1")
	doc.ClientID = ""
	o, fx := testOrchestrator(doc)

	result, err := o.ProcessDocument(context.Background(), "doc-1", []byte("raw"), "application/pdf", domain.RunOptions{})
	if err != nil {
		t.Fatalf("ProcessDocument() error = %v", err)
	}
	if result.Status != domain.OutcomePartial {
		t.Fatalf("expected partial, got %s", result.Status)
	}
	if len(result.Errors) != 1 || result.Errors[0].Severity != domain.SeverityMedium {
		t.Fatalf("missing client id is a medium error, got %+v", result.Errors)
	}
	if len(fx.resolver.calls) != 0 {
		t.Fatalf("resolver must not run without a client id")
	}
}

func TestProcessDocumentSkippedStagesCarryNoWeight(t *testing.T) {
	o, _ := testOrchestrator(testDoc("doc-1"))

	result, err := o.ProcessDocument(context.Background(), "doc-1", []byte("raw"), "application/pdf", domain.RunOptions{SkipAutoFill: true})
	if err != nil {
		t.Fatalf("ProcessDocument() error = %v", err)
	}
	if result.Status != domain.OutcomeSuccess {
		t.Fatalf("expected success, got %s", result.Status)
	}

	// (0.4*0.9 + 0.4*0.8) / 0.8 with the autofill weight excluded.
	if diff := result.Confidence - 0.85; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected confidence 0.85 over ran stages, got %v", result.Confidence)
	}
}

func TestProcessDocumentAdmissionGuard(t *testing.T) {
	o, fx := testOrchestrator(testDoc("doc-1"))
	fx.docs.beginErr = domain.ErrAlreadyProcessing

	_, err := o.ProcessDocument(context.Background(), "doc-1", []byte("raw"), "application/pdf", domain.RunOptions{})
	if err == nil || !domain.IsKind(err, domain.ErrAlreadyProcessing) {
		t.Fatalf("expected ErrAlreadyProcessing, got %v", err)
	}
	if fx.extractor.maxInFlight != 0 {
		t.Fatalf("no stage may run when admission fails")
	}
}

func TestProcessDocumentCancellationSkipsRemainingStages(t *testing.T) {
	o, fx := testOrchestrator(testDoc("doc-1"))
	fx.analyzer.fn = func(ctx context.Context, doc *domain.Document, ocr *domain.OCRResult) (*domain.AnalysisResult, error) {
		// Cancellation arrives while analysis is in flight.
		if _, err := fx.runs.MarkCancelled(ctx, doc.ID); err != nil {
			t.Fatalf("MarkCancelled() error = %v", err)
		}
		return &domain.AnalysisResult{DocumentType: domain.DocTypeW2, Confidence: 0.8}, nil
	}

	result, err := o.ProcessDocument(context.Background(), "doc-1", []byte("raw"), "application/pdf", domain.RunOptions{})
	if err != nil {
		t.Fatalf("ProcessDocument() error = %v", err)
	}
	if s := stageByName(t, result, domain.StageAutoFill); s.State != domain.StageSkipped {
		t.Fatalf("autofill must observe the cancelled run, got %s", s.State)
	}
	if len(fx.resolver.calls) != 0 {
		t.Fatalf("resolver must not run after cancellation")
	}

	state, _ := fx.runs.Get(context.Background(), "doc-1")
	if state == nil || state.Phase != domain.RunCancelled {
		t.Fatalf("cancelled phase must survive run completion, got %+v", state)
	}
}
