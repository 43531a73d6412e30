package analysis

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/ridgelinehq/docpipe/internal/core/domain"
	"github.com/ridgelinehq/docpipe/internal/core/ports"
)

// llmScript answers the type prompt first, then the extraction prompt.
type llmScript struct {
	typeReply    string
	typeErr      error
	extractReply string
	extractErr   error
}

func (f *llmScript) Complete(_ context.Context, prompt string, _ ports.CompletionOptions) (string, error) {
	if strings.Contains(prompt, "Identify the tax document type") {
		return f.typeReply, f.typeErr
	}
	return f.extractReply, f.extractErr
}

type docsStub struct {
	statuses []domain.DocumentStatus
	saved    *domain.AnalysisResult
}

func (f *docsStub) Create(context.Context, *domain.Document) error { return nil }
func (f *docsStub) GetByID(context.Context, string) (*domain.Document, error) {
	return nil, domain.ErrDocumentNotFound
}
func (f *docsStub) UpdateStatus(_ context.Context, _ string, status domain.DocumentStatus, _ string) error {
	f.statuses = append(f.statuses, status)
	return nil
}
func (f *docsStub) SaveOCRResult(context.Context, string, *domain.OCRResult) error { return nil }
func (f *docsStub) SaveAnalysisResult(_ context.Context, _ string, result *domain.AnalysisResult) error {
	f.saved = result
	return nil
}
func (f *docsStub) SaveAutoFillResult(context.Context, string, *domain.AutoFillResult) error {
	return nil
}
func (f *docsStub) BeginProcessing(context.Context, string) error { return nil }

func wageOCR() *domain.OCRResult {
	return &domain.OCRResult{
		Text:       "W-2 Wage and Tax Statement",
		Confidence: 0.9,
		Fields: []domain.DetectedField{
			{Name: "ssn", Value: "123-45-6789", Type: "tax_id", Confidence: 0.85},
		},
	}
}

func TestAnalyzeWageDocumentEndToEnd(t *testing.T) {
	llm := &llmScript{
		typeReply:    "w2",
		extractReply: `{"employee_name":"Jane Doe","employee_ssn":"123-45-6789","employer_name":"Acme","employer_ein":"12-3456789","wages":60000,"federal_withheld":9000}`,
	}
	docs := &docsStub{}
	engine := NewEngine(llm, docs, nil)

	result, err := engine.Analyze(context.Background(), &domain.Document{ID: "doc-1"}, wageOCR())
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if result.DocumentType != domain.DocTypeW2 {
		t.Fatalf("expected w2, got %s", result.DocumentType)
	}
	if result.Degraded {
		t.Fatalf("expected non-degraded analysis, steps: %v", result.DegradedSteps)
	}

	var optimization *domain.Insight
	for i := range result.Insights {
		if result.Insights[i].Category == domain.InsightTaxOptimization {
			optimization = &result.Insights[i]
		}
	}
	if optimization == nil {
		t.Fatalf("expected tax_optimization insight for wages above 50000, got %v", result.Insights)
	}

	var found bool
	for _, rec := range result.Recommendations {
		if strings.Contains(rec, "Verify W-2 amounts") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a W-2 verification recommendation, got %v", result.Recommendations)
	}

	if result.Data.RawFields["ssn"] != "123-45-6789" {
		t.Fatalf("expected raw OCR field map attached, got %v", result.Data.RawFields)
	}
	if docs.saved == nil {
		t.Fatalf("expected analysis result persisted")
	}
	if len(docs.statuses) == 0 || docs.statuses[0] != domain.StatusAnalyzing {
		t.Fatalf("expected analyzing status write, got %v", docs.statuses)
	}
}

func TestAnalyzeUnconstrainedTypeReplyMapsToUnknown(t *testing.T) {
	llm := &llmScript{
		typeReply:    "definitely a W-2 form!",
		extractReply: `{}`,
	}
	engine := NewEngine(llm, &docsStub{}, nil)

	result, err := engine.Analyze(context.Background(), &domain.Document{ID: "doc-1"}, wageOCR())
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if result.DocumentType != domain.DocTypeUnknown {
		t.Fatalf("expected unknown for out-of-enum reply, got %s", result.DocumentType)
	}
	if !result.Degraded {
		t.Fatalf("expected degraded flag for unparseable type reply")
	}
}

func TestAnalyzeBadExtractionJSONDegradesToRawFields(t *testing.T) {
	llm := &llmScript{
		typeReply:    "w2",
		extractReply: "I could not find structured data, sorry.",
	}
	engine := NewEngine(llm, &docsStub{}, nil)

	result, err := engine.Analyze(context.Background(), &domain.Document{ID: "doc-1"}, wageOCR())
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if !result.Degraded {
		t.Fatalf("expected degraded analysis")
	}
	var hasStep bool
	for _, s := range result.DegradedSteps {
		if s == "extract_fields" {
			hasStep = true
		}
	}
	if !hasStep {
		t.Fatalf("expected extract_fields degraded step, got %v", result.DegradedSteps)
	}
	if result.Data.Wages != nil {
		t.Fatalf("degraded extraction must not invent values")
	}
	if result.Data.RawFields["ssn"] != "123-45-6789" {
		t.Fatalf("raw field map must survive degraded extraction")
	}
}

func TestAnalyzeLLMFailureStillSucceedsDegraded(t *testing.T) {
	llm := &llmScript{typeErr: errors.New("llm down"), extractErr: errors.New("llm down")}
	engine := NewEngine(llm, &docsStub{}, nil)

	result, err := engine.Analyze(context.Background(), &domain.Document{ID: "doc-1"}, wageOCR())
	if err != nil {
		t.Fatalf("Analyze() error = %v (degrade expected instead)", err)
	}
	if result.DocumentType != domain.DocTypeUnknown || !result.Degraded {
		t.Fatalf("expected unknown degraded result, got %+v", result)
	}
	if len(result.DegradedSteps) != 2 {
		t.Fatalf("expected both steps degraded, got %v", result.DegradedSteps)
	}
}

func TestAnalyzeMissingOCRFails(t *testing.T) {
	engine := NewEngine(&llmScript{}, &docsStub{}, nil)
	_, err := engine.Analyze(context.Background(), &domain.Document{ID: "doc-1"}, nil)
	if err == nil || !domain.IsKind(err, domain.ErrAnalysis) {
		t.Fatalf("expected ErrAnalysis, got %v", err)
	}
}

func TestBlendConfidenceFormula(t *testing.T) {
	validations := []domain.ValidationResult{
		{Valid: true, Confidence: 0.95},
		{Valid: false, Confidence: 0.9}, // contributes 0.45
	}
	// field mean = (0.95 + 0.45) / 2 = 0.7
	// combined = (0.8 + 0.7) / 2 = 0.75
	// overall = (0.8 + 0.75) / 2 = 0.775
	got := blendConfidence(0.8, validations)
	if math.Abs(got-0.775) > 1e-9 {
		t.Fatalf("expected 0.775, got %f", got)
	}
}

func TestBlendConfidenceWithoutValidations(t *testing.T) {
	if got := blendConfidence(0.8, nil); math.Abs(got-0.8) > 1e-9 {
		t.Fatalf("expected ocr confidence to pass through, got %f", got)
	}
}
