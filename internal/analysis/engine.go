package analysis

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/ridgelinehq/docpipe/internal/core/domain"
	"github.com/ridgelinehq/docpipe/internal/core/ports"
)

// Engine runs the semantic analysis chain over one OCR result: type
// identification, type-specific field extraction, format validation,
// insight and recommendation derivation, and confidence blending.
// Sub-step failures degrade to safe defaults and are recorded on the
// result rather than aborting the run.
type Engine struct {
	llm    ports.CompletionClient
	docs   ports.DocumentRepository
	logger *slog.Logger
}

func NewEngine(llm ports.CompletionClient, docs ports.DocumentRepository, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{llm: llm, docs: docs, logger: logger}
}

func (e *Engine) Analyze(ctx context.Context, doc *domain.Document, ocr *domain.OCRResult) (*domain.AnalysisResult, error) {
	if ocr == nil {
		return nil, domain.WrapError(domain.ErrAnalysis, "analyze document", errors.New("missing ocr result"))
	}

	if err := e.docs.UpdateStatus(ctx, doc.ID, domain.StatusAnalyzing, ""); err != nil {
		return nil, domain.WrapError(domain.ErrAnalysis, "update document status", err)
	}

	result := &domain.AnalysisResult{}

	docType, degraded := e.identifyType(ctx, ocr.Text)
	result.DocumentType = docType
	if degraded {
		result.Degraded = true
		result.DegradedSteps = append(result.DegradedSteps, "identify_type")
	}

	data, degraded := e.extractData(ctx, docType, ocr)
	result.Data = data
	if degraded {
		result.Degraded = true
		result.DegradedSteps = append(result.DegradedSteps, "extract_fields")
	}

	result.Validations = validateFields(result.Data)
	result.Insights = deriveInsights(docType, result.Data, result.Validations)
	result.Recommendations = deriveRecommendations(docType, result.Insights)
	result.Confidence = blendConfidence(ocr.Confidence, result.Validations)

	if err := e.docs.SaveAnalysisResult(ctx, doc.ID, result); err != nil {
		return nil, domain.WrapError(domain.ErrAnalysis, "persist analysis result", err)
	}

	e.logger.Info("analysis_completed",
		"document_id", doc.ID,
		"document_type", result.DocumentType,
		"confidence", result.Confidence,
		"validations", len(result.Validations),
		"insights", len(result.Insights),
		"degraded", result.Degraded,
	)
	return result, nil
}

// identifyType asks for a single constrained label; anything outside
// the enum, and any LLM failure, maps to Unknown.
func (e *Engine) identifyType(ctx context.Context, text string) (domain.DocumentType, bool) {
	reply, err := e.llm.Complete(ctx, buildTypePrompt(text), ports.CompletionOptions{
		Temperature: 0,
		MaxTokens:   20,
	})
	if err != nil {
		e.logger.Warn("type_identification_degraded", "error", err)
		return domain.DocTypeUnknown, true
	}

	label := strings.ToLower(strings.TrimSpace(reply))
	label = strings.Trim(label, `"'.`)
	if label == string(domain.DocTypeUnknown) {
		return domain.DocTypeUnknown, false
	}
	docType := domain.ParseDocumentType(label)
	if docType == domain.DocTypeUnknown {
		e.logger.Warn("type_identification_degraded", "reply", reply)
		return domain.DocTypeUnknown, true
	}
	return docType, false
}

// extractData always attaches the OCR-derived raw field map, whether
// or not the LLM reply parsed.
func (e *Engine) extractData(ctx context.Context, docType domain.DocumentType, ocr *domain.OCRResult) (domain.ExtractedData, bool) {
	raw := rawFieldMap(ocr)

	reply, err := e.llm.Complete(ctx, buildExtractionPrompt(docType, ocr.Text), ports.CompletionOptions{
		Temperature: 0.1,
		MaxTokens:   800,
		JSONMode:    true,
	})
	if err != nil {
		e.logger.Warn("field_extraction_degraded", "document_type", docType, "error", err)
		return domain.ExtractedData{RawFields: raw}, true
	}

	data, err := parseExtraction(reply)
	if err != nil {
		e.logger.Warn("field_extraction_degraded", "document_type", docType, "error", err)
		return domain.ExtractedData{RawFields: raw}, true
	}
	data.RawFields = raw
	return data, false
}

func rawFieldMap(ocr *domain.OCRResult) map[string]string {
	if len(ocr.Fields) == 0 {
		return nil
	}
	out := make(map[string]string, len(ocr.Fields))
	for _, f := range ocr.Fields {
		out[f.Name] = f.Value
	}
	return out
}

// blendConfidence averages OCR confidence with the mean per-field
// validation confidence (invalid fields contribute half), then
// averages the blend with OCR confidence once more.
func blendConfidence(ocrConfidence float64, validations []domain.ValidationResult) float64 {
	fieldConfidence := ocrConfidence
	if len(validations) > 0 {
		var sum float64
		for _, v := range validations {
			c := v.Confidence
			if !v.Valid {
				c /= 2
			}
			sum += c
		}
		fieldConfidence = sum / float64(len(validations))
	}

	combined := (ocrConfidence + fieldConfidence) / 2
	return (ocrConfidence + combined) / 2
}
