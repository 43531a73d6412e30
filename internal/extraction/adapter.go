package extraction

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/ridgelinehq/docpipe/internal/core/domain"
	"github.com/ridgelinehq/docpipe/internal/core/ports"
)

const defaultConfidence = 0.9

// Adapter wraps the external OCR provider and normalizes its output
// into the pipeline's OCR result shape. Spreadsheets are handled
// locally without a provider round trip; everything else goes through
// the structured path when the document looks form-like, falling back
// to the general path when the structured endpoint is unavailable.
type Adapter struct {
	provider ports.OCRProvider
	docs     ports.DocumentRepository
	logger   *slog.Logger
}

func New(provider ports.OCRProvider, docs ports.DocumentRepository, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{provider: provider, docs: docs, logger: logger}
}

func (a *Adapter) Extract(ctx context.Context, doc *domain.Document, data []byte) (*domain.OCRResult, error) {
	start := time.Now()

	raw, err := a.recognize(ctx, doc.MimeType, data)
	if err != nil {
		msg := err.Error()
		if updateErr := a.docs.UpdateStatus(ctx, doc.ID, domain.StatusFailed, msg); updateErr != nil {
			a.logger.Error("mark document failed", "document_id", doc.ID, "error", updateErr)
		}
		return nil, domain.WrapError(domain.ErrExtraction, "recognize document", err)
	}

	result := a.normalize(raw, data, doc.MimeType)
	result.Metadata.Duration = time.Since(start)

	if err := a.docs.SaveOCRResult(ctx, doc.ID, result); err != nil {
		return nil, domain.WrapError(domain.ErrExtraction, "persist ocr result", err)
	}
	if err := a.docs.UpdateStatus(ctx, doc.ID, domain.StatusOCRCompleted, ""); err != nil {
		return nil, domain.WrapError(domain.ErrExtraction, "update document status", err)
	}

	a.logger.Info("ocr_completed",
		"document_id", doc.ID,
		"provider", result.Metadata.Provider,
		"pages", result.Metadata.PageCount,
		"blocks", len(result.Blocks),
		"tables", len(result.Tables),
		"fields", len(result.Fields),
		"confidence", result.Confidence,
	)
	return result, nil
}

func (a *Adapter) recognize(ctx context.Context, mimeType string, data []byte) (*domain.RawRecognition, error) {
	if isSpreadsheetMime(mimeType) {
		return extractSpreadsheet(data)
	}

	if isFormLikeMime(mimeType) {
		raw, err := a.provider.RecognizeForm(ctx, data, mimeType)
		if err == nil {
			return raw, nil
		}
		if !domain.IsKind(err, domain.ErrStructuredOCRUnavailable) {
			return nil, err
		}
		a.logger.Warn("structured_ocr_unavailable", "mime_type", mimeType)
	}

	raw, err := a.provider.RecognizeText(ctx, data, mimeType)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (a *Adapter) normalize(raw *domain.RawRecognition, data []byte, mimeType string) *domain.OCRResult {
	result := &domain.OCRResult{
		Text:       raw.Text,
		Confidence: blendConfidence(raw.TokenConfidences),
		Blocks:     sanitizeBlocks(raw.Blocks),
		Metadata: domain.OCRMetadata{
			PageCount: raw.PageCount,
			Language:  raw.Language,
			Provider:  raw.Provider,
		},
	}

	if mimeType == "application/pdf" {
		enrichFromPDF(result, data)
	}
	if result.Metadata.PageCount == 0 {
		result.Metadata.PageCount = 1
	}

	result.Tables = detectTables(result.Text)
	result.Fields = detectFormFields(result.Text)
	return result
}

// blendConfidence is the mean of the collected per-token confidences,
// defaulting to 0.9 when the provider reports none.
func blendConfidence(tokens []float64) float64 {
	if len(tokens) == 0 {
		return defaultConfidence
	}
	var sum float64
	for _, c := range tokens {
		sum += c
	}
	return sum / float64(len(tokens))
}

// sanitizeBlocks clamps negative dimensions coming back from the
// provider and fills missing per-block confidences with the default.
func sanitizeBlocks(blocks []domain.TextBlock) []domain.TextBlock {
	out := make([]domain.TextBlock, 0, len(blocks))
	for _, b := range blocks {
		if b.Box.Width < 0 {
			b.Box.Width = 0
		}
		if b.Box.Height < 0 {
			b.Box.Height = 0
		}
		if b.Confidence <= 0 {
			b.Confidence = defaultConfidence
		}
		out = append(out, b)
	}
	return out
}

func isFormLikeMime(mimeType string) bool {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "application/pdf", "image/tiff", "image/png", "image/jpeg":
		return true
	default:
		return false
	}
}

func isSpreadsheetMime(mimeType string) bool {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/vnd.ms-excel":
		return true
	default:
		return false
	}
}
