package ports

import (
	"context"
	"io"

	"github.com/ridgelinehq/docpipe/internal/core/domain"
)

// DocumentRepository persists and reads document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, message string) error
	SaveOCRResult(ctx context.Context, id string, result *domain.OCRResult) error
	SaveAnalysisResult(ctx context.Context, id string, result *domain.AnalysisResult) error
	SaveAutoFillResult(ctx context.Context, id string, result *domain.AutoFillResult) error

	// BeginProcessing flips the document to processing only when no run
	// currently holds it. Returns ErrAlreadyProcessing otherwise.
	BeginProcessing(ctx context.Context, id string) error
}

// FormRepository persists structured tax forms. UpdateForm performs a
// compare-and-swap on the form version and returns
// ErrFormVersionConflict when the stored version moved.
type FormRepository interface {
	GetForm(ctx context.Context, clientID string, formType domain.FormType, taxYear int) (*domain.TaxForm, error)
	CreateForm(ctx context.Context, form *domain.TaxForm) error
	UpdateForm(ctx context.Context, form *domain.TaxForm, expectedVersion int64) error
}

// ProcessingLogStore appends per-stage outcome records.
type ProcessingLogStore interface {
	Append(ctx context.Context, entry domain.ProcessingLogEntry) error
}

// RunStateStore tracks in-flight and finished pipeline runs so status
// survives process restarts and is visible across instances.
type RunStateStore interface {
	Put(ctx context.Context, state domain.RunState) error
	Get(ctx context.Context, documentID string) (*domain.RunState, error)

	// MarkCancelled flips a run to cancelled unless it already finished.
	// Returns false when the run was not cancellable.
	MarkCancelled(ctx context.Context, documentID string) (bool, error)
}

// ObjectStorage stores source document bytes.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes document intake events.
type MessageQueue interface {
	PublishDocumentReceived(ctx context.Context, documentID string) error
	SubscribeDocumentReceived(ctx context.Context, handler func(context.Context, string) error) error
}

// OCRProvider is the external recognition boundary. RecognizeForm is
// the structured path for form-like documents and returns
// ErrStructuredOCRUnavailable when its credentials are not configured.
type OCRProvider interface {
	RecognizeForm(ctx context.Context, data []byte, mimeType string) (*domain.RawRecognition, error)
	RecognizeText(ctx context.Context, data []byte, mimeType string) (*domain.RawRecognition, error)
}

// CompletionOptions are the sampling parameters passed through to the
// LLM endpoint.
type CompletionOptions struct {
	Temperature float64
	MaxTokens   int
	JSONMode    bool
}

// CompletionClient is the LLM completion boundary. Callers own any
// JSON parsing of the reply and must tolerate malformed output.
type CompletionClient interface {
	Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error)
}

// TextExtractor wraps the OCR provider and produces the normalized OCR
// result for a document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document, data []byte) (*domain.OCRResult, error)
}

// TypeClassifier combines deterministic taxonomy matching with an LLM
// enhancement pass.
type TypeClassifier interface {
	Classify(ctx context.Context, text string) (*domain.Classification, error)
}

// SemanticAnalyzer runs type identification, field extraction,
// validation and insight derivation over an OCR result.
type SemanticAnalyzer interface {
	Analyze(ctx context.Context, doc *domain.Document, ocr *domain.OCRResult) (*domain.AnalysisResult, error)
}

// FormResolver merges extracted values into structured forms.
type FormResolver interface {
	Fill(ctx context.Context, clientID, documentID string, analysis *domain.AnalysisResult, taxYear int) (*domain.AutoFillResult, error)
}
