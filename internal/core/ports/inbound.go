package ports

import (
	"context"
	"io"

	"github.com/ridgelinehq/docpipe/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document upload
// orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, clientID, filename, mimeType string, body io.Reader) (*domain.Document, error)
}

// PipelineService is the inbound contract the dashboard layer consumes.
type PipelineService interface {
	ProcessDocument(ctx context.Context, documentID string, data []byte, mimeType string, opts domain.RunOptions) (*domain.ProcessingResult, error)
	ProcessBatch(ctx context.Context, inputs []domain.BatchInput, opts domain.RunOptions) []*domain.ProcessingResult
	ProcessingStatus(ctx context.Context, documentID string) (*domain.RunStatus, error)
	CancelProcessing(ctx context.Context, documentID string) (bool, error)
	ReprocessDocument(ctx context.Context, documentID string, opts domain.RunOptions) (*domain.ProcessingResult, error)
}

// FormReader is the inbound read model for structured forms.
type FormReader interface {
	GetForm(ctx context.Context, clientID string, formType domain.FormType, taxYear int) (*domain.TaxForm, error)
}
