package pipeline

import (
	"context"
	"io"
	"time"

	"github.com/ridgelinehq/docpipe/internal/core/domain"
)

// ProcessingStatus reports the run state for a document, falling back
// to the document record when no run has been tracked yet.
func (o *Orchestrator) ProcessingStatus(ctx context.Context, documentID string) (*domain.RunStatus, error) {
	if o.runs != nil {
		state, err := o.runs.Get(ctx, documentID)
		if err != nil {
			return nil, domain.WrapError(domain.ErrPipeline, "processing status", err)
		}
		if state != nil {
			return statusFromRun(state, o.now().UTC()), nil
		}
	}

	doc, err := o.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrPipeline, "processing status", err)
	}
	return statusFromDocument(doc), nil
}

func statusFromRun(state *domain.RunState, now time.Time) *domain.RunStatus {
	status := &domain.RunStatus{
		Phase:    state.Phase,
		Message:  state.Message,
		Progress: state.Progress,
	}
	if state.Phase == domain.RunRunning && state.Progress > 0 && state.Progress < 100 {
		elapsed := now.Sub(state.StartedAt).Seconds()
		if elapsed > 0 {
			estimate := int(elapsed * float64(100-state.Progress) / float64(state.Progress))
			status.EstimatedSecondsLeft = &estimate
		}
	}
	return status
}

func statusFromDocument(doc *domain.Document) *domain.RunStatus {
	status := &domain.RunStatus{Message: doc.Message}
	switch doc.Status {
	case domain.StatusPending:
		status.Phase = domain.RunQueued
	case domain.StatusProcessing:
		status.Phase = domain.RunRunning
		status.Progress = progressStarted
	case domain.StatusOCRCompleted:
		status.Phase = domain.RunRunning
		status.Progress = progressAnalysis
	case domain.StatusAnalyzing:
		status.Phase = domain.RunRunning
		status.Progress = progressAutoFill
	case domain.StatusCompleted:
		status.Phase = domain.RunCompleted
		status.Progress = 100
	case domain.StatusFailed:
		status.Phase = domain.RunFailed
		status.Progress = 100
	}
	return status
}

// CancelProcessing is cooperative and best-effort: it marks the run
// state, it does not interrupt in-flight provider calls. Finished runs
// are not cancellable.
func (o *Orchestrator) CancelProcessing(ctx context.Context, documentID string) (bool, error) {
	if o.runs == nil {
		return false, nil
	}
	cancelled, err := o.runs.MarkCancelled(ctx, documentID)
	if err != nil {
		return false, domain.WrapError(domain.ErrPipeline, "cancel processing", err)
	}
	if cancelled {
		o.logger.Info("processing_cancelled", "document_id", documentID)
	}
	return cancelled, nil
}

// ReprocessDocument re-reads the stored source bytes and runs the
// pipeline again, inheriting the document's stored client id when the
// options carry none.
func (o *Orchestrator) ReprocessDocument(ctx context.Context, documentID string, opts domain.RunOptions) (*domain.ProcessingResult, error) {
	doc, err := o.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrPipeline, "reprocess document", err)
	}
	if opts.ClientID == "" {
		opts.ClientID = doc.ClientID
	}

	reader, err := o.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return nil, domain.WrapError(domain.ErrPipeline, "reprocess document", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, domain.WrapError(domain.ErrPipeline, "reprocess document", err)
	}
	return o.ProcessDocument(ctx, documentID, data, doc.MimeType, opts)
}
