package pipeline

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ridgelinehq/docpipe/internal/core/domain"
)

// ProcessBatch runs the inputs in fixed-size groups, each group's
// documents concurrently with a barrier before the next group starts.
// One document's failure never affects its siblings; every input gets
// a result entry.
func (o *Orchestrator) ProcessBatch(ctx context.Context, inputs []domain.BatchInput, opts domain.RunOptions) []*domain.ProcessingResult {
	results := make([]*domain.ProcessingResult, len(inputs))

	for start := 0; start < len(inputs); start += o.groupSize {
		end := min(start+o.groupSize, len(inputs))

		var group errgroup.Group
		for i := start; i < end; i++ {
			i := i
			group.Go(func() error {
				input := inputs[i]
				result, err := o.ProcessDocument(ctx, input.DocumentID, input.Data, input.MimeType, opts)
				if err != nil {
					o.logger.Warn("batch_document_failed", "document_id", input.DocumentID, "error", err)
					result = o.abortedResult(input.DocumentID, err)
				}
				results[i] = result
				return nil
			})
		}
		_ = group.Wait()
	}
	return results
}

// abortedResult stands in for a run that could not start at all, so
// batch callers still receive one entry per input.
func (o *Orchestrator) abortedResult(documentID string, err error) *domain.ProcessingResult {
	now := o.now().UTC()
	return &domain.ProcessingResult{
		DocumentID: documentID,
		Status:     domain.OutcomeFailed,
		Errors: []domain.ProcessingError{{
			Stage:     domain.StageOCR,
			Message:   fmt.Sprintf("failed to start processing: %v", err),
			Severity:  domain.SeverityCritical,
			Timestamp: now,
		}},
		Summary:    fmt.Sprintf("run aborted: %v", err),
		StartedAt:  now,
		FinishedAt: now,
	}
}
