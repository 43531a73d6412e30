package pipeline

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ridgelinehq/docpipe/internal/core/domain"
)

func TestProcessingStatusFromRunState(t *testing.T) {
	o, fx := testOrchestrator(testDoc("doc-1"))

	started := time.Now().UTC().Add(-30 * time.Second)
	fx.runs.states["doc-1"] = domain.RunState{
		DocumentID: "doc-1",
		Phase:      domain.RunRunning,
		Stage:      domain.StageAnalysis,
		Progress:   40,
		StartedAt:  started,
		UpdatedAt:  started,
	}

	status, err := o.ProcessingStatus(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("ProcessingStatus() error = %v", err)
	}
	if status.Phase != domain.RunRunning || status.Progress != 40 {
		t.Fatalf("unexpected status: %+v", status)
	}
	if status.EstimatedSecondsLeft == nil {
		t.Fatalf("running run must carry a time estimate")
	}

	// 30s elapsed at 40% extrapolates to roughly 45s remaining.
	if est := *status.EstimatedSecondsLeft; est < 40 || est > 50 {
		t.Fatalf("expected estimate near 45s, got %d", est)
	}
}

func TestProcessingStatusFallsBackToDocument(t *testing.T) {
	doc := testDoc("doc-1")
	doc.Status = domain.StatusCompleted
	doc.Message = "success: all stages done"
	o, _ := testOrchestrator(doc)

	status, err := o.ProcessingStatus(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("ProcessingStatus() error = %v", err)
	}
	if status.Phase != domain.RunCompleted || status.Progress != 100 {
		t.Fatalf("expected completed at 100%%, got %+v", status)
	}
	if status.EstimatedSecondsLeft != nil {
		t.Fatalf("finished run has no remaining-time estimate")
	}
	if !strings.Contains(status.Message, "success") {
		t.Fatalf("expected document message passthrough, got %q", status.Message)
	}
}

func TestProcessingStatusUnknownDocument(t *testing.T) {
	o, _ := testOrchestrator()

	_, err := o.ProcessingStatus(context.Background(), "doc-missing")
	if err == nil || !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestCancelProcessingRules(t *testing.T) {
	o, fx := testOrchestrator(testDoc("doc-1"))

	fx.runs.states["doc-1"] = domain.RunState{DocumentID: "doc-1", Phase: domain.RunRunning}
	cancelled, err := o.CancelProcessing(context.Background(), "doc-1")
	if err != nil || !cancelled {
		t.Fatalf("in-flight run must be cancellable, got (%v, %v)", cancelled, err)
	}

	fx.runs.states["doc-2"] = domain.RunState{DocumentID: "doc-2", Phase: domain.RunCompleted}
	cancelled, err = o.CancelProcessing(context.Background(), "doc-2")
	if err != nil {
		t.Fatalf("CancelProcessing() error = %v", err)
	}
	if cancelled {
		t.Fatalf("finished run must not be cancellable")
	}

	cancelled, err = o.CancelProcessing(context.Background(), "doc-unknown")
	if err != nil || cancelled {
		t.Fatalf("unknown run must not be cancellable, got (%v, %v)", cancelled, err)
	}
}

func TestReprocessDocumentReadsStoredBytes(t *testing.T) {
	doc := testDoc("doc-1")
	doc.Status = domain.StatusCompleted
	o, fx := testOrchestrator(doc)
	fx.storage.objects[doc.StoragePath] = []byte("stored bytes")

	result, err := o.ReprocessDocument(context.Background(), "doc-1", domain.RunOptions{TaxYear: 2025})
	if err != nil {
		t.Fatalf("ReprocessDocument() error = %v", err)
	}
	if result.Status != domain.OutcomeSuccess {
		t.Fatalf("expected success, got %s (%s)", result.Status, result.Summary)
	}
	if len(fx.storage.opened) != 1 || fx.storage.opened[0] != doc.StoragePath {
		t.Fatalf("expected stored object re-read, got %v", fx.storage.opened)
	}

	// Client id is inherited from the stored document.
	if len(fx.resolver.calls) != 1 || fx.resolver.calls[0].clientID != "client-1" {
		t.Fatalf("expected inherited client id, got %+v", fx.resolver.calls)
	}
}

func TestReprocessDocumentMissingObject(t *testing.T) {
	o, _ := testOrchestrator(testDoc("doc-1"))

	_, err := o.ReprocessDocument(context.Background(), "doc-1", domain.RunOptions{})
	if err == nil || !domain.IsKind(err, domain.ErrPipeline) {
		t.Fatalf("expected ErrPipeline, got %v", err)
	}
}
