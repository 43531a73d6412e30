package autofill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ridgelinehq/docpipe/internal/core/domain"
	"github.com/ridgelinehq/docpipe/internal/core/ports"
)

const (
	reviewConfidenceFloor = 0.8

	// casAttempts bounds the merge retries when another writer moved
	// the form version between our read and write.
	casAttempts = 3
)

// Resolver merges extracted document fields into structured tax forms
// with provenance and conflict tracking. A per-form failure is
// reported as a warning; only a wholesale failure (no analysis input)
// aborts the operation.
type Resolver struct {
	forms  ports.FormRepository
	logger *slog.Logger
	now    func() time.Time
}

func NewResolver(forms ports.FormRepository, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{forms: forms, logger: logger, now: time.Now}
}

func (r *Resolver) Fill(ctx context.Context, clientID, documentID string, analysis *domain.AnalysisResult, taxYear int) (*domain.AutoFillResult, error) {
	if analysis == nil {
		return nil, domain.WrapError(domain.ErrAutoFill, "fill forms", errors.New("missing analysis result"))
	}
	if clientID == "" {
		return nil, domain.WrapError(domain.ErrAutoFill, "fill forms", errors.New("missing client id"))
	}
	if taxYear == 0 {
		taxYear = r.now().Year()
	}

	targets := targetFormTypes(analysis.DocumentType, analysis.Data)
	if len(targets) == 0 {
		return &domain.AutoFillResult{
			Summary:  fmt.Sprintf("no target forms for document type %s", analysis.DocumentType),
			Warnings: []string{fmt.Sprintf("document type %s maps to no forms", analysis.DocumentType)},
		}, nil
	}

	aggregate := &domain.AutoFillResult{}
	var confidences []float64

	for _, formType := range targets {
		perForm, err := r.fillForm(ctx, clientID, documentID, formType, analysis, taxYear)
		if err != nil {
			r.logger.Warn("form_fill_skipped",
				"client_id", clientID,
				"document_id", documentID,
				"form_type", formType,
				"error", err,
			)
			aggregate.Warnings = append(aggregate.Warnings, fmt.Sprintf("form %s: %v", formType, err))
			continue
		}

		aggregate.FormTypes = append(aggregate.FormTypes, formType)
		aggregate.FieldsAdded = append(aggregate.FieldsAdded, perForm.FieldsAdded...)
		aggregate.FieldsUpdated = append(aggregate.FieldsUpdated, perForm.FieldsUpdated...)
		aggregate.Conflicts = append(aggregate.Conflicts, perForm.Conflicts...)
		aggregate.RequiresReview = aggregate.RequiresReview || perForm.RequiresReview
		confidences = append(confidences, perForm.Confidence)
	}

	if len(confidences) > 0 {
		var sum float64
		for _, c := range confidences {
			sum += c
		}
		aggregate.Confidence = sum / float64(len(confidences))
	}
	aggregate.Summary = summarize(aggregate)
	return aggregate, nil
}

func (r *Resolver) fillForm(ctx context.Context, clientID, documentID string, formType domain.FormType, analysis *domain.AnalysisResult, taxYear int) (*domain.AutoFillResult, error) {
	mappings := formMappings[formType][analysis.DocumentType]
	if len(mappings) == 0 {
		return nil, fmt.Errorf("no field mapping for document type %s", analysis.DocumentType)
	}

	var lastErr error
	for attempt := 0; attempt < casAttempts; attempt++ {
		form, err := r.fetchOrCreate(ctx, clientID, formType, taxYear)
		if err != nil {
			// A create that lost to a concurrent writer is the same as a
			// CAS miss: the next attempt re-reads the winner's row and
			// merges into it.
			if domain.IsKind(err, domain.ErrFormVersionConflict) {
				lastErr = err
				continue
			}
			return nil, err
		}

		result := r.merge(form, documentID, analysis, mappings)

		if err := r.forms.UpdateForm(ctx, form, form.Version); err != nil {
			if domain.IsKind(err, domain.ErrFormVersionConflict) {
				lastErr = err
				continue
			}
			return nil, err
		}
		return result, nil
	}
	return nil, fmt.Errorf("form merge lost optimistic concurrency after %d attempts: %w", casAttempts, lastErr)
}

func (r *Resolver) fetchOrCreate(ctx context.Context, clientID string, formType domain.FormType, taxYear int) (*domain.TaxForm, error) {
	form, err := r.forms.GetForm(ctx, clientID, formType, taxYear)
	if err == nil {
		return form, nil
	}
	if !domain.IsKind(err, domain.ErrFormNotFound) {
		return nil, err
	}

	now := r.now().UTC()
	form = &domain.TaxForm{
		ID:        uuid.NewString(),
		ClientID:  clientID,
		Type:      formType,
		TaxYear:   taxYear,
		Status:    domain.FormDraft,
		Fields:    make(map[string]domain.FormField),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.forms.CreateForm(ctx, form); err != nil {
		return nil, err
	}
	return form, nil
}

// merge stages adds, provenance refreshes and conflict-resolved
// updates, then recomputes the form's aggregate state in place.
func (r *Resolver) merge(form *domain.TaxForm, documentID string, analysis *domain.AnalysisResult, mappings []fieldMapping) *domain.AutoFillResult {
	result := &domain.AutoFillResult{}
	now := r.now().UTC()

	for _, m := range mappings {
		value, ok := valueFor(analysis.Data, m.docField)
		if !ok {
			continue
		}

		newField := domain.FormField{
			Value:          value,
			Confidence:     analysis.Confidence,
			SourceDocument: documentID,
			SourceField:    m.docField,
			UpdatedAt:      now,
			UpdatedBy:      domain.ActorAI,
		}

		existing, present := form.Fields[m.formField]
		switch {
		case !present:
			form.Fields[m.formField] = newField
			result.FieldsAdded = append(result.FieldsAdded, m.formField)

		case existing.Value == value:
			// Same value from a new document: refresh provenance only.
			existing.SourceDocument = documentID
			existing.SourceField = m.docField
			existing.UpdatedAt = now
			form.Fields[m.formField] = existing

		default:
			conflict := resolveConflict(m.formField, existing, value, documentID, analysis.Confidence)
			result.Conflicts = append(result.Conflicts, conflict)
			if conflict.Resolution == domain.UseNew {
				form.Fields[m.formField] = newField
				result.FieldsUpdated = append(result.FieldsUpdated, m.formField)
			}
		}
	}

	form.SourceDocuments = appendUnique(form.SourceDocuments, documentID)
	form.Confidence = meanFieldConfidence(form.Fields)
	form.RequiresReview = form.Confidence < reviewConfidenceFloor || len(result.Conflicts) > 0
	if form.Status == domain.FormDraft {
		form.Status = domain.FormInProgress
	}
	form.UpdatedAt = now

	result.Confidence = form.Confidence
	result.RequiresReview = form.RequiresReview
	return result
}

func meanFieldConfidence(fields map[string]domain.FormField) float64 {
	if len(fields) == 0 {
		return 0
	}
	var sum float64
	for _, f := range fields {
		sum += f.Confidence
	}
	return sum / float64(len(fields))
}

func appendUnique(list []string, item string) []string {
	for _, v := range list {
		if v == item {
			return list
		}
	}
	return append(list, item)
}

func summarize(result *domain.AutoFillResult) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("%d fields added, %d updated across %d forms",
		len(result.FieldsAdded), len(result.FieldsUpdated), len(result.FormTypes)))
	if len(result.Conflicts) > 0 {
		parts = append(parts, fmt.Sprintf("%d conflicts detected", len(result.Conflicts)))
	}
	if result.RequiresReview {
		parts = append(parts, "manual review required")
	}
	if len(result.Warnings) > 0 {
		parts = append(parts, fmt.Sprintf("%d forms skipped", len(result.Warnings)))
	}
	return strings.Join(parts, "; ")
}
