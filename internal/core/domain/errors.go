package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrFormNotFound     = errors.New("form not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrTemporary        = errors.New("temporary failure")

	// Stage failure kinds, one per pipeline component.
	ErrExtraction = errors.New("extraction failure")
	ErrAnalysis   = errors.New("analysis failure")
	ErrAutoFill   = errors.New("autofill failure")
	ErrPipeline   = errors.New("pipeline failure")

	// ErrFormVersionConflict is returned when a form merge loses the
	// optimistic-concurrency check and must be retried on a fresh read.
	ErrFormVersionConflict = errors.New("form version conflict")

	// ErrAlreadyProcessing guards against two concurrent runs for the
	// same document.
	ErrAlreadyProcessing = errors.New("document already processing")

	// ErrStructuredOCRUnavailable signals that the provider's form
	// endpoint is not configured and the general path should be used.
	ErrStructuredOCRUnavailable = errors.New("structured ocr unavailable")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
