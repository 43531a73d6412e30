package autofill

import (
	"fmt"

	"github.com/ridgelinehq/docpipe/internal/core/domain"
)

const (
	useNewThreshold       = 0.9
	keepExistingThreshold = 0.5
)

// resolveConflict applies the resolution policy to a disagreement
// between a stored field and a newly extracted value. Only the new
// value's confidence drives the decision; who wrote the existing
// value does not factor in.
func resolveConflict(field string, existing domain.FormField, newValue, newSource string, newConfidence float64) domain.FieldConflict {
	conflict := domain.FieldConflict{
		Field:              field,
		ExistingValue:      existing.Value,
		NewValue:           newValue,
		ExistingSource:     existing.SourceDocument,
		NewSource:          newSource,
		ExistingConfidence: existing.Confidence,
		NewConfidence:      newConfidence,
	}

	switch {
	case newConfidence > useNewThreshold:
		conflict.Resolution = domain.UseNew
		conflict.Reason = fmt.Sprintf("new value confidence %.2f exceeds %.2f; replacing stored value", newConfidence, useNewThreshold)
	case newConfidence < keepExistingThreshold:
		conflict.Resolution = domain.KeepExisting
		conflict.Reason = fmt.Sprintf("new value confidence %.2f is below %.2f; keeping stored value", newConfidence, keepExistingThreshold)
	default:
		conflict.Resolution = domain.ManualReview
		conflict.Reason = fmt.Sprintf("new value confidence %.2f is inconclusive; flagging for manual review", newConfidence)
	}
	return conflict
}
