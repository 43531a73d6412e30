package autofill

import (
	"testing"

	"github.com/ridgelinehq/docpipe/internal/core/domain"
)

func TestConflictResolutionPolicy(t *testing.T) {
	existing := domain.FormField{Value: "50000.00", Confidence: 0.95, SourceDocument: "doc-old"}

	tests := []struct {
		name          string
		newConfidence float64
		want          domain.ConflictResolution
	}{
		{"high confidence replaces", 0.95, domain.UseNew},
		{"exactly 0.9 is not strictly above", 0.9, domain.ManualReview},
		{"mid confidence reviews", 0.7, domain.ManualReview},
		{"exactly 0.5 is not strictly below", 0.5, domain.ManualReview},
		{"low confidence keeps existing", 0.49, domain.KeepExisting},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conflict := resolveConflict("wages_salaries_tips", existing, "60000.00", "doc-new", tt.newConfidence)
			if conflict.Resolution != tt.want {
				t.Fatalf("confidence %.2f: expected %s, got %s", tt.newConfidence, tt.want, conflict.Resolution)
			}
			if conflict.Reason == "" {
				t.Fatalf("expected human-readable reason")
			}
			if conflict.ExistingValue != "50000.00" || conflict.NewValue != "60000.00" {
				t.Fatalf("conflict must carry both values: %+v", conflict)
			}
		})
	}
}

func TestExistingActorIsIgnoredByPolicy(t *testing.T) {
	// The policy resolves purely on the new value's confidence; even a
	// user-entered field at confidence 1.0 is replaced above the
	// threshold.
	existing := domain.FormField{Value: "1", Confidence: 1.0, UpdatedBy: domain.ActorUser}
	conflict := resolveConflict("f", existing, "2", "doc", 0.95)
	if conflict.Resolution != domain.UseNew {
		t.Fatalf("expected use_new regardless of existing actor, got %s", conflict.Resolution)
	}
}
