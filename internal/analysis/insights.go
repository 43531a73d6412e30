package analysis

import (
	"fmt"
	"strings"

	"github.com/ridgelinehq/docpipe/internal/core/domain"
)

// wageOptimizationThreshold is the fixed wage level above which a
// retirement-contribution review is suggested.
const wageOptimizationThreshold = 50000

// deriveInsights is purely heuristic; no LLM call is involved.
func deriveInsights(docType domain.DocumentType, data domain.ExtractedData, validations []domain.ValidationResult) []domain.Insight {
	var insights []domain.Insight

	var invalid []string
	for _, v := range validations {
		if !v.Valid {
			invalid = append(invalid, v.Field)
		}
	}
	if len(invalid) > 0 {
		insights = append(insights, domain.Insight{
			Category:       domain.InsightDataQuality,
			Description:    fmt.Sprintf("Extracted fields failed validation: %s. Verify against the source document.", strings.Join(invalid, ", ")),
			Impact:         domain.ImpactHigh,
			ActionRequired: true,
		})
	}

	if data.Wages != nil && *data.Wages > wageOptimizationThreshold {
		insights = append(insights, domain.Insight{
			Category:       domain.InsightTaxOptimization,
			Description:    fmt.Sprintf("Reported wages of %.2f may support additional retirement contributions or deduction strategies.", *data.Wages),
			Impact:         domain.ImpactMedium,
			ActionRequired: true,
		})
	}

	if docType == domain.DocTypeW2 && data.EmployerEIN == nil {
		insights = append(insights, domain.Insight{
			Category:       domain.InsightMissingInformation,
			Description:    "W-2 is missing the employer EIN; it is required for filing.",
			Impact:         domain.ImpactHigh,
			ActionRequired: true,
		})
	}

	return insights
}

func deriveRecommendations(docType domain.DocumentType, insights []domain.Insight) []string {
	var recs []string
	for _, insight := range insights {
		if insight.ActionRequired {
			recs = append(recs, insight.Description)
		}
	}

	switch docType {
	case domain.DocTypeW2:
		recs = append(recs, "Verify W-2 amounts against the final pay stub for the year before filing.")
	case domain.DocType1099NEC:
		recs = append(recs, "Confirm 1099-NEC compensation matches your own invoicing records.")
	case domain.DocType1099INT:
		recs = append(recs, "Cross-check interest income against year-end bank statements.")
	case domain.DocTypeReceipt, domain.DocTypeInvoice:
		recs = append(recs, "Keep the original receipt with your expense records for audit support.")
	}
	return recs
}
